package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/session"
)

// CommandCollector issues configured protocol commands and records
// configured events.
//
// Design decision: Recording state is keyed by artifact id rather than kept
// on the collector because:
//  1. One collector can back several artifacts of the same navigation
//  2. Artifact ids are unique within a navigation and navigations run one
//     at a time
type CommandCollector struct {
	meta      gatherer.Meta
	terminal  model.Phase
	commands  map[model.Phase]Command
	events    []string
	maxEvents int

	mu        sync.Mutex
	recorders map[string]*recorder
}

var (
	_ gatherer.Collector = (*CommandCollector)(nil)
	_ gatherer.Cleaner   = (*CommandCollector)(nil)
)

// New builds a CommandCollector from spec.
func New(spec Spec) (*CommandCollector, error) {
	if spec.Name == "" {
		return nil, ErrMissingName
	}

	modes, err := model.ParseModes(spec.Modes)
	if err != nil {
		return nil, fmt.Errorf("collector %s: %w", spec.Name, err)
	}
	terminal, err := model.TerminalPhase(modes)
	if err != nil {
		return nil, fmt.Errorf("collector %s: %w", spec.Name, err)
	}

	commands := make(map[model.Phase]Command, len(spec.Commands))
	for name, cmd := range spec.Commands {
		phase, err := model.ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("collector %s: %w", spec.Name, err)
		}
		if cmd.Method == "" {
			return nil, fmt.Errorf("collector %s, phase %s: %w", spec.Name, name, ErrMissingMethod)
		}
		if !phase.Invokes(modes) {
			return nil, fmt.Errorf("collector %s, phase %s: %w", spec.Name, name, ErrPhaseNotInvoked)
		}
		commands[phase] = cmd
	}

	maxEvents := spec.MaxEvents
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	return &CommandCollector{
		meta:      gatherer.Meta{Name: spec.Name, SupportedModes: modes},
		terminal:  terminal,
		commands:  commands,
		events:    append([]string(nil), spec.Events...),
		maxEvents: maxEvents,
		recorders: make(map[string]*recorder),
	}, nil
}

// Meta implements gatherer.Collector.
func (c *CommandCollector) Meta() gatherer.Meta { return c.meta }

// TerminalPhase returns the phase that produces the artifact.
func (c *CommandCollector) TerminalPhase() model.Phase { return c.terminal }

// Phases returns the phases that issue a command, in lifecycle order.
func (c *CommandCollector) Phases() []model.Phase {
	phases := make([]model.Phase, 0, len(c.commands))
	for p := range c.commands {
		phases = append(phases, p)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	return phases
}

// StartInstrumentation implements gatherer.Collector.
func (c *CommandCollector) StartInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return c.run(ctx, model.PhaseStartInstrumentation, pc)
}

// StartSensitiveInstrumentation implements gatherer.Collector.
func (c *CommandCollector) StartSensitiveInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return c.run(ctx, model.PhaseStartSensitiveInstrumentation, pc)
}

// StopSensitiveInstrumentation implements gatherer.Collector.
func (c *CommandCollector) StopSensitiveInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return c.run(ctx, model.PhaseStopSensitiveInstrumentation, pc)
}

// StopInstrumentation implements gatherer.Collector.
func (c *CommandCollector) StopInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return c.run(ctx, model.PhaseStopInstrumentation, pc)
}

// CollectArtifact implements gatherer.Collector.
func (c *CommandCollector) CollectArtifact(ctx context.Context, pc *gatherer.Context) (any, error) {
	return c.run(ctx, model.PhaseCollectArtifact, pc)
}

func (c *CommandCollector) run(ctx context.Context, phase model.Phase, pc *gatherer.Context) (any, error) {
	logger := pc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if isStart(phase) {
		c.startRecording(phase, pc)
	}

	var result json.RawMessage
	if cmd, ok := c.commands[phase]; ok {
		raw, err := pc.Session.SendCommand(session.WithProtocolTimeout(ctx, cmd.Timeout), cmd.Method, paramsOf(cmd))
		if err != nil {
			c.stopRecording(pc.ArtifactID)
			return nil, fmt.Errorf("%s: %w", cmd.Method, err)
		}
		logger.Debug("collector command", "collector", c.meta.Name, "phase", phase.String(), "method", cmd.Method)
		result = raw
	}

	if phase != c.terminal {
		return nil, nil
	}

	events, dropped := c.stopRecording(pc.ArtifactID)
	if dropped > 0 {
		logger.Warn("collector dropped events", "collector", c.meta.Name, "artifact", pc.ArtifactID, "dropped", dropped)
	}
	return &Output{Result: result, Events: events, Dropped: dropped}, nil
}

// startRecording begins recording for the artifact on its first start phase.
// startInstrumentation always begins afresh, discarding a recorder left over
// from a navigation that never reached its terminal phase.
func (c *CommandCollector) startRecording(phase model.Phase, pc *gatherer.Context) {
	if len(c.events) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.recorders[pc.ArtifactID]; ok {
		if phase == model.PhaseStartSensitiveInstrumentation {
			return
		}
		r.stop()
	}
	c.recorders[pc.ArtifactID] = startRecorder(pc.Session, c.events, c.maxEvents)
}

// Cleanup implements gatherer.Cleaner. It drops the events recorded for an
// artifact whose terminal phase never ran.
func (c *CommandCollector) Cleanup(artifactID string) {
	c.stopRecording(artifactID)
}

func (c *CommandCollector) stopRecording(artifactID string) ([]RecordedEvent, int) {
	c.mu.Lock()
	r, ok := c.recorders[artifactID]
	delete(c.recorders, artifactID)
	c.mu.Unlock()

	if !ok {
		return nil, 0
	}
	return r.stop()
}

func isStart(p model.Phase) bool {
	return p == model.PhaseStartInstrumentation || p == model.PhaseStartSensitiveInstrumentation
}

// paramsOf returns nil for commands without parameters so that the session
// sends none.
func paramsOf(cmd Command) any {
	if len(cmd.Params) == 0 {
		return nil
	}
	return cmd.Params
}
