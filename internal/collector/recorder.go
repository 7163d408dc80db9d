package collector

import (
	"sync"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// recorder captures events from a session until stopped.
type recorder struct {
	mu      sync.Mutex
	events  []RecordedEvent
	dropped int
	max     int
	stopped bool
	unsubs  []func()
}

func startRecorder(s session.Session, names []string, max int) *recorder {
	r := &recorder{max: max}
	unsubs := make([]func(), 0, len(names))
	for _, name := range names {
		unsubs = append(unsubs, s.On(name, r.record))
	}

	r.mu.Lock()
	r.unsubs = unsubs
	r.mu.Unlock()
	return r
}

func (r *recorder) record(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if len(r.events) >= r.max {
		r.dropped++
		return
	}
	r.events = append(r.events, RecordedEvent{Method: ev.Method, Params: ev.Params})
}

// stop unsubscribes and returns what was recorded. It is idempotent.
func (r *recorder) stop() ([]RecordedEvent, int) {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.stopped = true
	events, dropped := r.events, r.dropped
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return events, dropped
}
