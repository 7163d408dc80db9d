package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/willoughbyrm/lighthouse/internal/model"
)

// FileName is the database file inside the database directory.
const FileName = "lighthouse.db"

// timestampLayout sorts lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// RunDB provides SQLite-based storage for gather runs.
//
// Design decision: A run is stored whole as JSON, plus one row per artifact
// with its status. Reports and comparisons always need the whole run, while
// history queries only need the status rows.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per gather run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		requested_url TEXT NOT NULL,
		final_url TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		artifact_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		fault TEXT,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(requested_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Artifact status per run
	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		artifact_id TEXT NOT NULL,
		failed INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, artifact_id)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_id ON artifacts(artifact_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run and its artifact statuses in one transaction.
func (rdb *RunDB) SaveRun(ctx context.Context, run *model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, requested_url, final_url, started_at, duration_ms, artifact_count, failed_count, fault, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.RequestedURL,
		run.FinalURL,
		run.StartedAt.UTC().Format(timestampLayout),
		run.Duration.Milliseconds(),
		len(run.Artifacts),
		len(run.Artifacts.Failed()),
		run.Fault,
		string(runJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO artifacts (run_id, artifact_id, failed, error) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare artifact insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range run.Artifacts.IDs() {
		r := run.Artifacts[id]
		var msg sql.NullString
		if r.Failed() {
			msg = sql.NullString{String: r.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, id, r.Failed(), msg); err != nil {
			return fmt.Errorf("failed to save artifact %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id. It returns ErrRunNotFound when absent.
func (rdb *RunDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var runJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeRun(runJSON)
}

// GetLatestRun retrieves the most recent run of url, or nil if there is none.
func (rdb *RunDB) GetLatestRun(ctx context.Context, url string) (*model.Run, error) {
	runs, err := rdb.GetRecentRuns(ctx, url, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// GetRecentRuns retrieves up to limit runs of url, newest first.
func (rdb *RunDB) GetRecentRuns(ctx context.Context, url string, limit int) ([]*model.Run, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT run_json FROM runs
	WHERE requested_url = ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(runJSON)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunMetadata contains summary information about a stored run.
type RunMetadata struct {
	// ID is the run id.
	ID string

	// RequestedURL is the URL the run gathered.
	RequestedURL string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// Artifacts is the number of artifacts.
	Artifacts int

	// Failed is the number of failed artifacts.
	Failed int

	// Fault is the navigation fault, if the run was cut short.
	Fault string
}

// ListRuns returns metadata of every run of url, newest first.
// This is more efficient than GetRecentRuns when only metadata is needed.
func (rdb *RunDB) ListRuns(ctx context.Context, url string) ([]RunMetadata, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, requested_url, started_at, duration_ms, artifact_count, failed_count, fault
	FROM runs
	WHERE requested_url = ?
	ORDER BY started_at DESC, rowid DESC
	`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var durationMs int64
		var fault sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RequestedURL, &startedAt, &durationMs, &meta.Artifacts, &meta.Failed, &fault); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Duration = time.Duration(durationMs) * time.Millisecond
		meta.Fault = fault.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ListURLs returns every URL with at least one stored run, sorted.
func (rdb *RunDB) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT DISTINCT requested_url FROM runs ORDER BY requested_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ArtifactStatus is the outcome of one artifact in one run.
type ArtifactStatus struct {
	RunID     string
	StartedAt time.Time
	Failed    bool
	Error     string
}

// ArtifactHistory returns the status of artifactID across the runs of url,
// newest first.
func (rdb *RunDB) ArtifactHistory(ctx context.Context, url, artifactID string) ([]ArtifactStatus, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT r.id, r.started_at, a.failed, a.error
	FROM artifacts a JOIN runs r ON r.id = a.run_id
	WHERE r.requested_url = ? AND a.artifact_id = ?
	ORDER BY r.started_at DESC, r.rowid DESC
	`, url, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact history: %w", err)
	}
	defer rows.Close()

	var history []ArtifactStatus
	for rows.Next() {
		var s ArtifactStatus
		var startedAt string
		var msg sql.NullString
		if err := rows.Scan(&s.RunID, &startedAt, &s.Failed, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan artifact status: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.Error = msg.String
		history = append(history, s)
	}
	return history, rows.Err()
}

func decodeRun(runJSON string) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
