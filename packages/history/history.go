// Package history stores benchmark summaries in a SQLite database so runs
// can be listed and compared later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/httpbridge/packages/bench"
)

// ErrNotFound is returned when no run matches an ID
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	target     TEXT NOT NULL,
	transport  TEXT NOT NULL,
	mode       TEXT NOT NULL,
	total      INTEGER NOT NULL,
	success    INTEGER NOT NULL,
	errors     INTEGER NOT NULL,
	rps        REAL NOT NULL,
	p50_us     INTEGER NOT NULL,
	p95_us     INTEGER NOT NULL,
	p99_us     INTEGER NOT NULL,
	passed     INTEGER NOT NULL,
	summary    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// Run is one stored benchmark result
type Run struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Target    string            `json:"target"`
	Transport string            `json:"transport"`
	Mode      string            `json:"mode"`
	Total     int64             `json:"total"`
	Success   int64             `json:"success"`
	Errors    int64             `json:"errors"`
	RPS       float64           `json:"rps"`
	P50       time.Duration     `json:"p50"`
	P95       time.Duration     `json:"p95"`
	P99       time.Duration     `json:"p99"`
	Passed    bool              `json:"passed"`
	Summary   bench.JSONSummary `json:"summary"`
}

// FromResult builds a Run from a finished benchmark
func FromResult(target, transport string, cfg *bench.Config, res *bench.Result) *Run {
	s := res.Summary
	return &Run{
		Target:    target,
		Transport: transport,
		Mode:      cfg.Mode.String(),
		Total:     s.TotalRequests,
		Success:   s.SuccessCount,
		Errors:    s.ErrorCount,
		RPS:       s.RPS,
		P50:       s.P50,
		P95:       s.P95,
		P99:       s.P99,
		Passed:    res.Passed,
		Summary:   bench.ToJSON(s, res.Thresholds),
	}
}

// Store is a SQLite-backed run history
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the history database. dsn is a file path, optionally
// prefixed with "sqlite://" or "sqlite:".
func Open(dsn string) (*Store, error) {
	path := parseDSN(dsn)
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func parseDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return rest
	}
	return dsn
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores run, assigning an ID and timestamp when they are unset
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, target, transport, mode, total, success, errors, rps, p50_us, p95_us, p99_us, passed, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMicro(), run.Target, run.Transport, run.Mode,
		run.Total, run.Success, run.Errors, run.RPS,
		run.P50.Microseconds(), run.P95.Microseconds(), run.P99.Microseconds(),
		run.Passed, string(summary))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const selectRuns = `SELECT id, created_at, target, transport, mode, total, success, errors, rps, p50_us, p95_us, p99_us, passed, summary FROM runs`

// List returns up to limit runs, newest first. A non-positive limit returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := selectRuns + ` ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Get returns the run whose ID starts with id. An ambiguous prefix is an
// error.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
}

// Delete removes the run with exactly this ID
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run           Run
		createdAt     int64
		p50, p95, p99 int64
		summary       string
	)
	err := rows.Scan(&run.ID, &createdAt, &run.Target, &run.Transport, &run.Mode,
		&run.Total, &run.Success, &run.Errors, &run.RPS,
		&p50, &p95, &p99, &run.Passed, &summary)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	run.CreatedAt = time.UnixMicro(createdAt)
	run.P50 = time.Duration(p50) * time.Microsecond
	run.P95 = time.Duration(p95) * time.Microsecond
	run.P99 = time.Duration(p99) * time.Microsecond

	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary for run %s: %w", run.ID, err)
	}
	return &run, nil
}
