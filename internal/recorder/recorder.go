// Package recorder persists step-by-step run traces to SQLite, so two runs
// of the same scenario can be diffed move by move.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/signalsfoundry/railyard-simulator/core"
)

// Recorder writes simulation step reports to a SQLite trace database.
type Recorder struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the trace database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Path returns the trace database location.
func (r *Recorder) Path() string { return r.path }

// BeginRun registers a new run and returns its generated id.
func (r *Recorder) BeginRun(ctx context.Context, scenario string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, started_at) VALUES (?, ?, ?)`,
		id, scenario, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// RecordStep writes every move, switch assignment, and signal assignment of
// one step inside a single transaction.
func (r *Recorder) RecordStep(ctx context.Context, runID string, rep core.StepReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin step transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mv := range rep.Moves {
		var from any
		if mv.From != core.NoIdent {
			from = int64(mv.From)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO moves (run_id, step, train, from_track, to_track, facing) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rep.Step, int64(mv.Train), from, int64(mv.To), int64(mv.Facing)); err != nil {
			return fmt.Errorf("failed to record move: %w", err)
		}
	}
	for _, sw := range rep.Switches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO switch_events (run_id, step, junction, leg_a, leg_b, train) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rep.Step, int64(sw.Junction), int64(sw.State.A), int64(sw.State.B), int64(sw.Train)); err != nil {
			return fmt.Errorf("failed to record switch event: %w", err)
		}
	}
	for _, sg := range rep.Signals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO signal_events (run_id, step, signal, aspect, train) VALUES (?, ?, ?, ?, ?)`,
			runID, rep.Step, int64(sg.Signal), sg.Aspect.String(), int64(sg.Train)); err != nil {
			return fmt.Errorf("failed to record signal event: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET steps = ? WHERE id = ?`, rep.Step, runID); err != nil {
		return fmt.Errorf("failed to update run step count: %w", err)
	}
	return tx.Commit()
}

// FinishRun stamps the run's completion time.
func (r *Recorder) FinishRun(ctx context.Context, runID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RunInfo summarizes one recorded run.
type RunInfo struct {
	ID         string
	Scenario   string
	StartedAt  string
	FinishedAt string
	Steps      int
	Moves      int
}

// Runs lists recorded runs, newest first.
func (r *Recorder) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT runs.id, runs.scenario, runs.started_at, COALESCE(runs.finished_at, ''), runs.steps,
		       (SELECT COUNT(*) FROM moves WHERE moves.run_id = runs.id)
		FROM runs ORDER BY runs.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var ri RunInfo
		if err := rows.Scan(&ri.ID, &ri.Scenario, &ri.StartedAt, &ri.FinishedAt, &ri.Steps, &ri.Moves); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

// TrainPath returns the ordered track idents a train visited during a run.
func (r *Recorder) TrainPath(ctx context.Context, runID string, train core.Ident) ([]core.Ident, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_track FROM moves WHERE run_id = ? AND train = ? ORDER BY step`,
		runID, int64(train))
	if err != nil {
		return nil, fmt.Errorf("failed to query train path: %w", err)
	}
	defer rows.Close()

	var out []core.Ident
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track ident: %w", err)
		}
		out = append(out, core.Ident(id))
	}
	return out, rows.Err()
}
