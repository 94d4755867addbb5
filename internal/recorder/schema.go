package recorder

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	steps       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS moves (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	step       INTEGER NOT NULL,
	train      INTEGER NOT NULL,
	from_track INTEGER,
	to_track   INTEGER NOT NULL,
	facing     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS switch_events (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	step     INTEGER NOT NULL,
	junction INTEGER NOT NULL,
	leg_a    INTEGER NOT NULL,
	leg_b    INTEGER NOT NULL,
	train    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS signal_events (
	run_id TEXT NOT NULL REFERENCES runs(id),
	step   INTEGER NOT NULL,
	signal INTEGER NOT NULL,
	aspect TEXT NOT NULL,
	train  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_moves_run_step ON moves(run_id, step);
CREATE INDEX IF NOT EXISTS idx_switch_events_run_step ON switch_events(run_id, step);
CREATE INDEX IF NOT EXISTS idx_signal_events_run_step ON signal_events(run_id, step);
`

// InitSchema creates the trace tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize trace schema: %w", err)
	}
	return nil
}
