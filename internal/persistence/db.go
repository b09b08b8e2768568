// Package persistence stores run outputs in SQLite: runs, per-period metrics,
// serialised frames and events.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/rent-market/internal/engine"
)

// ErrNotFound is returned when a run or frame does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path. ":memory:"
// opens a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		policy TEXT NOT NULL,
		households INTEGER NOT NULL,
		units INTEGER NOT NULL,
		landlords INTEGER NOT NULL,
		years INTEGER NOT NULL,
		migration_rate REAL NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS period_metrics (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		year INTEGER NOT NULL,
		period INTEGER NOT NULL,
		households INTEGER NOT NULL,
		unhoused INTEGER NOT NULL,
		vacancy_rate REAL NOT NULL,
		avg_rent REAL NOT NULL,
		avg_burden REAL NOT NULL,
		moves INTEGER NOT NULL,
		evictions INTEGER NOT NULL,
		total_taxes REAL NOT NULL,
		metrics_json TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		frame_json TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		household INTEGER NOT NULL,
		unit INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_step ON events(run_id, step);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one stored run.
type Run struct {
	ID            string       `db:"id" json:"id"`
	Seed          int64        `db:"seed" json:"seed"`
	Policy        string       `db:"policy" json:"policy"`
	Households    int          `db:"households" json:"households"`
	Units         int          `db:"units" json:"units"`
	Landlords     int          `db:"landlords" json:"landlords"`
	Years         int          `db:"years" json:"years"`
	MigrationRate float64      `db:"migration_rate" json:"migration_rate"`
	Steps         int          `db:"steps" json:"steps"`
	StartedAt     time.Time    `db:"started_at" json:"started_at"`
	FinishedAt    sql.NullTime `db:"finished_at" json:"-"`
}

// CreateRun registers a run before its first frame is saved.
func (db *DB) CreateRun(id uuid.UUID, p engine.Params) error {
	policyKind := "none"
	if p.Policy != nil {
		policyKind = p.Policy.Kind.String()
	}
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, seed, policy, households, units, landlords, years, migration_rate, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), p.Seed, policyKind, p.Households, p.Units, p.Landlords,
		p.Years, p.MigrationRate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// SaveFrame stores one step's metrics, wire frame and events atomically.
func (db *DB) SaveFrame(runID uuid.UUID, r *engine.Result) error {
	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	frameJSON, err := r.MarshalWire()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := runID.String()
	m := r.Metrics
	if _, err := tx.Exec(`INSERT OR REPLACE INTO period_metrics
		(run_id, step, year, period, households, unhoused, vacancy_rate, avg_rent,
		 avg_burden, moves, evictions, total_taxes, metrics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Step, r.Year, r.Period, m.TotalHouseholds, m.Unhoused, m.VacancyRate,
		m.AvgRent, m.AvgBurden, m.Moves, m.Evictions, m.TotalTaxes, string(metricsJSON),
	); err != nil {
		return fmt.Errorf("insert metrics step %d: %w", r.Step, err)
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO frames (run_id, step, frame_json) VALUES (?, ?, ?)",
		id, r.Step, string(frameJSON),
	); err != nil {
		return fmt.Errorf("insert frame step %d: %w", r.Step, err)
	}

	// Replays of a step replace its events.
	if _, err := tx.Exec("DELETE FROM events WHERE run_id = ? AND step = ?", id, r.Step); err != nil {
		return err
	}
	for _, e := range r.Events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, step, household, unit, category, description) VALUES (?, ?, ?, ?, ?, ?)",
			id, e.Step, int64(e.Household), int64(e.Unit), e.Category, e.Description,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if _, err := tx.Exec("UPDATE runs SET steps = MAX(steps, ?) WHERE id = ?", r.Step, id); err != nil {
		return err
	}

	return tx.Commit()
}

// FinishRun stamps the run as complete.
func (db *DB) FinishRun(runID uuid.UUID) error {
	res, err := db.conn.Exec("UPDATE runs SET finished_at = ? WHERE id = ?", time.Now().UTC(), runID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns one run.
func (db *DB) GetRun(runID uuid.UUID) (*Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Runs lists runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	return runs, err
}

// Metrics returns every stored metrics record of a run in step order.
func (db *DB) Metrics(runID uuid.UUID) ([]engine.PeriodMetrics, error) {
	var raw []string
	if err := db.conn.Select(&raw,
		"SELECT metrics_json FROM period_metrics WHERE run_id = ? ORDER BY step",
		runID.String(),
	); err != nil {
		return nil, err
	}
	out := make([]engine.PeriodMetrics, 0, len(raw))
	for _, s := range raw {
		var m engine.PeriodMetrics
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Frame returns the stored wire frame JSON for a step.
func (db *DB) Frame(runID uuid.UUID, step int) ([]byte, error) {
	var frame string
	err := db.conn.Get(&frame, "SELECT frame_json FROM frames WHERE run_id = ? AND step = ?", runID.String(), step)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s step %d: %w", runID, step, ErrNotFound)
	}
	return []byte(frame), err
}

// RecentEvents returns the most recent events of a run.
func (db *DB) RecentEvents(runID uuid.UUID, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT step, household, unit, category, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID.String(), limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair against a run.
func (db *DB) SaveMeta(runID uuid.UUID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID.String(), key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(runID uuid.UUID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID.String(), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

// Recorder returns a frame callback that saves every frame under runID.
// Failures are logged; the run continues.
func (db *DB) Recorder(runID uuid.UUID) func(*engine.Result) {
	return func(r *engine.Result) {
		if err := db.SaveFrame(runID, r); err != nil {
			slog.Error("saving frame", "run", runID, "step", r.Step, "error", err)
		}
	}
}
