package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fieldcast/core/sink"
)

// SQLiteStore persists runs and their records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        mode TEXT,
        convention TEXT,
        created INTEGER
    );
    CREATE TABLE IF NOT EXISTS predictions (
        run_id TEXT REFERENCES runs(id),
        time INTEGER,
        var TEXT,
        stat TEXT,
        sample INTEGER,
        coords TEXT,
        labels TEXT,
        value REAL
    );
    CREATE INDEX IF NOT EXISTS predictions_run ON predictions(run_id, var, stat);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Write stores run in one transaction, replacing a previous run with the
// same ID.
func (s *SQLiteStore) Write(ctx context.Context, run *sink.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, mode, convention, created)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            mode = excluded.mode,
            convention = excluded.convention,
            created = excluded.created`,
		run.ID, run.Mode, run.Convention, run.Created.UnixMilli()); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO predictions (run_id, time, var, stat, sample, coords, labels, value)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range run.Records {
		coords, err := json.Marshal(r.Coords)
		if err != nil {
			return err
		}
		var labels []byte
		if len(r.Labels) > 0 {
			if labels, err = json.Marshal(r.Labels); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, r.Time.UnixMilli(), r.Var, r.Stat, r.Sample, string(coords), string(labels), r.Value); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return tx.Commit()
}

// Records returns the records of run id in insertion order.
func (s *SQLiteStore) Records(ctx context.Context, id string) ([]sink.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT time, var, stat, sample, coords, labels, value
        FROM predictions WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []sink.Record
	for rows.Next() {
		var (
			ts             int64
			r              sink.Record
			coords, labels string
		)
		if err := rows.Scan(&ts, &r.Var, &r.Stat, &r.Sample, &coords, &labels, &r.Value); err != nil {
			return nil, err
		}
		r.Time = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(coords), &r.Coords); err != nil {
			return nil, err
		}
		if labels != "" {
			if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
				return nil, err
			}
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Runs lists stored run IDs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
