package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"serp-similarity/pkg/database"
)

// SQLEventStore stores events in a SQL table with ordered IDs
// Table schema:
// CREATE TABLE IF NOT EXISTS run_events (
//   id BIGINT AUTO_INCREMENT PRIMARY KEY,
//   run_id VARCHAR(36) NOT NULL,
//   type VARCHAR(64) NOT NULL,
//   at DATETIME(6) NOT NULL,
//   analyst VARCHAR(128) NULL,
//   data JSON NOT NULL,
//   KEY idx_run_id (run_id),
//   KEY idx_run_time (run_id, id)
// );
// NOTE: JSON may be emulated as LONGTEXT on older MySQL variants.

type SQLEventStore struct {
	db *database.DB
}

func NewSQLEventStore(db *database.DB) *SQLEventStore {
	s := &SQLEventStore{db: db}
	if err := s.ensureTable(); err != nil {
		// Best effort; don't crash app start
		fmt.Printf("[events] ensure table error: %v\n", err)
	}
	return s
}

func (s *SQLEventStore) ensureTable() error {
	qry := `CREATE TABLE IF NOT EXISTS run_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		type VARCHAR(64) NOT NULL,
		at DATETIME(6) NOT NULL,
		analyst VARCHAR(128) NULL,
		data JSON NOT NULL,
		KEY idx_run_id (run_id),
		KEY idx_run_time (run_id, id)
	)`
	_, err := s.db.Conn().Exec(qry)
	return err
}

func (s *SQLEventStore) Append(ctx context.Context, ev ...Event) error {
	if len(ev) == 0 {
		return nil
	}
	ctx, cancel := s.db.WithWriteTimeout(ctx)
	defer cancel()

	tx, err := s.db.Conn().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_events (run_id, type, at, analyst, data) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range ev {
		raw, err := e.MarshalData()
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		// Always include event type in payload for debugging
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
			payload = map[string]any{}
		}
		payload["_type"] = e.Type()
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		at := e.Timestamp()
		if at.IsZero() {
			at = time.Now()
		}

		var analyst sql.NullString
		if a := e.Analyst(); a != nil {
			analyst = sql.NullString{String: *a, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, e.RunID(), e.Type(), at, analyst, string(b)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLEventStore) ListByRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	ctx, cancel := s.db.WithReadTimeout(ctx)
	defer cancel()

	rows, err := s.db.Conn().QueryContext(ctx, `SELECT id, run_id, type, at, analyst, data FROM run_events WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var se StoredEvent
		var analyst sql.NullString
		var dataStr string
		if err := rows.Scan(&se.Seq, &se.RunID, &se.Type, &se.Ts, &analyst, &dataStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if analyst.Valid {
			v := analyst.String
			se.Analyst = &v
		}
		se.Payload = []byte(dataStr)
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLEventStore) ReplayRun(ctx context.Context, runID string) (*RebuiltState, error) {
	events, err := s.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Replay(events), nil
}

var _ EventStore = (*SQLEventStore)(nil)
