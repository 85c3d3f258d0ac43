package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"serp-similarity/internal/models"
	"serp-similarity/pkg/database"
	errs "serp-similarity/pkg/errors"
)

// MySQLStore persists runs in a single table with JSON payload columns.
// Table schema:
// CREATE TABLE IF NOT EXISTS runs (
//   id VARCHAR(36) PRIMARY KEY,
//   status VARCHAR(16) NOT NULL,
//   keywords JSON NOT NULL,
//   options JSON NOT NULL,
//   progress JSON NOT NULL,
//   last_error TEXT NULL,
//   requested_by VARCHAR(128) NULL,
//   created_at DATETIME(6) NOT NULL,
//   started_at DATETIME(6) NULL,
//   completed_at DATETIME(6) NULL,
//   report MEDIUMTEXT NULL,
//   KEY idx_status (status),
//   KEY idx_created (created_at)
// );
// NOTE: JSON may be emulated as LONGTEXT on older MySQL variants. The DSN
// must carry parseTime=true so DATETIME columns scan into time.Time.
type MySQLStore struct {
	db    *database.DB
	stmts map[string]*sql.Stmt
}

// NewMySQLStore builds the store, creating the runs table when missing and
// preparing the hot statements.
func NewMySQLStore(db *database.DB) (*MySQLStore, error) {
	s := &MySQLStore{db: db, stmts: make(map[string]*sql.Stmt)}
	if err := s.ensureSchema(); err != nil {
		return nil, errs.NewDB("store.NewMySQLStore", "failed to ensure runs table", err)
	}
	if err := s.prepareStatements(); err != nil {
		return nil, errs.NewDB("store.NewMySQLStore", "failed to prepare statements", err)
	}
	return s, nil
}

func (s *MySQLStore) ensureSchema() error {
	qry := `CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR(36) PRIMARY KEY,
		status VARCHAR(16) NOT NULL,
		keywords JSON NOT NULL,
		options JSON NOT NULL,
		progress JSON NOT NULL,
		last_error TEXT NULL,
		requested_by VARCHAR(128) NULL,
		created_at DATETIME(6) NOT NULL,
		started_at DATETIME(6) NULL,
		completed_at DATETIME(6) NULL,
		report MEDIUMTEXT NULL,
		KEY idx_status (status),
		KEY idx_created (created_at)
	)`
	_, err := s.db.Conn().Exec(qry)
	return err
}

func (s *MySQLStore) prepareStatements() error {
	statements := map[string]string{
		"upsertRun": `INSERT INTO runs
		    (id, status, keywords, options, progress, last_error, requested_by, created_at, started_at, completed_at, report)
		    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		    ON DUPLICATE KEY UPDATE
		      status = VALUES(status), progress = VALUES(progress), last_error = VALUES(last_error),
		      started_at = VALUES(started_at), completed_at = VALUES(completed_at), report = VALUES(report)`,
		"getRun": `SELECT id, status, keywords, options, progress, last_error, requested_by,
		             created_at, started_at, completed_at, report
		           FROM runs WHERE id = ?`,
		"deleteRun": `DELETE FROM runs WHERE id = ?`,
	}

	for name, query := range statements {
		stmt, err := s.db.Conn().Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.stmts[name] = stmt
	}
	return nil
}

// Close releases prepared statements. The underlying connection belongs to
// the caller.
func (s *MySQLStore) Close() error {
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	return nil
}

// Save upserts the run. Identity columns (keywords, options, requested_by,
// created_at) only matter on insert; lifecycle columns update every time.
func (s *MySQLStore) Save(ctx context.Context, run *models.Run) error {
	const op = "store.MySQLStore.Save"
	ctx, cancel := s.db.WithWriteTimeout(ctx)
	defer cancel()

	keywordsJSON, err := json.Marshal(run.Keywords)
	if err != nil {
		return errs.NewDB(op, "failed to marshal keywords", err)
	}
	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return errs.NewDB(op, "failed to marshal options", err)
	}
	progressJSON, err := json.Marshal(run.Progress)
	if err != nil {
		return errs.NewDB(op, "failed to marshal progress", err)
	}

	var reportJSON sql.NullString
	if run.Report != nil {
		b, err := json.Marshal(run.Report)
		if err != nil {
			return errs.NewDB(op, "failed to marshal report", err)
		}
		reportJSON = sql.NullString{String: string(b), Valid: true}
	}

	var lastErr sql.NullString
	if run.Error != "" {
		lastErr = sql.NullString{String: run.Error, Valid: true}
	}
	var requestedBy sql.NullString
	if run.RequestedBy != "" {
		requestedBy = sql.NullString{String: run.RequestedBy, Valid: true}
	}
	var startedAt, completedAt sql.NullTime
	if run.StartedAt != nil {
		startedAt = sql.NullTime{Time: *run.StartedAt, Valid: true}
	}
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDB(op, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Stmt(s.stmts["upsertRun"]).ExecContext(ctx,
		run.ID, string(run.Status), string(keywordsJSON), string(optionsJSON), string(progressJSON),
		lastErr, requestedBy, run.CreatedAt, startedAt, completedAt, reportJSON,
	); err != nil {
		return errs.NewDB(op, "failed to upsert run", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.NewDB(op, "failed to commit run upsert", err)
	}
	return nil
}

// Get retrieves a run by ID, rebuilding the JSON payload columns.
func (s *MySQLStore) Get(ctx context.Context, id string) (*models.Run, error) {
	const op = "store.MySQLStore.Get"
	ctx, cancel := s.db.WithReadTimeout(ctx)
	defer cancel()

	var (
		run           models.Run
		status        string
		keywordsJSON  string
		optionsJSON   string
		progressJSON  string
		lastErr       sql.NullString
		requestedBy   sql.NullString
		startedAt     sql.NullTime
		completedAt   sql.NullTime
		reportPayload sql.NullString
	)

	err := s.stmts["getRun"].QueryRowContext(ctx, id).Scan(
		&run.ID, &status, &keywordsJSON, &optionsJSON, &progressJSON,
		&lastErr, &requestedBy, &run.CreatedAt, &startedAt, &completedAt, &reportPayload,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errs.NewDB(op, "failed to query run", err)
	}

	run.Status = models.RunStatus(status)
	if err := json.Unmarshal([]byte(keywordsJSON), &run.Keywords); err != nil {
		return nil, errs.NewDB(op, "failed to unmarshal keywords", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &run.Options); err != nil {
		return nil, errs.NewDB(op, "failed to unmarshal options", err)
	}
	if err := json.Unmarshal([]byte(progressJSON), &run.Progress); err != nil {
		return nil, errs.NewDB(op, "failed to unmarshal progress", err)
	}
	if lastErr.Valid {
		run.Error = lastErr.String
	}
	if requestedBy.Valid {
		run.RequestedBy = requestedBy.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if reportPayload.Valid {
		var rep models.SimilarityReport
		if err := json.Unmarshal([]byte(reportPayload.String), &rep); err != nil {
			return nil, errs.NewDB(op, "failed to unmarshal report", err)
		}
		run.Report = &rep
	}

	return &run, nil
}

// List returns run summaries newest-first plus the total count for paging.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]models.RunSummary, int, error) {
	const op = "store.MySQLStore.List"
	ctx, cancel := s.db.WithReadTimeout(ctx)
	defer cancel()

	var total int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, errs.NewDB(op, "failed to count runs", err)
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Conn().QueryContext(ctx, `SELECT
	      id, status, keywords, options, progress, requested_by, created_at
	    FROM runs
	    ORDER BY created_at DESC, id ASC
	    LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, errs.NewDB(op, "failed to query runs", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var (
			sum          models.RunSummary
			status       string
			keywordsJSON string
			optionsJSON  string
			progressJSON string
			requestedBy  sql.NullString
		)
		if err := rows.Scan(&sum.ID, &status, &keywordsJSON, &optionsJSON, &progressJSON, &requestedBy, &sum.CreatedAt); err != nil {
			return nil, 0, errs.NewDB(op, "failed to scan run row", err)
		}
		sum.Status = models.RunStatus(status)

		var keywords []string
		if err := json.Unmarshal([]byte(keywordsJSON), &keywords); err != nil {
			return nil, 0, errs.NewDB(op, "failed to unmarshal keywords", err)
		}
		sum.KeywordCount = len(keywords)

		var opts models.RunOptions
		if err := json.Unmarshal([]byte(optionsJSON), &opts); err != nil {
			return nil, 0, errs.NewDB(op, "failed to unmarshal options", err)
		}
		sum.Provider = opts.Provider

		if err := json.Unmarshal([]byte(progressJSON), &sum.Progress); err != nil {
			return nil, 0, errs.NewDB(op, "failed to unmarshal progress", err)
		}
		if requestedBy.Valid {
			sum.RequestedBy = requestedBy.String
		}

		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewDB(op, "row iteration error", err)
	}

	return out, total, nil
}

// Delete removes a run.
func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	const op = "store.MySQLStore.Delete"
	ctx, cancel := s.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := s.stmts["deleteRun"].ExecContext(ctx, id)
	if err != nil {
		return errs.NewDB(op, "failed to delete run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of stored runs.
func (s *MySQLStore) Count(ctx context.Context) (int, error) {
	const op = "store.MySQLStore.Count"
	ctx, cancel := s.db.WithReadTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, errs.NewDB(op, "failed to count runs", err)
	}
	return n, nil
}

var _ RunStore = (*MySQLStore)(nil)
var _ RunStore = (*MemoryStore)(nil)
