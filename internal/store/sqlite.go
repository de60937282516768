package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/crestline-hoa/invoice-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and single-operator deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS invoice_queue (
	id             TEXT PRIMARY KEY,
	invoice_id     TEXT,
	association_id TEXT NOT NULL,
	image_url      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'processing',
	error          TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at   DATETIME
);

CREATE TABLE IF NOT EXISTS processing_results (
	id                   TEXT PRIMARY KEY,
	queue_id             TEXT NOT NULL REFERENCES invoice_queue(id),
	association_id       TEXT NOT NULL,
	raw_text             TEXT NOT NULL,
	invoice              TEXT NOT NULL,
	confidence           TEXT NOT NULL,
	stages               TEXT,
	processing_time_ms   INTEGER NOT NULL,
	model_version        TEXT NOT NULL,
	vision_model_version TEXT NOT NULL DEFAULT '',
	prompt_version       TEXT NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS gl_accounts (
	id             TEXT PRIMARY KEY,
	association_id TEXT NOT NULL,
	code           TEXT NOT NULL,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	active         INTEGER NOT NULL DEFAULT 1,
	UNIQUE (association_id, code)
);

CREATE TABLE IF NOT EXISTS vendor_patterns (
	id             TEXT PRIMARY KEY,
	association_id TEXT NOT NULL,
	vendor_name    TEXT NOT NULL,
	gl_account     TEXT NOT NULL,
	occurrences    INTEGER NOT NULL DEFAULT 1,
	last_seen      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (association_id, vendor_name)
);

CREATE INDEX IF NOT EXISTS idx_invoice_queue_status ON invoice_queue(status);
CREATE INDEX IF NOT EXISTS idx_invoice_queue_association ON invoice_queue(association_id);
CREATE INDEX IF NOT EXISTS idx_processing_results_association ON processing_results(association_id);
CREATE INDEX IF NOT EXISTS idx_gl_accounts_association ON gl_accounts(association_id);
CREATE INDEX IF NOT EXISTS idx_vendor_patterns_association ON vendor_patterns(association_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateQueueEntry(ctx context.Context, invoiceID, associationID, imageURL string) (*model.QueueEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoice_queue (id, invoice_id, association_id, image_url, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, invoiceID, associationID, imageURL, string(model.QueueStatusProcessing), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert queue entry")
	}

	return &model.QueueEntry{
		ID:            id,
		InvoiceID:     invoiceID,
		AssociationID: associationID,
		ImageURL:      imageURL,
		Status:        model.QueueStatusProcessing,
		StartedAt:     now,
	}, nil
}

func (s *SQLiteStore) CompleteQueueEntry(ctx context.Context, entryID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoice_queue SET status = ?, completed_at = ? WHERE id = ? AND status = 'processing'`,
		string(model.QueueStatusCompleted), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete queue entry %s", entryID)
	}
	return checkTerminalTransition(res, entryID)
}

func (s *SQLiteStore) FailQueueEntry(ctx context.Context, entryID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoice_queue SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = 'processing'`,
		string(model.QueueStatusFailed), errMsg, time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail queue entry %s", entryID)
	}
	return checkTerminalTransition(res, entryID)
}

func checkTerminalTransition(res sql.Result, entryID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: queue entry %s not in processing state", entryID)
	}
	return nil
}

func (s *SQLiteStore) GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, association_id, image_url, status, error, started_at, completed_at FROM invoice_queue WHERE id = ?`,
		entryID,
	)

	var e model.QueueEntry
	var invoiceID, errMsg sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&e.ID, &invoiceID, &e.AssociationID, &e.ImageURL, &e.Status, &errMsg, &e.StartedAt, &completedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get queue entry %s", entryID)
	}
	e.InvoiceID = invoiceID.String
	e.Error = errMsg.String
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func (s *SQLiteStore) ListQueueEntries(ctx context.Context, filter QueueFilter) ([]model.QueueEntry, error) {
	query := `SELECT id, invoice_id, association_id, image_url, status, error, started_at, completed_at FROM invoice_queue WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssociationID != "" {
		query += ` AND association_id = ?`
		args = append(args, filter.AssociationID)
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queue entries")
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		var invoiceID, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&e.ID, &invoiceID, &e.AssociationID, &e.ImageURL, &e.Status, &errMsg, &e.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan queue entry")
		}
		e.InvoiceID = invoiceID.String
		e.Error = errMsg.String
		if completedAt.Valid {
			e.CompletedAt = &completedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list queue entries")
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.ProcessingResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	invoiceJSON, err := json.Marshal(result.Invoice)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal invoice")
	}
	confidenceJSON, err := json.Marshal(result.Confidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal confidence")
	}
	stagesJSON, err := json.Marshal(result.Stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO processing_results (id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.QueueID, result.AssociationID, result.RawText,
		string(invoiceJSON), string(confidenceJSON), string(stagesJSON),
		result.ProcessingTimeMS, result.ModelVersion, result.VisionModelVersion, result.PromptVersion, result.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert result")
}

func (s *SQLiteStore) GetResult(ctx context.Context, resultID string) (*model.ProcessingResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at FROM processing_results WHERE id = ?`,
		resultID,
	)
	return scanSQLiteResult(row.Scan)
}

func (s *SQLiteStore) ListResults(ctx context.Context, associationID string, limit int) ([]model.ProcessingResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at FROM processing_results WHERE association_id = ? ORDER BY created_at DESC LIMIT ?`,
		associationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.ProcessingResult
	for rows.Next() {
		r, err := scanSQLiteResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results")
}

func scanSQLiteResult(scan func(dest ...any) error) (*model.ProcessingResult, error) {
	var r model.ProcessingResult
	var invoiceJSON, confidenceJSON string
	var stagesJSON sql.NullString
	if err := scan(&r.ID, &r.QueueID, &r.AssociationID, &r.RawText,
		&invoiceJSON, &confidenceJSON, &stagesJSON,
		&r.ProcessingTimeMS, &r.ModelVersion, &r.VisionModelVersion, &r.PromptVersion, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result")
	}
	if err := json.Unmarshal([]byte(invoiceJSON), &r.Invoice); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal invoice")
	}
	if err := json.Unmarshal([]byte(confidenceJSON), &r.Confidence); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal confidence")
	}
	if stagesJSON.Valid && stagesJSON.String != "" && stagesJSON.String != "null" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &r.Stages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stages")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListGLAccounts(ctx context.Context, associationID string) ([]model.GLAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, association_id, code, name, category, active FROM gl_accounts WHERE association_id = ? AND active = 1 ORDER BY code`,
		associationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list gl accounts")
	}
	defer rows.Close()

	var accounts []model.GLAccount
	for rows.Next() {
		var a model.GLAccount
		if err := rows.Scan(&a.ID, &a.AssociationID, &a.Code, &a.Name, &a.Category, &a.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gl account")
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "sqlite: list gl accounts")
}

func (s *SQLiteStore) ListVendorPatterns(ctx context.Context, associationID string) ([]model.VendorPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, association_id, vendor_name, gl_account, occurrences, last_seen FROM vendor_patterns WHERE association_id = ? ORDER BY occurrences DESC`,
		associationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendor patterns")
	}
	defer rows.Close()

	var patterns []model.VendorPattern
	for rows.Next() {
		var p model.VendorPattern
		if err := rows.Scan(&p.ID, &p.AssociationID, &p.VendorName, &p.GLAccount, &p.Occurrences, &p.LastSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list vendor patterns")
}

func (s *SQLiteStore) UpsertVendorPattern(ctx context.Context, associationID, vendorName, glAccount string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendor_patterns (id, association_id, vendor_name, gl_account, occurrences, last_seen)
		 VALUES (?, ?, ?, ?, 1, datetime('now'))
		 ON CONFLICT (association_id, vendor_name)
		 DO UPDATE SET gl_account = excluded.gl_account, occurrences = occurrences + 1, last_seen = datetime('now')`,
		uuid.New().String(), associationID, vendorName, glAccount,
	)
	return eris.Wrap(err, "sqlite: upsert vendor pattern")
}

func (s *SQLiteStore) BulkInsertGLAccounts(ctx context.Context, accounts []model.GLAccount) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, a := range accounts {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gl_accounts (id, association_id, code, name, category, active) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (association_id, code) DO UPDATE SET name = excluded.name, category = excluded.category, active = excluded.active`,
			id, a.AssociationID, a.Code, a.Name, a.Category, a.Active,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert gl account %s", a.Code)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}
