package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/crestline-hoa/invoice-cli/internal/db"
	"github.com/crestline-hoa/invoice-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_queue_entry":   `INSERT INTO invoice_queue (id, invoice_id, association_id, image_url, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_queue_entry": `UPDATE invoice_queue SET status = $1, completed_at = $2 WHERE id = $3 AND status = 'processing'`,
	"fail_queue_entry":     `UPDATE invoice_queue SET status = $1, error = $2, completed_at = $3 WHERE id = $4 AND status = 'processing'`,
	"get_queue_entry":      `SELECT id, invoice_id, association_id, image_url, status, error, started_at, completed_at FROM invoice_queue WHERE id = $1`,
	"insert_result":        `INSERT INTO processing_results (id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	"list_gl_accounts":     `SELECT id, association_id, code, name, category, active FROM gl_accounts WHERE association_id = $1 AND active ORDER BY code`,
	"list_vendor_patterns": `SELECT id, association_id, vendor_name, gl_account, occurrences, last_seen FROM vendor_patterns WHERE association_id = $1 ORDER BY occurrences DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoice_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	invoice_id     TEXT,
	association_id TEXT NOT NULL,
	image_url      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'processing',
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS processing_results (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	queue_id             TEXT NOT NULL REFERENCES invoice_queue(id),
	association_id       TEXT NOT NULL,
	raw_text             TEXT NOT NULL,
	invoice              JSONB NOT NULL,
	confidence           JSONB NOT NULL,
	stages               JSONB,
	processing_time_ms   BIGINT NOT NULL,
	model_version        TEXT NOT NULL,
	vision_model_version TEXT NOT NULL DEFAULT '',
	prompt_version       TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS gl_accounts (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	association_id TEXT NOT NULL,
	code           TEXT NOT NULL,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (association_id, code)
);

CREATE TABLE IF NOT EXISTS vendor_patterns (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	association_id TEXT NOT NULL,
	vendor_name    TEXT NOT NULL,
	gl_account     TEXT NOT NULL,
	occurrences    INTEGER NOT NULL DEFAULT 1,
	last_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (association_id, vendor_name)
);

CREATE INDEX IF NOT EXISTS idx_invoice_queue_status ON invoice_queue(status);
CREATE INDEX IF NOT EXISTS idx_invoice_queue_association ON invoice_queue(association_id);
CREATE INDEX IF NOT EXISTS idx_processing_results_queue ON processing_results(queue_id);
CREATE INDEX IF NOT EXISTS idx_processing_results_association ON processing_results(association_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_gl_accounts_association ON gl_accounts(association_id) WHERE active;
CREATE INDEX IF NOT EXISTS idx_vendor_patterns_association ON vendor_patterns(association_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pool returns the underlying database pool for bulk-load helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) CreateQueueEntry(ctx context.Context, invoiceID, associationID, imageURL string) (*model.QueueEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO invoice_queue (id, invoice_id, association_id, image_url, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, invoiceID, associationID, imageURL, string(model.QueueStatusProcessing), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert queue entry")
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

func (s *PostgresStore) CompleteQueueEntry(ctx context.Context, entryID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invoice_queue SET status = $1, completed_at = $2 WHERE id = $3 AND status = 'processing'`,
		string(model.QueueStatusCompleted), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete queue entry %s", entryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: queue entry %s not in processing state", entryID)
	}
	return nil
}

func (s *PostgresStore) FailQueueEntry(ctx context.Context, entryID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invoice_queue SET status = $1, error = $2, completed_at = $3 WHERE id = $4 AND status = 'processing'`,
		string(model.QueueStatusFailed), errMsg, time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail queue entry %s", entryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: queue entry %s not in processing state", entryID)
	}
	return nil
}

func (s *PostgresStore) GetQueueEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, invoice_id, association_id, image_url, status, error, started_at, completed_at FROM invoice_queue WHERE id = $1`,
		entryID,
	)

	var e model.QueueEntry
	var invoiceID, errMsg *string
	var completedAt *time.Time
	if err := row.Scan(&e.ID, &invoiceID, &e.AssociationID, &e.ImageURL, &e.Status, &errMsg, &e.StartedAt, &completedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: get queue entry %s", entryID)
	}
	if invoiceID != nil {
		e.InvoiceID = *invoiceID
	}
	if errMsg != nil {
		e.Error = *errMsg
	}
	e.CompletedAt = completedAt

	return &e, nil
}

func (s *PostgresStore) ListQueueEntries(ctx context.Context, filter QueueFilter) ([]model.QueueEntry, error) {
	query := `SELECT id, invoice_id, association_id, image_url, status, error, started_at, completed_at FROM invoice_queue WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.AssociationID != "" {
		args = append(args, filter.AssociationID)
		query += ` AND association_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queue entries")
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		var invoiceID, errMsg *string
		var completedAt *time.Time
		if err := rows.Scan(&e.ID, &invoiceID, &e.AssociationID, &e.ImageURL, &e.Status, &errMsg, &e.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan queue entry")
		}
		if invoiceID != nil {
			e.InvoiceID = *invoiceID
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		e.CompletedAt = completedAt
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list queue entries")
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.ProcessingResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	invoiceJSON, err := json.Marshal(result.Invoice)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal invoice")
	}
	confidenceJSON, err := json.Marshal(result.Confidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal confidence")
	}
	stagesJSON, err := json.Marshal(result.Stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO processing_results (id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.ID, result.QueueID, result.AssociationID, result.RawText,
		invoiceJSON, confidenceJSON, stagesJSON,
		result.ProcessingTimeMS, result.ModelVersion, result.VisionModelVersion, result.PromptVersion, result.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert result")
}

func (s *PostgresStore) GetResult(ctx context.Context, resultID string) (*model.ProcessingResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at FROM processing_results WHERE id = $1`,
		resultID,
	)
	return scanResult(row)
}

func (s *PostgresStore) ListResults(ctx context.Context, associationID string, limit int) ([]model.ProcessingResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, queue_id, association_id, raw_text, invoice, confidence, stages, processing_time_ms, model_version, vision_model_version, prompt_version, created_at FROM processing_results WHERE association_id = $1 ORDER BY created_at DESC LIMIT $2`,
		associationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.ProcessingResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results")
}

func (s *PostgresStore) ListGLAccounts(ctx context.Context, associationID string) ([]model.GLAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, association_id, code, name, category, active FROM gl_accounts WHERE association_id = $1 AND active ORDER BY code`,
		associationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list gl accounts")
	}
	defer rows.Close()

	var accounts []model.GLAccount
	for rows.Next() {
		var a model.GLAccount
		if err := rows.Scan(&a.ID, &a.AssociationID, &a.Code, &a.Name, &a.Category, &a.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gl account")
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "postgres: list gl accounts")
}

func (s *PostgresStore) ListVendorPatterns(ctx context.Context, associationID string) ([]model.VendorPattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, association_id, vendor_name, gl_account, occurrences, last_seen FROM vendor_patterns WHERE association_id = $1 ORDER BY occurrences DESC`,
		associationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendor patterns")
	}
	defer rows.Close()

	var patterns []model.VendorPattern
	for rows.Next() {
		var p model.VendorPattern
		if err := rows.Scan(&p.ID, &p.AssociationID, &p.VendorName, &p.GLAccount, &p.Occurrences, &p.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list vendor patterns")
}

func (s *PostgresStore) UpsertVendorPattern(ctx context.Context, associationID, vendorName, glAccount string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vendor_patterns (id, association_id, vendor_name, gl_account, occurrences, last_seen)
		 VALUES ($1, $2, $3, $4, 1, now())
		 ON CONFLICT (association_id, vendor_name)
		 DO UPDATE SET gl_account = EXCLUDED.gl_account, occurrences = vendor_patterns.occurrences + 1, last_seen = now()`,
		uuid.New().String(), associationID, vendorName, glAccount,
	)
	return eris.Wrap(err, "postgres: upsert vendor pattern")
}

var glAccountColumns = []string{"id", "association_id", "code", "name", "category", "active"}

// BulkInsertGLAccounts COPYs the accounts into a temp table and merges them
// into gl_accounts, so re-importing a chart updates existing codes instead
// of tripping the (association_id, code) unique constraint.
func (s *PostgresStore) BulkInsertGLAccounts(ctx context.Context, accounts []model.GLAccount) (int64, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, a.AssociationID, a.Code, a.Name, a.Category, a.Active})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin bulk load")
	}

	n, err := mergeGLAccounts(ctx, tx, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit bulk load")
	}
	return n, nil
}

func mergeGLAccounts(ctx context.Context, tx pgx.Tx, rows [][]any) (int64, error) {
	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE gl_accounts_load (LIKE gl_accounts INCLUDING DEFAULTS) ON COMMIT DROP`,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: create load table")
	}

	if _, err := db.CopyFrom(ctx, tx, "gl_accounts_load", glAccountColumns, rows); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO gl_accounts (id, association_id, code, name, category, active)
		 SELECT id, association_id, code, name, category, active FROM gl_accounts_load
		 ON CONFLICT (association_id, code)
		 DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category, active = EXCLUDED.active`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: merge gl accounts")
	}
	return tag.RowsAffected(), nil
}

// scanResult reads one processing_results row from either a pgx.Row or pgx.Rows.
func scanResult(row pgx.Row) (*model.ProcessingResult, error) {
	var r model.ProcessingResult
	var invoiceJSON, confidenceJSON []byte
	var stagesJSON *[]byte
	if err := row.Scan(&r.ID, &r.QueueID, &r.AssociationID, &r.RawText,
		&invoiceJSON, &confidenceJSON, &stagesJSON,
		&r.ProcessingTimeMS, &r.ModelVersion, &r.VisionModelVersion, &r.PromptVersion, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "postgres: get result")
		}
		return nil, eris.Wrap(err, "postgres: scan result")
	}
	if err := json.Unmarshal(invoiceJSON, &r.Invoice); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal invoice")
	}
	if err := json.Unmarshal(confidenceJSON, &r.Confidence); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal confidence")
	}
	if stagesJSON != nil && len(*stagesJSON) > 0 {
		if err := json.Unmarshal(*stagesJSON, &r.Stages); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stages")
		}
	}
	return &r, nil
}
