package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/sniffer"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ledger/internal/domain/resolution"
)

// StoredMapping is a remembered header layout: the next file with the same
// fingerprint imports without re-detection.
type StoredMapping struct {
	ID               uuid.UUID
	Fingerprint      string
	BankName         string
	Delimiter        string
	HeaderRow        int
	Columns          sniffer.FieldColumns
	IsEuropeanFormat bool
	DateFormat       string
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists import artifacts.
type Repository interface {
	SaveTransactions(ctx context.Context, jobID uuid.UUID, txs []ledger.Transaction) error
	SaveAudit(ctx context.Context, entries []resolution.AuditEntry) error
	SaveMapping(ctx context.Context, mapping *StoredMapping) error
	GetMappingByFingerprint(ctx context.Context, fingerprint string) (*StoredMapping, error)
	ListSuspense(ctx context.Context) ([]ledger.Transaction, error)
	UpdateResolutions(ctx context.Context, txs []ledger.Transaction) error
}

// PostgresRepository is the pgx-backed implementation.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository over a pgx pool or mock.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveTransactions inserts the batch for one import job.
func (r *PostgresRepository) SaveTransactions(ctx context.Context, jobID uuid.UUID, txs []ledger.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, import_job_id, account_id, booked_at, description_raw, description_clean,
			 debit_cents, credit_cents, balance_cents, vendor_id, gl_account_code,
			 confidence, source_strategy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for i := range txs {
		tx := &txs[i]
		if _, err := r.db.Exec(ctx, query,
			tx.ID,
			jobID,
			tx.AccountID,
			tx.Date,
			tx.DescriptionRaw,
			tx.DescriptionClean,
			tx.DebitCents,
			tx.CreditCents,
			tx.BalanceCents,
			tx.VendorID,
			tx.GLAccountCode,
			tx.Confidence,
			tx.SourceStrategy,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveAudit appends cascade audit entries.
func (r *PostgresRepository) SaveAudit(ctx context.Context, entries []resolution.AuditEntry) error {
	query := `
		INSERT INTO resolution_audit
			(transaction_id, description, strategy, pattern, vendor_id, confidence, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range entries {
		if _, err := r.db.Exec(ctx, query,
			e.TransactionID,
			e.Description,
			e.Strategy,
			e.Pattern,
			e.VendorID,
			e.Confidence,
			e.At,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveMapping upserts the layout for a header fingerprint.
func (r *PostgresRepository) SaveMapping(ctx context.Context, mapping *StoredMapping) error {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}

	query := `
		INSERT INTO bank_mappings
			(id, fingerprint, bank_name, delimiter, header_row,
			 date_col, desc_col, debit_col, credit_col, amount_col, balance_col, reference_col,
			 is_european_format, date_format)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (fingerprint) DO UPDATE
		SET delimiter = EXCLUDED.delimiter,
		    header_row = EXCLUDED.header_row,
		    is_european_format = EXCLUDED.is_european_format,
		    date_format = EXCLUDED.date_format
	`

	_, err := r.db.Exec(ctx, query,
		mapping.ID,
		mapping.Fingerprint,
		mapping.BankName,
		mapping.Delimiter,
		mapping.HeaderRow,
		mapping.Columns.Date,
		mapping.Columns.Description,
		mapping.Columns.Debit,
		mapping.Columns.Credit,
		mapping.Columns.Amount,
		mapping.Columns.Balance,
		mapping.Columns.Reference,
		mapping.IsEuropeanFormat,
		mapping.DateFormat,
	)
	return err
}

// ListSuspense returns every stored transaction still parked in suspense.
func (r *PostgresRepository) ListSuspense(ctx context.Context) ([]ledger.Transaction, error) {
	query := `
		SELECT id, account_id, booked_at, description_raw, description_clean,
		       debit_cents, credit_cents, balance_cents, gl_account_code, confidence, source_strategy
		FROM transactions
		WHERE source_strategy = 'unresolved'
		ORDER BY booked_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.AccountID,
			&tx.Date,
			&tx.DescriptionRaw,
			&tx.DescriptionClean,
			&tx.DebitCents,
			&tx.CreditCents,
			&tx.BalanceCents,
			&tx.GLAccountCode,
			&tx.Confidence,
			&tx.SourceStrategy,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// UpdateResolutions rewrites the resolution metadata for already persisted
// transactions. Amounts and descriptions never change after import.
func (r *PostgresRepository) UpdateResolutions(ctx context.Context, txs []ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET vendor_id = $2, gl_account_code = $3, confidence = $4, source_strategy = $5
		WHERE id = $1
	`

	for i := range txs {
		tx := &txs[i]
		if _, err := r.db.Exec(ctx, query,
			tx.ID,
			tx.VendorID,
			tx.GLAccountCode,
			tx.Confidence,
			tx.SourceStrategy,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetMappingByFingerprint returns the stored layout, or nil when unseen.
func (r *PostgresRepository) GetMappingByFingerprint(ctx context.Context, fingerprint string) (*StoredMapping, error) {
	query := `
		SELECT id, fingerprint, bank_name, delimiter, header_row,
		       date_col, desc_col, debit_col, credit_col, amount_col, balance_col, reference_col,
		       is_european_format, date_format
		FROM bank_mappings
		WHERE fingerprint = $1
	`

	var m StoredMapping
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&m.ID,
		&m.Fingerprint,
		&m.BankName,
		&m.Delimiter,
		&m.HeaderRow,
		&m.Columns.Date,
		&m.Columns.Description,
		&m.Columns.Debit,
		&m.Columns.Credit,
		&m.Columns.Amount,
		&m.Columns.Balance,
		&m.Columns.Reference,
		&m.IsEuropeanFormat,
		&m.DateFormat,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
