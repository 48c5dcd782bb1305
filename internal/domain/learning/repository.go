package learning

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by both
// the real pool and pgxmock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists vendors and learned patterns.
type Repository interface {
	ListVendors(ctx context.Context) ([]ledger.Vendor, error)
	ListPatterns(ctx context.Context) ([]ledger.LearnedPattern, error)
	SaveVendor(ctx context.Context, vendor ledger.Vendor) error
	SavePattern(ctx context.Context, pattern ledger.LearnedPattern) error
	UpdateVendorWeight(ctx context.Context, vendorID uuid.UUID, weight float64) error
	DeleteVendor(ctx context.Context, vendorID uuid.UUID) error
}

// PostgresRepository is the pgx-backed implementation. suspenseCode is the
// GL account that absorbs transactions whose vendor is severed.
type PostgresRepository struct {
	db           DB
	suspenseCode string
}

// NewPostgresRepository creates a repository over a pgx pool or mock.
func NewPostgresRepository(db DB, suspenseCode string) *PostgresRepository {
	return &PostgresRepository{db: db, suspenseCode: suspenseCode}
}

// ListVendors fetches all vendors with their confirmed pattern strings.
func (r *PostgresRepository) ListVendors(ctx context.Context) ([]ledger.Vendor, error) {
	query := `
		SELECT id, canonical_name, default_gl_account, patterns, weight
		FROM vendors
		ORDER BY canonical_name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []ledger.Vendor
	for rows.Next() {
		var v ledger.Vendor
		if err := rows.Scan(
			&v.ID,
			&v.CanonicalName,
			&v.DefaultGLAccount,
			&v.Patterns,
			&v.Weight,
		); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}

	return vendors, rows.Err()
}

// ListPatterns fetches all learned patterns. Patterns whose vendor is gone
// are excluded by the join, so a severed vendor can never match again.
func (r *PostgresRepository) ListPatterns(ctx context.Context) ([]ledger.LearnedPattern, error) {
	query := `
		SELECT p.id, p.vendor_id, p.pattern, p.kind, p.gl_account_code, p.confidence
		FROM learned_patterns p
		JOIN vendors v ON v.id = p.vendor_id
		ORDER BY p.created_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []ledger.LearnedPattern
	for rows.Next() {
		var p ledger.LearnedPattern
		if err := rows.Scan(
			&p.ID,
			&p.VendorID,
			&p.Pattern,
			&p.Kind,
			&p.GLAccountCode,
			&p.Confidence,
		); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// SaveVendor upserts a vendor.
func (r *PostgresRepository) SaveVendor(ctx context.Context, vendor ledger.Vendor) error {
	query := `
		INSERT INTO vendors (id, canonical_name, default_gl_account, patterns, weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET canonical_name = EXCLUDED.canonical_name,
		    default_gl_account = EXCLUDED.default_gl_account,
		    patterns = EXCLUDED.patterns,
		    weight = EXCLUDED.weight
	`

	_, err := r.db.Exec(ctx, query,
		vendor.ID,
		vendor.CanonicalName,
		vendor.DefaultGLAccount,
		vendor.Patterns,
		vendor.Weight,
	)
	return err
}

// SavePattern inserts one learned pattern.
func (r *PostgresRepository) SavePattern(ctx context.Context, pattern ledger.LearnedPattern) error {
	query := `
		INSERT INTO learned_patterns (id, vendor_id, pattern, kind, gl_account_code, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		pattern.ID,
		pattern.VendorID,
		pattern.Pattern,
		pattern.Kind,
		pattern.GLAccountCode,
		pattern.Confidence,
	)
	return err
}

// UpdateVendorWeight persists a reinforcement or penalty.
func (r *PostgresRepository) UpdateVendorWeight(ctx context.Context, vendorID uuid.UUID, weight float64) error {
	query := `UPDATE vendors SET weight = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, vendorID, weight)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}

// DeleteVendor removes the vendor and cascades to its learned patterns and
// to the resolution metadata of its transactions. Severed transactions land
// back in suspense with the suspense account code, the same state Unresolve
// produces during an import.
func (r *PostgresRepository) DeleteVendor(ctx context.Context, vendorID uuid.UUID) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM learned_patterns WHERE vendor_id = $1`, vendorID); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx,
		`UPDATE transactions
		 SET vendor_id = NULL, gl_account_code = $2, confidence = 0, source_strategy = 'unresolved'
		 WHERE vendor_id = $1`, vendorID, r.suspenseCode); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM vendors WHERE id = $1`, vendorID); err != nil {
		return err
	}
	return nil
}
