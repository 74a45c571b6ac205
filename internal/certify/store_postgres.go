package certify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chronocert/pkg/domain"
)

// PostgresStore persists certificates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate ensures the certificates table exists.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS certificates (
	id             TEXT PRIMARY KEY,
	format_version TEXT        NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	timestamp_ns   BIGINT      NOT NULL,
	certified_at   TIMESTAMPTZ NOT NULL,
	valid_until    TIMESTAMPTZ NOT NULL,
	issuer         TEXT        NOT NULL,
	operation_id   TEXT        NOT NULL DEFAULT '',
	data_hash      TEXT        NOT NULL DEFAULT '',
	venue_class    TEXT        NOT NULL,
	accuracy_ns    BIGINT      NOT NULL,
	finra613       BOOLEAN     NOT NULL,
	mifid2         BOOLEAN     NOT NULL,
	verification   JSONB       NOT NULL,
	signature      TEXT        NOT NULL,
	revoked_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS certificates_operation_id_idx ON certificates (operation_id) WHERE operation_id <> '';`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate certificates: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, cert Certificate) error {
	verification, err := json.Marshal(cert.Verification)
	if err != nil {
		return fmt.Errorf("marshal verification snapshot: %w", err)
	}
	const q = `
INSERT INTO certificates (
	id, format_version, ts, timestamp_ns, certified_at, valid_until,
	issuer, operation_id, data_hash, venue_class, accuracy_ns,
	finra613, mifid2, verification, signature
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = s.db.ExecContext(ctx, q,
		cert.ID.String(),
		cert.FormatVersion,
		cert.Timestamp,
		cert.TimestampNs,
		cert.CertifiedAt,
		cert.ValidUntil,
		cert.Issuer,
		cert.OperationID.String(),
		cert.DataHash,
		string(cert.VenueClass),
		cert.AccuracyNs,
		cert.Finra613,
		cert.MiFIDII,
		verification,
		cert.Signature,
	)
	if err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	return nil
}

const certificateColumns = `
	id, format_version, ts, timestamp_ns, certified_at, valid_until,
	issuer, operation_id, data_hash, venue_class, accuracy_ns,
	finra613, mifid2, verification, signature, revoked_at`

func (s *PostgresStore) Get(ctx context.Context, id domain.CertificateID) (Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+certificateColumns+` FROM certificates WHERE id = $1`, id.String())
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, ErrNotFound
		}
		return Certificate{}, fmt.Errorf("get certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, id domain.CertificateID, revokedAt time.Time) (Certificate, error) {
	// The predicate makes concurrent revocations race-free: exactly one
	// caller wins the update, the rest see the marker already set.
	row := s.db.QueryRowContext(ctx, `
UPDATE certificates SET revoked_at = $2
WHERE id = $1 AND revoked_at IS NULL
RETURNING`+certificateColumns, id.String(), revokedAt)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.Get(ctx, id); getErr == nil {
				return Certificate{}, ErrAlreadyRevoked
			}
			return Certificate{}, ErrNotFound
		}
		return Certificate{}, fmt.Errorf("revoke certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) ListByOperation(ctx context.Context, op domain.OperationID) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+certificateColumns+` FROM certificates WHERE operation_id = $1 ORDER BY certified_at`,
		op.String())
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, int64, error) {
	var total, revoked int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(revoked_at) FROM certificates`).Scan(&total, &revoked)
	if err != nil {
		return 0, 0, fmt.Errorf("count certificates: %w", err)
	}
	return total, revoked, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (Certificate, error) {
	var (
		cert         Certificate
		rawID        string
		rawOp        string
		rawVenue     string
		verification []byte
		revokedAt    sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&cert.FormatVersion,
		&cert.Timestamp,
		&cert.TimestampNs,
		&cert.CertifiedAt,
		&cert.ValidUntil,
		&cert.Issuer,
		&rawOp,
		&cert.DataHash,
		&rawVenue,
		&cert.AccuracyNs,
		&cert.Finra613,
		&cert.MiFIDII,
		&verification,
		&cert.Signature,
		&revokedAt,
	)
	if err != nil {
		return Certificate{}, err
	}
	if err := json.Unmarshal(verification, &cert.Verification); err != nil {
		return Certificate{}, fmt.Errorf("unmarshal verification snapshot: %w", err)
	}
	cert.ID = domain.CertificateID(rawID)
	cert.OperationID = domain.OperationID(rawOp)
	cert.VenueClass = domain.VenueClass(rawVenue)
	if revokedAt.Valid {
		at := revokedAt.Time
		cert.RevokedAt = &at
	}
	return cert, nil
}

var _ Store = (*PostgresStore)(nil)
