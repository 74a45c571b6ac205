package certify

import (
	"context"
	"errors"
	"time"

	"chronocert/pkg/domain"
)

// ErrNotFound is returned by stores when no certificate matches the id.
var ErrNotFound = errors.New("certificate not found")

// ErrAlreadyRevoked is returned by Revoke when the certificate already
// carries a revocation marker.
var ErrAlreadyRevoked = errors.New("certificate already revoked")

// Store persists issued certificates. Revocation marks a record, it never
// deletes it, so the audit trail stays intact.
type Store interface {
	Save(ctx context.Context, cert Certificate) error
	Get(ctx context.Context, id domain.CertificateID) (Certificate, error)
	Revoke(ctx context.Context, id domain.CertificateID, revokedAt time.Time) (Certificate, error)
	ListByOperation(ctx context.Context, op domain.OperationID) ([]Certificate, error)
	Count(ctx context.Context) (total int64, revoked int64, err error)
}
