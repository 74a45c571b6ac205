package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "chronocert/pkg/domain-errors"
)

// CertificateID identifies an issued timing certificate. Certificates are
// keyed by a v4 UUID so concurrent issuance never collides.
type CertificateID string

// NewCertificateID generates a fresh certificate id.
func NewCertificateID() CertificateID {
	return CertificateID(uuid.NewString())
}

// ParseCertificateID validates external input as a certificate id.
func ParseCertificateID(s string) (CertificateID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate id cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate id must be a UUID")
	}
	return CertificateID(s), nil
}

func (id CertificateID) String() string { return string(id) }

// OperationID is the caller-supplied identifier of the business operation a
// certificate attests. Opaque to this system beyond basic shape checks.
type OperationID string

const maxOperationIDLen = 256

// ParseOperationID validates external input as an operation id.
func ParseOperationID(s string) (OperationID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "operation id cannot be empty")
	}
	if len(s) > maxOperationIDLen {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "operation id exceeds %d characters", maxOperationIDLen)
	}
	return OperationID(s), nil
}

func (id OperationID) String() string { return string(id) }

// PeerID identifies a configured HPTP peer. Derived from the peer address at
// startup, stable for the process lifetime.
type PeerID string

func (id PeerID) String() string { return string(id) }
