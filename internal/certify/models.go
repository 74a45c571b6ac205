package certify

import (
	"fmt"
	"strings"
	"time"

	"chronocert/internal/verify"
	"chronocert/pkg/domain"
)

// FormatVersion is embedded in every certificate and in its signature
// input, so signatures cannot be replayed across format changes.
const FormatVersion = "1.0"

// Certificate attests that a timestamp passed verification at issue time.
type Certificate struct {
	ID            domain.CertificateID `json:"id"`
	FormatVersion string               `json:"formatVersion"`
	Timestamp     time.Time            `json:"timestamp"`
	TimestampNs   int64                `json:"timestampNs"`
	CertifiedAt   time.Time            `json:"certifiedAt"`
	ValidUntil    time.Time            `json:"validUntil"`
	Issuer        string               `json:"issuer"`
	OperationID   domain.OperationID   `json:"operationId,omitempty"`
	DataHash      string               `json:"dataHash,omitempty"`
	VenueClass    domain.VenueClass    `json:"venueClass"`
	AccuracyNs    int64                `json:"accuracyNs"`
	Finra613      bool                 `json:"finra613Compliant"`
	MiFIDII       bool                 `json:"mifid2Compliant"`
	Verification  verify.Result        `json:"verification"`
	Signature     string               `json:"signature"`
	RevokedAt     *time.Time           `json:"revokedAt,omitempty"`
}

// Revoked reports whether the certificate has been revoked.
func (c Certificate) Revoked() bool {
	return c.RevokedAt != nil
}

// CertifyRequest carries the parameters of a certification attempt.
type CertifyRequest struct {
	Timestamp   time.Time
	OperationID domain.OperationID
	VenueClass  domain.VenueClass
	DataHash    string
}

// VerificationOutcome is what callers get back from Verify: a structural
// and cryptographic judgment of a stored certificate.
type VerificationOutcome struct {
	CertificateID  domain.CertificateID `json:"certificateId"`
	Valid          bool                 `json:"valid"`
	SignatureValid bool                 `json:"signatureValid"`
	Expired        bool                 `json:"expired"`
	Revoked        bool                 `json:"revoked"`
	CheckedAt      time.Time            `json:"checkedAt"`
}

// VerificationFailedError is returned when a timestamp fails the timing
// checks and no certificate can be issued. Reasons list every failed check.
type VerificationFailedError struct {
	Reasons []string
	Result  verify.Result
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("timestamp failed verification: %s", strings.Join(e.Reasons, "; "))
}
