package certify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	dErrors "chronocert/pkg/domain-errors"
)

// Signer produces and checks HMAC-SHA256 signatures over a certificate's
// canonical fields. The canonical string pins format version, identity,
// the certified instant and the certifying instant, so altering any of
// them invalidates the signature.
type Signer struct {
	key    []byte
	issuer string
}

// NewSigner validates the key and returns a signer bound to the issuer.
func NewSigner(key []byte, issuer string) (*Signer, error) {
	if len(key) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signing key is required")
	}
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer is required")
	}
	return &Signer{key: key, issuer: issuer}, nil
}

// Issuer returns the issuer name signatures are bound to.
func (s *Signer) Issuer() string {
	return s.issuer
}

func (s *Signer) canonical(cert Certificate) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s",
		cert.FormatVersion,
		cert.ID,
		cert.TimestampNs,
		cert.CertifiedAt.UnixNano(),
		s.issuer,
	)
}

// Sign computes the hex-encoded signature for the certificate.
func (s *Signer) Sign(cert Certificate) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(s.canonical(cert)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Check recomputes the signature and compares it in constant time.
func (s *Signer) Check(cert Certificate) bool {
	want, err := hex.DecodeString(cert.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(s.canonical(cert)))
	return hmac.Equal(want, mac.Sum(nil))
}
