package certify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"chronocert/internal/audit"
	"chronocert/internal/hptp"
	"chronocert/internal/platform/metrics"
	"chronocert/internal/verify"
	"chronocert/pkg/domain"
	dErrors "chronocert/pkg/domain-errors"
)

// TimestampVerifier is the timing-check port the service certifies against.
type TimestampVerifier interface {
	VerifyTimestamp(ts time.Time, venue domain.VenueClass) verify.Result
	Status() hptp.SyncStatus
}

// SyncState summarizes clock health for compliance reports.
type SyncState string

const (
	SyncStateSynchronized   SyncState = "synchronized"
	SyncStateDegraded       SyncState = "degraded"
	SyncStateUnsynchronized SyncState = "unsynchronized"
)

// ComplianceStatus is the aggregate FINRA 613 posture of the service.
type ComplianceStatus struct {
	SyncState      SyncState `json:"syncState"`
	Compliant      bool      `json:"compliant"`
	DriftMs        float64   `json:"driftMs"`
	ToleranceMs    float64   `json:"toleranceMs"`
	ChecksTotal    int64     `json:"checksTotal"`
	ChecksPassed   int64     `json:"checksPassed"`
	ComplianceRate float64   `json:"complianceRate"`
	CertsIssued    int64     `json:"certificatesIssued"`
	CertsRevoked   int64     `json:"certificatesRevoked"`
	EvaluatedAt    time.Time `json:"evaluatedAt"`
}

// Service issues, verifies and revokes timing certificates.
type Service struct {
	store    Store
	verifier TimestampVerifier
	signer   *Signer
	auditor  audit.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	validity time.Duration
	now      func() time.Time

	checksTotal  atomic.Int64
	checksPassed atomic.Int64
}

// Option customizes the service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit event publisher.
func WithAuditor(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithClock sets the wall-clock source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the certification service.
func NewService(store Store, verifier TimestampVerifier, signer *Signer, validity time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "store is required")
	}
	if verifier == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "verifier is required")
	}
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "signer is required")
	}
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	s := &Service{
		store:    store,
		verifier: verifier,
		signer:   signer,
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Certify verifies the timestamp against the current sync state and, if
// every check passes, issues a signed certificate. A failed check returns
// a VerificationFailedError carrying the per-check reasons.
func (s *Service) Certify(ctx context.Context, req CertifyRequest) (Certificate, error) {
	if req.Timestamp.IsZero() {
		return Certificate{}, dErrors.New(dErrors.CodeInvalidInput, "timestamp is required")
	}

	result := s.verifier.VerifyTimestamp(req.Timestamp, req.VenueClass)
	s.checksTotal.Add(1)
	if !result.Passed {
		if s.metrics != nil {
			s.metrics.VerificationFailures.Inc()
		}
		s.emit(ctx, audit.Event{
			Category:    audit.CategoryCompliance,
			Action:      audit.ActionVerificationFailed,
			OperationID: string(req.OperationID),
			Detail:      map[string]string{"reasons": strings.Join(result.FailureReasons, "; ")},
		})
		return Certificate{}, &VerificationFailedError{Reasons: result.FailureReasons, Result: result}
	}
	s.checksPassed.Add(1)

	certifiedAt := s.now().UTC()
	cert := Certificate{
		ID:            domain.NewCertificateID(),
		FormatVersion: FormatVersion,
		Timestamp:     req.Timestamp.UTC(),
		TimestampNs:   req.Timestamp.UnixNano(),
		CertifiedAt:   certifiedAt,
		ValidUntil:    certifiedAt.Add(s.validity),
		Issuer:        s.signer.Issuer(),
		OperationID:   req.OperationID,
		DataHash:      req.DataHash,
		VenueClass:    req.VenueClass,
		AccuracyNs:    result.AccuracyNs,
		Finra613:      result.FINRA613Compliant,
		MiFIDII:       result.MiFID2Compliant,
		Verification:  result,
	}
	cert.Signature = s.signer.Sign(cert)

	if err := s.store.Save(ctx, cert); err != nil {
		return Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesIssued.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategoryCompliance,
		Action:        audit.ActionCertificateIssued,
		CertificateID: cert.ID.String(),
		OperationID:   string(req.OperationID),
	})
	s.logger.Info("certificate issued",
		"certificate_id", cert.ID,
		"operation_id", req.OperationID,
		"venue_class", req.VenueClass,
		"accuracy", result.Accuracy)
	return cert, nil
}

// Get fetches a certificate by id.
func (s *Service) Get(ctx context.Context, id domain.CertificateID) (Certificate, error) {
	cert, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Certificate{}, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
		}
		return Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return cert, nil
}

// Verify checks a stored certificate's signature, expiry and revocation.
// Valid only when the signature holds and the certificate is neither
// expired nor revoked. The judgment is a value, never an error.
func (s *Service) Verify(ctx context.Context, id domain.CertificateID) (VerificationOutcome, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return VerificationOutcome{}, err
	}

	now := s.now().UTC()
	outcome := VerificationOutcome{
		CertificateID:  cert.ID,
		SignatureValid: s.signer.Check(cert),
		Expired:        now.After(cert.ValidUntil),
		Revoked:        cert.Revoked(),
		CheckedAt:      now,
	}
	outcome.Valid = outcome.SignatureValid && !outcome.Expired && !outcome.Revoked && cert.Verification.Passed

	if s.metrics != nil {
		label := "valid"
		if !outcome.Valid {
			label = "invalid"
		}
		s.metrics.CertificateChecks.WithLabelValues(label).Inc()
	}
	return outcome, nil
}

// Revoke marks a certificate revoked. The record is retained. Revoking an
// already revoked certificate is a conflict.
func (s *Service) Revoke(ctx context.Context, id domain.CertificateID) (Certificate, error) {
	// The store applies the marker conditionally, so concurrent revocations
	// of the same certificate resolve to exactly one success.
	cert, err := s.store.Revoke(ctx, id, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Certificate{}, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, ErrAlreadyRevoked):
			return Certificate{}, dErrors.Wrap(err, dErrors.CodeConflict, "certificate already revoked")
		default:
			return Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "revoke certificate")
		}
	}

	if s.metrics != nil {
		s.metrics.CertificatesRevoked.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategoryCompliance,
		Action:        audit.ActionCertificateRevoked,
		CertificateID: cert.ID.String(),
	})
	s.logger.Info("certificate revoked", "certificate_id", cert.ID)
	return cert, nil
}

// ListByOperation returns every certificate issued for the operation.
func (s *Service) ListByOperation(ctx context.Context, op domain.OperationID) ([]Certificate, error) {
	certs, err := s.store.ListByOperation(ctx, op)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list certificates")
	}
	return certs, nil
}

// finra613ToleranceMs is the FINRA 613 drift tolerance in milliseconds.
const finra613ToleranceMs = 50

// FINRA613Status reports the service's aggregate compliance posture:
// current sync state, drift against the FINRA 613 tolerance, and the
// running pass rate of certification checks.
func (s *Service) FINRA613Status(ctx context.Context) (ComplianceStatus, error) {
	status := s.verifier.Status()
	driftMs := float64(status.OffsetNs) / 1e6
	if driftMs < 0 {
		driftMs = -driftMs
	}

	state := SyncStateUnsynchronized
	if status.Synchronized {
		state = SyncStateSynchronized
		if driftMs > finra613ToleranceMs {
			state = SyncStateDegraded
		}
	}

	total := s.checksTotal.Load()
	passed := s.checksPassed.Load()
	rate := 1.0
	if total > 0 {
		rate = float64(passed) / float64(total)
	}

	issued, revoked, err := s.store.Count(ctx)
	if err != nil {
		return ComplianceStatus{}, dErrors.Wrap(err, dErrors.CodeInternal, "count certificates")
	}

	return ComplianceStatus{
		SyncState:      state,
		Compliant:      status.Synchronized && driftMs <= finra613ToleranceMs,
		DriftMs:        driftMs,
		ToleranceMs:    finra613ToleranceMs,
		ChecksTotal:    total,
		ChecksPassed:   passed,
		ComplianceRate: rate,
		CertsIssued:    issued,
		CertsRevoked:   revoked,
		EvaluatedAt:    s.now().UTC(),
	}, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

