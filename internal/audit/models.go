package audit

import (
	"context"
	"time"
)

// Category classifies audit events by their primary purpose, enabling
// different retention policies and routing downstream.
type Category string

const (
	// CategoryCompliance covers events with regulatory significance:
	// certificate issuance, revocation, failed verifications.
	CategoryCompliance Category = "compliance"
	// CategoryOperations covers events useful for operational visibility:
	// calibration jumps, quorum loss.
	CategoryOperations Category = "operations"
)

// Action names the audited action.
type Action string

const (
	ActionCertificateIssued  Action = "certificate_issued"
	ActionCertificateRevoked Action = "certificate_revoked"
	ActionVerificationFailed Action = "verification_failed"
	ActionCalibrationJump    Action = "calibration_jump"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category      Category          `json:"category"`
	Action        Action            `json:"action"`
	Timestamp     time.Time         `json:"timestamp"`
	CertificateID string            `json:"certificateId,omitempty"`
	OperationID   string            `json:"operationId,omitempty"`
	RequestID     string            `json:"requestId,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`
}

// Publisher captures structured audit events. Implementations must be safe
// for concurrent use and must never block domain logic on sink availability.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
