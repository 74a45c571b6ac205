package verify

import (
	"context"

	"chronocert/internal/hptp"
)

// StatusSource supplies the current SyncStatus. Implementations exist for an
// in-process HPTP client and for the shared snapshot cache; a fetch error
// always results in the verifier failing closed.
type StatusSource interface {
	Fetch(ctx context.Context) (hptp.SyncStatus, error)
}

// LocalSource reads the snapshot from an in-process HPTP client.
type LocalSource struct {
	Client *hptp.Client
}

func (s LocalSource) Fetch(context.Context) (hptp.SyncStatus, error) {
	return s.Client.Status(), nil
}

// StaticStatusSource is a test double returning a fixed status. It is the
// only permissive fallback in the codebase and must never be wired into a
// runtime configuration path.
type StaticStatusSource struct {
	Status hptp.SyncStatus
	Err    error
}

func (s StaticStatusSource) Fetch(context.Context) (hptp.SyncStatus, error) {
	return s.Status, s.Err
}
