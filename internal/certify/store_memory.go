package certify

import (
	"context"
	"sort"
	"sync"
	"time"

	"chronocert/pkg/domain"
)

// MemoryStore keeps certificates in memory. Used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	certs map[domain.CertificateID]Certificate
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{certs: make(map[domain.CertificateID]Certificate)}
}

func (s *MemoryStore) Save(_ context.Context, cert Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[cert.ID] = cert
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.CertificateID) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id domain.CertificateID, revokedAt time.Time) (Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	if cert.Revoked() {
		return Certificate{}, ErrAlreadyRevoked
	}
	at := revokedAt
	cert.RevokedAt = &at
	s.certs[id] = cert
	return cert, nil
}

func (s *MemoryStore) ListByOperation(_ context.Context, op domain.OperationID) ([]Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Certificate
	for _, cert := range s.certs {
		if cert.OperationID == op {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CertifiedAt.Before(out[j].CertifiedAt)
	})
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var revoked int64
	for _, cert := range s.certs {
		if cert.Revoked() {
			revoked++
		}
	}
	return int64(len(s.certs)), revoked, nil
}

var _ Store = (*MemoryStore)(nil)
