package adminauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "chronocert/pkg/domain-errors"
)

// =============================================================================
// Admin Auth Test Suite
// =============================================================================
// Justification for unit tests: revocation is guarded solely by these tokens.
// The tests prove the mint/validate round trip, expiry, signature-key
// mismatch, and that a valid token without the admin role is still refused.

type AdminAuthSuite struct {
	suite.Suite
	service *Service
}

func TestAdminAuthSuite(t *testing.T) {
	suite.Run(t, new(AdminAuthSuite))
}

func (s *AdminAuthSuite) SetupTest() {
	s.service = NewService("test-signing-key", "chronocert")
}

func (s *AdminAuthSuite) TestRoundTrip() {
	token, err := s.service.GenerateToken("operator-1", RoleAdmin, time.Hour)
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.service.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal("operator-1", claims.Subject)
	s.Equal(RoleAdmin, claims.Role)
	s.Equal("chronocert", claims.Issuer)
	s.NotEmpty(claims.ID, "each token carries a unique id")
}

func (s *AdminAuthSuite) TestExpiredToken() {
	token, err := s.service.GenerateToken("operator-1", RoleAdmin, -time.Minute)
	s.Require().NoError(err)

	_, err = s.service.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.IsCode(err, dErrors.CodeUnauthorized))
	s.Contains(err.Error(), "expired")
}

func (s *AdminAuthSuite) TestWrongKey() {
	other := NewService("different-key", "chronocert")
	token, err := other.GenerateToken("operator-1", RoleAdmin, time.Hour)
	s.Require().NoError(err)

	_, err = s.service.ValidateToken(token)
	s.True(dErrors.IsCode(err, dErrors.CodeUnauthorized))
}

func (s *AdminAuthSuite) TestGarbageToken() {
	_, err := s.service.ValidateToken("not.a.jwt")
	s.True(dErrors.IsCode(err, dErrors.CodeUnauthorized))
}

func (s *AdminAuthSuite) TestRequireAdmin() {
	s.Run("admin role passes", func() {
		token, err := s.service.GenerateToken("operator-1", RoleAdmin, time.Hour)
		s.Require().NoError(err)
		claims, err := s.service.RequireAdmin(token)
		s.Require().NoError(err)
		s.Equal(RoleAdmin, claims.Role)
	})

	s.Run("viewer role is refused", func() {
		token, err := s.service.GenerateToken("auditor", "viewer", time.Hour)
		s.Require().NoError(err)
		_, err = s.service.RequireAdmin(token)
		s.True(dErrors.IsCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *AdminAuthSuite) TestMiddlewareAdapter() {
	adapter := NewMiddlewareAdapter(s.service)

	token, err := s.service.GenerateToken("operator-1", RoleAdmin, time.Hour)
	s.Require().NoError(err)
	s.NoError(adapter.RequireAdmin(token))
	s.Error(adapter.RequireAdmin("bogus"))
}
