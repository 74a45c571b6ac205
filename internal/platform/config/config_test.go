package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Configuration Test Suite
// =============================================================================
// Justification for unit tests: configuration validation is the last gate
// before an instance serves traffic. Production must refuse to start without
// the signing and admin keys, and malformed values must fail loudly rather
// than fall back to defaults.

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := FromEnv()
	s.Require().NoError(err)

	s.Equal(":8080", cfg.Addr)
	s.Equal(EnvDevelopment, cfg.Environment)
	s.False(cfg.IsProduction())
	s.Equal("system", cfg.Clock.PreferredSource)
	s.Equal(10*time.Second, cfg.HPTP.PollInterval)
	s.Equal(2*time.Second, cfg.HPTP.PeerTimeout)
	s.Equal(1, cfg.HPTP.MinPeers)
	s.Equal(time.Hour, cfg.Verify.MaxAge)
	s.Equal(24*time.Hour, cfg.Certify.ValidityWindow)
	s.Equal("chronocert", cfg.Certify.Issuer)
	s.Empty(cfg.Kafka.Brokers, "audit publishing is off unless brokers are set")
}

func (s *ConfigSuite) TestProductionRequiresKeys() {
	s.Run("missing signing key refuses to start", func() {
		s.T().Setenv("CHRONOCERT_ENV", EnvProduction)
		s.T().Setenv("CHRONOCERT_ADMIN_JWT_KEY", "admin-key")
		_, err := FromEnv()
		s.Require().Error(err)
		s.Contains(err.Error(), "CHRONOCERT_SIGNING_KEY")
	})

	s.Run("missing admin key refuses to start", func() {
		s.T().Setenv("CHRONOCERT_ENV", EnvProduction)
		s.T().Setenv("CHRONOCERT_SIGNING_KEY", "signing-key")
		_, err := FromEnv()
		s.Require().Error(err)
		s.Contains(err.Error(), "CHRONOCERT_ADMIN_JWT_KEY")
	})

	s.Run("both keys present starts", func() {
		s.T().Setenv("CHRONOCERT_ENV", EnvProduction)
		s.T().Setenv("CHRONOCERT_SIGNING_KEY", "signing-key")
		s.T().Setenv("CHRONOCERT_ADMIN_JWT_KEY", "admin-key")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.True(cfg.IsProduction())
	})

	s.Run("development tolerates missing keys", func() {
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Empty(cfg.Certify.SigningKey)
	})
}

func (s *ConfigSuite) TestValidation() {
	s.Run("peer timeout must undercut the poll interval", func() {
		s.T().Setenv("CHRONOCERT_HPTP_POLL_INTERVAL", "2s")
		s.T().Setenv("CHRONOCERT_HPTP_PEER_TIMEOUT", "2s")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("max peers below min peers fails", func() {
		s.T().Setenv("CHRONOCERT_HPTP_MIN_PEERS", "5")
		s.T().Setenv("CHRONOCERT_HPTP_MAX_PEERS", "3")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("peer list capped by max peers", func() {
		s.T().Setenv("CHRONOCERT_HPTP_MAX_PEERS", "2")
		s.T().Setenv("CHRONOCERT_HPTP_PEERS", "http://a:1,http://b:2,http://c:3")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("unknown clock source fails", func() {
		s.T().Setenv("CHRONOCERT_CLOCK_SOURCE", "atomic")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("malformed duration fails instead of falling back", func() {
		s.T().Setenv("CHRONOCERT_VERIFY_MAX_AGE", "one hour")
		_, err := FromEnv()
		s.Require().Error(err)
		s.Contains(err.Error(), "CHRONOCERT_VERIFY_MAX_AGE")
	})

	s.Run("malformed integer fails", func() {
		s.T().Setenv("CHRONOCERT_HPTP_MIN_PEERS", "many")
		_, err := FromEnv()
		s.Error(err)
	})
}

func (s *ConfigSuite) TestPeerAndBrokerLists() {
	s.T().Setenv("CHRONOCERT_HPTP_PEERS", " http://a:1 , http://b:2 ,")
	s.T().Setenv("CHRONOCERT_KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := FromEnv()
	s.Require().NoError(err)
	s.Equal([]string{"http://a:1", "http://b:2"}, cfg.HPTP.Peers, "entries are trimmed and empties dropped")
	s.Equal([]string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}
