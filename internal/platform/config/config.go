package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names. Production tightens startup validation.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Clock configures the clock driver.
type Clock struct {
	// PreferredSource is "gps", "ptp" or "system". Hardware sources are
	// used only when the availability probe succeeds.
	PreferredSource     string
	CalibrationInterval time.Duration
	// PTPDevice / GPSDevice are device paths the probe checks for the
	// corresponding hardware source.
	PTPDevice string
	GPSDevice string
}

// HPTP configures the peer synchronization client.
type HPTP struct {
	Peers         []string
	PollInterval  time.Duration
	PeerTimeout   time.Duration
	MinPeers      int
	MaxPeers      int
	SyncThreshold time.Duration
}

// Verify configures the timing verifier.
type Verify struct {
	RefreshInterval time.Duration
	FutureTolerance time.Duration
	MaxAge          time.Duration
}

// Certify configures certificate issuance.
type Certify struct {
	ValidityWindow time.Duration
	SigningKey     string
	Issuer         string
}

// Kafka configures the compliance audit sink. Empty Brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is the full service configuration, built from the environment so
// main stays lean.
type Config struct {
	Addr        string
	Environment string
	LogLevel    string
	Clock       Clock
	HPTP        HPTP
	Verify      Verify
	Certify     Certify
	AdminJWTKey string
	RedisURL    string
	DatabaseURL string
	Kafka       Kafka
}

// FromEnv builds the configuration from CHRONOCERT_* environment variables.
// It fails hard on configuration a production instance must not run without:
// a missing signing key is a startup error, never a dev-key fallback.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:        envOr("CHRONOCERT_ADDR", ":8080"),
		Environment: envOr("CHRONOCERT_ENV", EnvDevelopment),
		LogLevel:    envOr("CHRONOCERT_LOG_LEVEL", "info"),
		Clock: Clock{
			PreferredSource:     envOr("CHRONOCERT_CLOCK_SOURCE", "system"),
			CalibrationInterval: 0,
			PTPDevice:           os.Getenv("CHRONOCERT_PTP_DEVICE"),
			GPSDevice:           os.Getenv("CHRONOCERT_GPS_DEVICE"),
		},
		AdminJWTKey: os.Getenv("CHRONOCERT_ADMIN_JWT_KEY"),
		RedisURL:    os.Getenv("CHRONOCERT_REDIS_URL"),
		DatabaseURL: os.Getenv("CHRONOCERT_DATABASE_URL"),
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("CHRONOCERT_KAFKA_BROKERS")),
			Topic:   envOr("CHRONOCERT_KAFKA_TOPIC", "chronocert.audit"),
		},
	}

	var err error
	if cfg.Clock.CalibrationInterval, err = durationOr("CHRONOCERT_CALIBRATION_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	cfg.HPTP.Peers = splitNonEmpty(os.Getenv("CHRONOCERT_HPTP_PEERS"))
	if cfg.HPTP.PollInterval, err = durationOr("CHRONOCERT_HPTP_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HPTP.PeerTimeout, err = durationOr("CHRONOCERT_HPTP_PEER_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.HPTP.MinPeers, err = intOr("CHRONOCERT_HPTP_MIN_PEERS", 1); err != nil {
		return nil, err
	}
	if cfg.HPTP.MaxPeers, err = intOr("CHRONOCERT_HPTP_MAX_PEERS", 16); err != nil {
		return nil, err
	}
	if cfg.HPTP.SyncThreshold, err = durationOr("CHRONOCERT_HPTP_SYNC_THRESHOLD", time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.Verify.RefreshInterval, err = durationOr("CHRONOCERT_VERIFY_REFRESH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Verify.FutureTolerance, err = durationOr("CHRONOCERT_VERIFY_FUTURE_TOLERANCE", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Verify.MaxAge, err = durationOr("CHRONOCERT_VERIFY_MAX_AGE", time.Hour); err != nil {
		return nil, err
	}

	if cfg.Certify.ValidityWindow, err = durationOr("CHRONOCERT_CERT_VALIDITY", 24*time.Hour); err != nil {
		return nil, err
	}
	cfg.Certify.SigningKey = os.Getenv("CHRONOCERT_SIGNING_KEY")
	cfg.Certify.Issuer = envOr("CHRONOCERT_ISSUER", "chronocert")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment == EnvProduction {
		if c.Certify.SigningKey == "" {
			return fmt.Errorf("CHRONOCERT_SIGNING_KEY is required in production")
		}
		if c.AdminJWTKey == "" {
			return fmt.Errorf("CHRONOCERT_ADMIN_JWT_KEY is required in production")
		}
	}
	if c.HPTP.MinPeers < 1 {
		return fmt.Errorf("CHRONOCERT_HPTP_MIN_PEERS must be at least 1")
	}
	if c.HPTP.MaxPeers < c.HPTP.MinPeers {
		return fmt.Errorf("CHRONOCERT_HPTP_MAX_PEERS must be >= min peers")
	}
	if len(c.HPTP.Peers) > c.HPTP.MaxPeers {
		return fmt.Errorf("peer list exceeds CHRONOCERT_HPTP_MAX_PEERS (%d)", c.HPTP.MaxPeers)
	}
	if c.HPTP.PeerTimeout >= c.HPTP.PollInterval {
		return fmt.Errorf("CHRONOCERT_HPTP_PEER_TIMEOUT must be shorter than the poll interval")
	}
	switch c.Clock.PreferredSource {
	case "gps", "ptp", "system":
	default:
		return fmt.Errorf("CHRONOCERT_CLOCK_SOURCE must be gps, ptp or system")
	}
	return nil
}

// IsProduction reports whether the service runs with production validation.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
