package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"chronocert/internal/adminauth"
	"chronocert/internal/audit"
	"chronocert/internal/certify"
	"chronocert/internal/clock"
	"chronocert/internal/hptp"
	"chronocert/internal/platform/config"
	"chronocert/internal/platform/httpserver"
	"chronocert/internal/platform/logger"
	"chronocert/internal/platform/metrics"
	"chronocert/internal/platform/middleware"
	"chronocert/internal/platform/redis"
	"chronocert/internal/snapshotcache"
	httptransport "chronocert/internal/transport/http"
	"chronocert/internal/verify"
)

// main wires the clock, sync, verification and certification services and
// keeps the server lifecycle small. Business logic lives in internal
// packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chronocert:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var auditor audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer kafka.Close()
		auditor = kafka
	}

	driverOpts := []clock.Option{clock.WithLogger(log), clock.WithMetrics(m)}
	if auditor != nil {
		driverOpts = append(driverOpts, clock.WithAuditor(auditor))
	}
	driver, err := clock.New(clock.Config{
		PreferredSource:     clock.Source(cfg.Clock.PreferredSource),
		CalibrationInterval: cfg.Clock.CalibrationInterval,
		Probe: clock.DeviceProbe{
			PTPDevice: cfg.Clock.PTPDevice,
			GPSDevice: cfg.Clock.GPSDevice,
		},
	}, driverOpts...)
	if err != nil {
		return err
	}

	clientOpts := []hptp.Option{hptp.WithLogger(log), hptp.WithMetrics(m)}

	var (
		rdb   *redis.Client
		cache *snapshotcache.Cache
	)
	if cfg.RedisURL != "" {
		rdb, err = redis.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		cache, err = snapshotcache.New(rdb.Client, snapshotcache.DefaultKey, 3*cfg.HPTP.PollInterval)
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, hptp.WithSnapshotSink(cache))
	}

	measurer := hptp.NewHTTPMeasurer(func() int64 { return driver.Timestamp().UnixNano() })
	client, err := hptp.NewClient(driver, measurer, hptp.Config{
		Peers:         cfg.HPTP.Peers,
		PollInterval:  cfg.HPTP.PollInterval,
		PeerTimeout:   cfg.HPTP.PeerTimeout,
		MinPeers:      cfg.HPTP.MinPeers,
		MaxPeers:      cfg.HPTP.MaxPeers,
		SyncThreshold: cfg.HPTP.SyncThreshold,
	}, clientOpts...)
	if err != nil {
		return err
	}

	// A peerless instance cannot synchronize itself; if a snapshot cache is
	// available it verifies against the snapshots a syncing instance
	// publishes there.
	var statusSource verify.StatusSource = verify.LocalSource{Client: client}
	if len(cfg.HPTP.Peers) == 0 && cache != nil {
		statusSource = cache
		log.Info("verifying against remote sync snapshots")
	}
	verifier, err := verify.New(statusSource, verify.Config{
		RefreshInterval: cfg.Verify.RefreshInterval,
		FutureTolerance: cfg.Verify.FutureTolerance,
		MaxAge:          cfg.Verify.MaxAge,
	}, verify.WithLogger(log), verify.WithMetrics(m))
	if err != nil {
		return err
	}

	signingKey := []byte(cfg.Certify.SigningKey)
	if len(signingKey) == 0 {
		// Development only; config.FromEnv rejects a missing key in
		// production. The ephemeral key makes certificates from this
		// process unverifiable after restart.
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		log.Warn("no signing key configured, using ephemeral key")
	}
	signer, err := certify.NewSigner(signingKey, cfg.Certify.Issuer)
	if err != nil {
		return err
	}

	health := []httptransport.HealthCheck{}
	var store certify.Store = certify.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		pg := certify.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
		health = append(health, httptransport.HealthCheck{
			Name:  "postgres",
			Check: db.PingContext,
		})
	}
	if rdb != nil {
		health = append(health, httptransport.HealthCheck{
			Name:  "redis",
			Check: rdb.Health,
		})
	}

	certOpts := []certify.Option{certify.WithLogger(log), certify.WithMetrics(m)}
	if auditor != nil {
		certOpts = append(certOpts, certify.WithAuditor(auditor))
	}
	certifier, err := certify.NewService(store, verifier, signer, cfg.Certify.ValidityWindow, certOpts...)
	if err != nil {
		return err
	}

	var admin middleware.AdminValidator
	if cfg.AdminJWTKey != "" {
		admin = adminauth.NewMiddlewareAdapter(adminauth.NewService(cfg.AdminJWTKey, cfg.Certify.Issuer))
	}

	driver.Start()
	defer driver.Stop()
	client.Start()
	defer client.Stop()
	verifier.Start()
	defer verifier.Stop()

	handler := httptransport.New(httptransport.Deps{
		Logger:    log,
		Metrics:   m,
		Driver:    driver,
		Client:    client,
		Verifier:  verifier,
		Certifier: certifier,
		Admin:     admin,
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, handler.Router())
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("chronocert started",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"clock_source", driver.Source(),
		"peers", len(cfg.HPTP.Peers),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("chronocert stopped")
	return nil
}
