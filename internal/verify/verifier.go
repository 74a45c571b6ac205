package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chronocert/internal/hptp"
	"chronocert/internal/platform/metrics"
	"chronocert/pkg/domain"
)

// Names of the ordered checks VerifyTimestamp performs.
const (
	CheckFormat       = "format_valid"
	CheckNotFuture    = "not_in_future"
	CheckNotStale     = "not_stale"
	CheckSynchronized = "clock_synchronized"
	CheckDrift        = "drift_within_tolerance"
)

// Check is one named verification step with its outcome.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Result is the outcome of verifying one timestamp against the sync state
// at evaluation time. It is a value: compliance failure is reported through
// it, never as an error.
type Result struct {
	Passed            bool     `json:"passed"`
	Checks            []Check  `json:"checks"`
	FailureReasons    []string `json:"failureReasons"`
	AccuracyNs        int64    `json:"accuracyNs"`
	Accuracy          string   `json:"accuracy"`
	Synchronized      bool     `json:"synchronized"`
	FINRA613Compliant bool     `json:"finra613Compliant"`
	MiFID2Compliant   bool     `json:"mifid2Compliant"`
}

// Config configures the verifier's tolerances and refresh cadence.
type Config struct {
	RefreshInterval time.Duration
	FutureTolerance time.Duration
	MaxAge          time.Duration
}

// Verifier validates caller-supplied timestamps against regulatory tolerance
// windows using a cached SyncStatus. The cache refreshes on a fixed interval
// from the configured source; on fetch failure the verifier marks the clock
// unsynchronized with maximal drift. There is no fail-open branch.
type Verifier struct {
	source  StatusSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	cached atomic.Pointer[hptp.SyncStatus]
	now    func() time.Time

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock injects the wall clock used for future/age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New constructs a Verifier. The status source is required; the verifier
// starts fail-closed until the first successful refresh.
func New(source StatusSource, cfg Config, opts ...Option) (*Verifier, error) {
	if source == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.FutureTolerance <= 0 {
		cfg.FutureTolerance = 5 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	v := &Verifier{
		source: source,
		logger: slog.Default(),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	initial := hptp.Unsynchronized()
	v.cached.Store(&initial)
	return v, nil
}

// Refresh fetches the sync status once. On failure the cached status is
// replaced with the fail-closed value.
func (v *Verifier) Refresh(ctx context.Context) {
	status, err := v.source.Fetch(ctx)
	if err != nil {
		failed := hptp.Unsynchronized()
		v.cached.Store(&failed)
		v.logger.Warn("sync status fetch failed, failing closed", "error", err.Error())
		return
	}
	v.cached.Store(&status)
}

// Status returns the cached sync snapshot.
func (v *Verifier) Status() hptp.SyncStatus {
	return *v.cached.Load()
}

// VerifyTimestamp validates ts against the cached sync status. The venue
// class selects the MiFID II divergence tier.
func (v *Verifier) VerifyTimestamp(ts time.Time, venue domain.VenueClass) Result {
	return Evaluate(ts, venue, v.Status(), v.now(), v.cfg)
}

// Evaluate is the pure verification core: identical inputs always yield an
// identical Result.
func Evaluate(ts time.Time, venue domain.VenueClass, status hptp.SyncStatus, now time.Time, cfg Config) Result {
	r := Result{Synchronized: status.Synchronized}

	record := func(name string, passed bool, detail string) {
		r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: detail})
		if !passed {
			r.FailureReasons = append(r.FailureReasons, fmt.Sprintf("%s: %s", name, detail))
		}
	}

	formatOK := !ts.IsZero() && ts.Year() >= 1970 && ts.Year() <= 9999
	record(CheckFormat, formatOK, "timestamp must be a valid instant")

	if formatOK {
		ahead := ts.Sub(now)
		record(CheckNotFuture, ahead <= cfg.FutureTolerance,
			fmt.Sprintf("timestamp is %s ahead of local time (tolerance %s)", ahead, cfg.FutureTolerance))

		age := now.Sub(ts)
		record(CheckNotStale, age <= cfg.MaxAge,
			fmt.Sprintf("timestamp is %s old (max age %s)", age, cfg.MaxAge))
	}

	record(CheckSynchronized, status.Synchronized,
		fmt.Sprintf("clock synchronized=%t, stratum=%d", status.Synchronized, status.Stratum))

	offset := absNs(status.OffsetNs)
	record(CheckDrift, offset < finra613LimitNs,
		fmt.Sprintf("clock offset %dns against %dns regulatory bound", offset, finra613LimitNs))

	driftMs := float64(offset) / float64(time.Millisecond)
	r.FINRA613Compliant = status.Synchronized && offset < finra613LimitNs
	switch venue {
	case domain.VenueClassHFT:
		r.MiFID2Compliant = status.Synchronized && driftMs <= 1
	default:
		r.MiFID2Compliant = status.Synchronized && driftMs <= 0.1
	}

	r.AccuracyNs = offset + status.JitterNs
	r.Accuracy = renderAccuracy(r.AccuracyNs)
	r.Passed = len(r.FailureReasons) == 0
	return r
}

// renderAccuracy renders a nanosecond figure in the most natural unit.
func renderAccuracy(ns int64) string {
	f := float64(ns)
	switch {
	case ns < 1_000:
		return fmt.Sprintf("%.1fns", f)
	case ns < 1_000_000:
		return fmt.Sprintf("%.2fµs", f/1_000)
	default:
		return fmt.Sprintf("%.2fms", f/1_000_000)
	}
}

// Start launches the periodic refresh loop.
func (v *Verifier) Start() {
	v.lifecycleMu.Lock()
	defer v.lifecycleMu.Unlock()
	if v.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan struct{})

	go func() {
		defer close(v.done)
		// Prime the cache before the first tick.
		v.Refresh(ctx)
		ticker := time.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v.Refresh(ctx)
			}
		}
	}()
}

// Stop halts the refresh loop and waits for it to exit.
func (v *Verifier) Stop() {
	v.lifecycleMu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
