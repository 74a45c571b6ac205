package clock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"chronocert/internal/audit"
	"chronocert/internal/platform/metrics"
)

// jumpThresholdNs is the calibration adjustment magnitude above which the
// correction is treated as an explicit, logged calibration jump rather than
// a routine damped nudge.
const jumpThresholdNs = int64(10 * time.Millisecond)

// CalibrationStatus is an introspection snapshot of the calibration loop.
// Replaced atomically as a whole value; never mutated in place.
type CalibrationStatus struct {
	Source           Source
	Capabilities     Capabilities
	OffsetNs         int64
	LastAdjustmentNs int64
	LastCalibration  time.Time
	Calibrations     uint64
}

// Config configures a Driver.
type Config struct {
	PreferredSource     Source
	CalibrationInterval time.Duration
	Probe               Probe
}

// Driver produces locally monotonic, calibration-corrected timestamps.
//
// The wall-clock value is always baseline + monotonic delta + accumulated
// calibration offset, so readings cannot go backward within a process
// lifetime except through an explicit, logged calibration jump.
type Driver struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher

	source Source
	caps   Capabilities

	baseline time.Time
	anchor   time.Time

	// mono returns elapsed time since the anchor; injectable for tests.
	mono func() time.Duration
	// sysNow is the system wall clock the calibration loop compares
	// against; injectable for tests.
	sysNow func() time.Time

	offsetNs atomic.Int64
	lastNs   atomic.Int64
	calib    atomic.Pointer[CalibrationStatus]

	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithAuditor publishes calibration jumps as audit events.
func WithAuditor(p audit.Publisher) Option {
	return func(d *Driver) { d.auditor = p }
}

// WithSystemClock injects the system clock used by the calibration loop.
func WithSystemClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.sysNow = now
		d.baseline = now()
	}
}

// WithMonotonic injects the monotonic elapsed reading, for tests that need
// to simulate counter progress without wall-clock delay.
func WithMonotonic(mono func() time.Duration) Option {
	return func(d *Driver) { d.mono = mono }
}

// New selects a clock source and constructs a Driver. A hardware source is
// chosen only when preferred by configuration and reported available by the
// probe; otherwise the driver falls back to the system monotonic timer.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if cfg.Probe == nil {
		cfg.Probe = DeviceProbe{}
	}
	source := SourceSystem
	switch cfg.PreferredSource {
	case SourceGPS, SourcePTP:
		if cfg.Probe.Available(cfg.PreferredSource) {
			source = cfg.PreferredSource
		}
	case SourceSystem, "":
	default:
		return nil, fmt.Errorf("unknown clock source %q", cfg.PreferredSource)
	}

	anchor := time.Now()
	d := &Driver{
		logger:   slog.Default(),
		source:   source,
		caps:     CapabilitiesFor(source),
		baseline: anchor,
		anchor:   anchor,
		sysNow:   time.Now,
		interval: cfg.CalibrationInterval,
	}
	d.mono = func() time.Duration { return time.Since(d.anchor) }
	for _, opt := range opts {
		opt(d)
	}

	if source != cfg.PreferredSource && cfg.PreferredSource != "" && cfg.PreferredSource != SourceSystem {
		d.logger.Warn("hardware clock source unavailable, falling back to system timer",
			"preferred", string(cfg.PreferredSource))
	}

	d.calib.Store(&CalibrationStatus{Source: source, Capabilities: d.caps})
	return d, nil
}

// Source returns the selected clock source.
func (d *Driver) Source() Source {
	return d.source
}

// Timestamp returns the current calibration-corrected reading.
func (d *Driver) Timestamp() Timestamp {
	mono := d.mono()
	ns := d.baseline.Add(mono).UnixNano() + d.offsetNs.Load()

	// Clamp small backward steps from damped corrections; only an explicit
	// calibration jump may move the output backward.
	for {
		last := d.lastNs.Load()
		if ns <= last {
			ns = last
			break
		}
		if d.lastNs.CompareAndSwap(last, ns) {
			break
		}
	}

	return Timestamp{
		Wall:      time.Unix(0, ns),
		Mono:      mono,
		Source:    d.source,
		Precision: d.caps.Precision,
	}
}

// FemtoTimestamp is a Timestamp split to femtosecond components. FemtoFrac
// stays zero unless genuine sub-nanosecond hardware resolution backs it.
type FemtoTimestamp struct {
	Timestamp
	FemtoFrac int64
}

// FemtosecondTimestamp returns the current reading with femtosecond
// components. The sub-nanosecond fraction is never fabricated: for every
// source in the capability table it is zero and the precision tag reflects
// the coarsest verified resolution.
func (d *Driver) FemtosecondTimestamp() FemtoTimestamp {
	return FemtoTimestamp{Timestamp: d.Timestamp()}
}

// CalibrationStatus returns the latest calibration snapshot.
func (d *Driver) CalibrationStatus() CalibrationStatus {
	return *d.calib.Load()
}

// Calibrate runs one calibration cycle: it compares the driver's derived
// wall-clock estimate against the system clock and folds half of the
// observed drift into the accumulated offset. Damping by half prevents a
// single noisy sample from oscillating the clock.
func (d *Driver) Calibrate() {
	expected := d.baseline.Add(d.mono()).UnixNano() + d.offsetNs.Load()
	observed := d.sysNow().UnixNano()
	drift := observed - expected
	adjustment := drift / 2

	d.offsetNs.Add(adjustment)

	if adjustment < -jumpThresholdNs || adjustment > jumpThresholdNs {
		// An explicit jump is allowed to move the clock backward; release
		// the monotonic clamp so readings follow the corrected offset.
		d.lastNs.Store(0)
		d.logger.Warn("calibration jump applied",
			"adjustment_ns", adjustment,
			"observed_drift_ns", drift,
			"source", string(d.source))
		if d.metrics != nil {
			d.metrics.CalibrationJumps.Inc()
		}
		if d.auditor != nil {
			event := audit.Event{
				Category: audit.CategoryOperations,
				Action:   audit.ActionCalibrationJump,
				Detail: map[string]string{
					"adjustment_ns":     strconv.FormatInt(adjustment, 10),
					"observed_drift_ns": strconv.FormatInt(drift, 10),
					"source":            string(d.source),
				},
			}
			if err := d.auditor.Emit(context.Background(), event); err != nil {
				d.logger.Warn("audit emit failed", "action", event.Action, "error", err)
			}
		}
	} else {
		d.logger.Debug("calibration applied",
			"adjustment_ns", adjustment,
			"observed_drift_ns", drift)
	}

	prev := d.calib.Load()
	d.calib.Store(&CalibrationStatus{
		Source:           d.source,
		Capabilities:     d.caps,
		OffsetNs:         d.offsetNs.Load(),
		LastAdjustmentNs: adjustment,
		LastCalibration:  d.sysNow(),
		Calibrations:     prev.Calibrations + 1,
	})
}

// Start launches the periodic calibration loop. It is a no-op when the
// calibration interval is zero.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil || d.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Calibrate()
			}
		}
	}()
}

// Stop halts the calibration loop and waits for it to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
