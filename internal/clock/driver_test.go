package clock

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronocert/internal/audit"
)

// =============================================================================
// Clock Driver Test Suite
// =============================================================================
// Justification for unit tests: the driver is the root of every timestamp
// the service emits. Source selection, the monotonicity guarantee and the
// damped calibration arithmetic are exercised with injected clocks so no
// test depends on wall-clock sleeping.

type DriverSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestDriverSuite(t *testing.T) {
	suite.Run(t, new(DriverSuite))
}

func (s *DriverSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *DriverSuite) TestSourceSelection() {
	s.Run("hardware source needs configuration and a passing probe", func() {
		d, err := New(Config{
			PreferredSource: SourcePTP,
			Probe:           staticProbe{SourcePTP: true},
		}, WithLogger(s.logger))
		s.Require().NoError(err)
		s.Equal(SourcePTP, d.Source())
	})

	s.Run("failing probe falls back to the system timer", func() {
		d, err := New(Config{
			PreferredSource: SourceGPS,
			Probe:           staticProbe{},
		}, WithLogger(s.logger))
		s.Require().NoError(err)
		s.Equal(SourceSystem, d.Source())
	})

	s.Run("probe alone never selects a hardware source", func() {
		d, err := New(Config{
			Probe: staticProbe{SourceGPS: true, SourcePTP: true},
		}, WithLogger(s.logger))
		s.Require().NoError(err)
		s.Equal(SourceSystem, d.Source())
	})

	s.Run("unknown source is rejected", func() {
		_, err := New(Config{PreferredSource: "atomic"}, WithLogger(s.logger))
		s.Error(err)
	})

	s.Run("capabilities follow the selected source", func() {
		d, err := New(Config{
			PreferredSource: SourceGPS,
			Probe:           staticProbe{SourceGPS: true},
		}, WithLogger(s.logger))
		s.Require().NoError(err)
		calib := d.CalibrationStatus()
		s.Equal(int64(1), calib.Capabilities.ResolutionNs)
		s.Equal(int64(10), calib.Capabilities.AccuracyPPB)
	})
}

func (s *DriverSuite) TestTimestampMonotonicity() {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var elapsed time.Duration
	d, err := New(Config{},
		WithLogger(s.logger),
		WithSystemClock(func() time.Time { return base.Add(elapsed) }),
		WithMonotonic(func() time.Duration { return elapsed }),
	)
	s.Require().NoError(err)

	elapsed = 10 * time.Millisecond
	first := d.Timestamp()

	elapsed = 20 * time.Millisecond
	second := d.Timestamp()
	s.Greater(second.UnixNano(), first.UnixNano())

	// A small backward correction is clamped: readings hold rather than
	// step back.
	d.offsetNs.Add(-int64(5 * time.Millisecond))
	clamped := d.Timestamp()
	s.GreaterOrEqual(clamped.UnixNano(), second.UnixNano())
}

func (s *DriverSuite) TestCalibrate() {
	s.Run("applies half of the observed drift", func() {
		base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		var elapsed time.Duration
		var sysOffset time.Duration
		d, err := New(Config{},
			WithLogger(s.logger),
			WithSystemClock(func() time.Time { return base.Add(elapsed + sysOffset) }),
			WithMonotonic(func() time.Duration { return elapsed }),
		)
		s.Require().NoError(err)

		// System clock runs 4ms ahead of the derived estimate.
		sysOffset = 4 * time.Millisecond
		d.Calibrate()

		calib := d.CalibrationStatus()
		s.Equal(int64(2*time.Millisecond), calib.OffsetNs)
		s.Equal(int64(2*time.Millisecond), calib.LastAdjustmentNs)
		s.Equal(uint64(1), calib.Calibrations)

		// A second cycle halves the remaining 2ms.
		d.Calibrate()
		s.Equal(int64(3*time.Millisecond), d.CalibrationStatus().OffsetNs)
	})

	s.Run("large correction is a logged jump that may step backward", func() {
		var logs strings.Builder
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		var elapsed time.Duration
		var sysOffset time.Duration
		d, err := New(Config{},
			WithLogger(logger),
			WithSystemClock(func() time.Time { return base.Add(elapsed + sysOffset) }),
			WithMonotonic(func() time.Duration { return elapsed }),
		)
		s.Require().NoError(err)

		elapsed = time.Millisecond
		before := d.Timestamp()

		// 100ms of drift is far past the 10ms jump threshold.
		sysOffset = -100 * time.Millisecond
		d.Calibrate()
		s.Contains(logs.String(), "calibration jump applied")

		after := d.Timestamp()
		s.Less(after.UnixNano(), before.UnixNano(), "a jump releases the monotonic clamp")
	})

	s.Run("jump emits an audit event, damped correction does not", func() {
		sink := audit.NewMemorySink()

		base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		var elapsed time.Duration
		var sysOffset time.Duration
		d, err := New(Config{},
			WithLogger(s.logger),
			WithAuditor(sink),
			WithSystemClock(func() time.Time { return base.Add(elapsed + sysOffset) }),
			WithMonotonic(func() time.Duration { return elapsed }),
		)
		s.Require().NoError(err)

		// 4ms of drift stays under the jump threshold: nothing is recorded.
		sysOffset = 4 * time.Millisecond
		d.Calibrate()
		s.Empty(sink.Events())

		sysOffset = -100 * time.Millisecond
		d.Calibrate()

		events := sink.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.CategoryOperations, events[0].Category)
		s.Equal(audit.ActionCalibrationJump, events[0].Action)
		s.Equal(string(SourceSystem), events[0].Detail["source"])
		s.NotEmpty(events[0].Detail["adjustment_ns"])
		s.NotEmpty(events[0].Detail["observed_drift_ns"])
	})
}

func (s *DriverSuite) TestFemtosecondTimestamp() {
	d, err := New(Config{}, WithLogger(s.logger))
	s.Require().NoError(err)

	ft := d.FemtosecondTimestamp()
	s.Zero(ft.FemtoFrac, "sub-nanosecond precision is never fabricated")
	s.Equal(PrecisionNanosecond, ft.Precision)

	femto := ft.Femtoseconds()
	s.True(strings.HasSuffix(femto, "000000"), "nanosecond reading scaled to femtoseconds: %s", femto)
}

func (s *DriverSuite) TestCalibrationLoop() {
	d, err := New(Config{CalibrationInterval: 10 * time.Millisecond}, WithLogger(s.logger))
	s.Require().NoError(err)

	d.Start()
	s.Eventually(func() bool {
		return d.CalibrationStatus().Calibrations > 0
	}, time.Second, 5*time.Millisecond)
	d.Stop()

	// Stop is idempotent and Start after Stop works.
	d.Stop()
	d.Start()
	d.Stop()
}
