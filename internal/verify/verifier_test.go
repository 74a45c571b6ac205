package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronocert/internal/hptp"
	"chronocert/pkg/domain"
)

// =============================================================================
// Timing Verifier Test Suite
// =============================================================================
// Justification for unit tests: Evaluate is the pure core every compliance
// decision flows through. The suite pins the check ordering, the regulatory
// flags, the fail-closed refresh policy and the accuracy rendering.

type VerifierSuite struct {
	suite.Suite
	now time.Time
	cfg Config
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.now = time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	s.cfg = Config{
		RefreshInterval: 5 * time.Second,
		FutureTolerance: 5 * time.Second,
		MaxAge:          time.Hour,
	}
}

func (s *VerifierSuite) syncedStatus(offsetNs int64) hptp.SyncStatus {
	return hptp.SyncStatus{
		Synchronized: true,
		Stratum:      2,
		OffsetNs:     offsetNs,
		LastSync:     s.now.Add(-time.Second),
		PeerCount:    3,
	}
}

func (s *VerifierSuite) TestEvaluate() {
	s.Run("ten minute old timestamp with 5ms drift", func() {
		ts := s.now.Add(-10 * time.Minute)
		r := Evaluate(ts, domain.VenueClassHFT, s.syncedStatus(int64(5*time.Millisecond)), s.now, s.cfg)

		s.True(r.Passed)
		s.True(r.FINRA613Compliant, "5ms is inside the 50ms FINRA bound")
		s.False(r.MiFID2Compliant, "5ms exceeds the 1ms HFT tier")
		s.Empty(r.FailureReasons)
	})

	s.Run("gateway tier is stricter than hft", func() {
		status := s.syncedStatus(int64(500 * time.Microsecond))
		hft := Evaluate(s.now, domain.VenueClassHFT, status, s.now, s.cfg)
		gw := Evaluate(s.now, domain.VenueClassGateway, status, s.now, s.cfg)

		s.True(hft.MiFID2Compliant, "0.5ms passes the 1ms tier")
		s.False(gw.MiFID2Compliant, "0.5ms fails the 0.1ms tier")
	})

	s.Run("checks run in order with stable names", func() {
		r := Evaluate(s.now, domain.VenueClassGateway, s.syncedStatus(0), s.now, s.cfg)
		names := make([]string, len(r.Checks))
		for i, c := range r.Checks {
			names[i] = c.Name
		}
		s.Equal([]string{CheckFormat, CheckNotFuture, CheckNotStale, CheckSynchronized, CheckDrift}, names)
	})

	s.Run("future timestamp beyond tolerance fails", func() {
		r := Evaluate(s.now.Add(10*time.Second), domain.VenueClassGateway, s.syncedStatus(0), s.now, s.cfg)
		s.False(r.Passed)
		s.Contains(r.FailureReasons[0], CheckNotFuture)
	})

	s.Run("future timestamp inside tolerance passes", func() {
		r := Evaluate(s.now.Add(3*time.Second), domain.VenueClassGateway, s.syncedStatus(0), s.now, s.cfg)
		s.True(r.Passed)
	})

	s.Run("stale timestamp fails", func() {
		r := Evaluate(s.now.Add(-2*time.Hour), domain.VenueClassGateway, s.syncedStatus(0), s.now, s.cfg)
		s.False(r.Passed)
		s.Contains(r.FailureReasons[0], CheckNotStale)
	})

	s.Run("zero timestamp fails format and skips window checks", func() {
		r := Evaluate(time.Time{}, domain.VenueClassGateway, s.syncedStatus(0), s.now, s.cfg)
		s.False(r.Passed)
		s.Len(r.Checks, 3, "window checks are skipped for an invalid instant")
	})

	s.Run("unsynchronized clock fails and clears compliance flags", func() {
		r := Evaluate(s.now, domain.VenueClassGateway, hptp.Unsynchronized(), s.now, s.cfg)
		s.False(r.Passed)
		s.False(r.FINRA613Compliant)
		s.False(r.MiFID2Compliant)
		s.False(r.Synchronized)
	})

	s.Run("offset beyond the regulatory bound fails the drift check", func() {
		r := Evaluate(s.now, domain.VenueClassGateway, s.syncedStatus(int64(80*time.Millisecond)), s.now, s.cfg)
		s.False(r.Passed)
		s.False(r.FINRA613Compliant)
	})

	s.Run("offset exactly at the regulatory bound is out of tolerance", func() {
		r := Evaluate(s.now, domain.VenueClassGateway, s.syncedStatus(finra613LimitNs), s.now, s.cfg)
		s.False(r.Passed)
		s.False(r.FINRA613Compliant, "the drift check and the compliance flag agree at the boundary")

		r = Evaluate(s.now, domain.VenueClassGateway, s.syncedStatus(finra613LimitNs-1), s.now, s.cfg)
		s.True(r.Passed)
		s.True(r.FINRA613Compliant)
	})

	s.Run("deterministic for identical inputs", func() {
		ts := s.now.Add(-time.Minute)
		status := s.syncedStatus(int64(3 * time.Millisecond))
		a := Evaluate(ts, domain.VenueClassHFT, status, s.now, s.cfg)
		b := Evaluate(ts, domain.VenueClassHFT, status, s.now, s.cfg)
		s.Equal(a, b)
	})

	s.Run("accuracy sums offset and jitter", func() {
		status := s.syncedStatus(40_000)
		status.JitterNs = 2_000
		r := Evaluate(s.now, domain.VenueClassGateway, status, s.now, s.cfg)
		s.Equal(int64(42_000), r.AccuracyNs)
	})
}

func (s *VerifierSuite) TestRenderAccuracy() {
	s.Equal("250.0ns", renderAccuracy(250))
	s.Equal("42.00µs", renderAccuracy(42_000))
	s.Equal("5.25ms", renderAccuracy(5_250_000))
}

func (s *VerifierSuite) TestRefresh() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.Run("caches the fetched status", func() {
		src := StaticStatusSource{Status: s.syncedStatus(123)}
		v, err := New(src, s.cfg, WithLogger(logger))
		s.Require().NoError(err)

		v.Refresh(context.Background())
		s.Equal(int64(123), v.Status().OffsetNs)
	})

	s.Run("fetch failure fails closed", func() {
		src := StaticStatusSource{Err: errors.New("cache down")}
		v, err := New(src, s.cfg, WithLogger(logger))
		s.Require().NoError(err)

		v.Refresh(context.Background())
		st := v.Status()
		s.False(st.Synchronized)
		s.Equal(16, st.Stratum)
		s.Equal(1e9, st.DriftPPB)
	})

	s.Run("nil source is rejected", func() {
		_, err := New(nil, s.cfg)
		s.Error(err)
	})
}
