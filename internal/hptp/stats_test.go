package hptp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Offset Statistics Test Suite
// =============================================================================
// Justification for unit tests: every sync-status figure (filtered offset,
// jitter, drift) is derived from these pure functions. Errors here corrupt
// compliance decisions silently, so the arithmetic is pinned exactly.

type StatsSuite struct {
	suite.Suite
}

func TestStatsSuite(t *testing.T) {
	suite.Run(t, new(StatsSuite))
}

func (s *StatsSuite) TestMedian() {
	s.Run("even count averages the two middle values", func() {
		s.Equal(int64(25), Median([]int64{10, 20, 30, 40}))
	})

	s.Run("odd count returns the middle value", func() {
		s.Equal(int64(20), Median([]int64{30, 10, 20}))
	})

	s.Run("empty set returns zero", func() {
		s.Equal(int64(0), Median(nil))
	})

	s.Run("does not mutate its input", func() {
		in := []int64{40, 10, 30, 20}
		Median(in)
		s.Equal([]int64{40, 10, 30, 20}, in)
	})
}

func (s *StatsSuite) TestTrimmedMean() {
	s.Run("ten samples drop exactly one from each end", func() {
		// Extremes 1000 and -1000 must not appear in the average.
		samples := []int64{1000, -1000, 10, 10, 10, 10, 10, 10, 10, 10}
		s.Equal(int64(10), TrimmedMean(samples))
	})

	s.Run("small sets trim nothing and average everything", func() {
		s.Equal(int64(20), TrimmedMean([]int64{10, 20, 30}))
	})

	s.Run("order invariant over the same multiset", func() {
		samples := []int64{5, -3, 12, 7, 0, 9, -8, 4, 6, 2, 11, -1}
		shuffled := append([]int64(nil), samples...)
		r := rand.New(rand.NewSource(1))
		for trial := 0; trial < 10; trial++ {
			r.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			s.Equal(TrimmedMean(samples), TrimmedMean(shuffled))
		}
	})

	s.Run("empty set returns zero", func() {
		s.Equal(int64(0), TrimmedMean(nil))
	})
}

func (s *StatsSuite) TestRMSJitter() {
	s.Run("constant offsets have zero jitter", func() {
		s.Equal(int64(0), RMSJitter([]int64{7, 7, 7, 7}))
	})

	s.Run("uniform steps equal the step size", func() {
		s.Equal(int64(10), RMSJitter([]int64{0, 10, 20, 30}))
	})

	s.Run("fewer than two samples report zero", func() {
		s.Equal(int64(0), RMSJitter([]int64{42}))
	})
}

func (s *StatsSuite) TestDriftPPB() {
	s.Run("requires ten samples", func() {
		samples := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8}
		s.Zero(DriftPPB(samples, 1))
	})

	s.Run("linear ramp yields slope times rate", func() {
		// 100ns per sample at 0.1 samples/s is 10 ppb.
		samples := make([]int64, 10)
		for i := range samples {
			samples[i] = int64(i) * 100
		}
		s.InDelta(10.0, DriftPPB(samples, 0.1), 1e-9)
	})

	s.Run("flat history has zero drift", func() {
		samples := make([]int64, 12)
		for i := range samples {
			samples[i] = 500
		}
		s.Zero(DriftPPB(samples, 1))
	})
}

func (s *StatsSuite) TestOffsetRing() {
	ring := newOffsetRing(historyCapacity)
	for i := 0; i < historyCapacity+8; i++ {
		ring.Push(int64(i))
	}

	s.Equal(historyCapacity, ring.Len())

	snap := ring.Snapshot()
	s.Len(snap, historyCapacity)
	s.Equal(int64(8), snap[0], "oldest surviving sample after eviction")
	s.Equal(int64(historyCapacity+7), snap[len(snap)-1])
}
