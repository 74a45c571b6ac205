package hptp

import (
	"math"
	"sort"
)

// Median returns the median offset; for an even count it is the mean of the
// two middle values. Returns 0 for an empty set.
func Median(samples []int64) int64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// trimFraction is the share of samples dropped from each end before
// averaging.
const trimFraction = 0.10

// TrimmedMean averages the samples after dropping the top and bottom 10%
// (rounded down) of the sorted set. If trimming would leave nothing, it
// falls back to the plain median. Pure function of the sample multiset.
func TrimmedMean(samples []int64) int64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	k := int(float64(n) * trimFraction)
	if n-2*k <= 0 {
		return Median(samples)
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, v := range sorted[k : n-k] {
		sum += float64(v)
	}
	return int64(math.Round(sum / float64(n-2*k)))
}

// RMSJitter is the root-mean-square of successive first differences.
// Returns 0 with fewer than two samples.
func RMSJitter(samples []int64) int64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(samples); i++ {
		d := float64(samples[i] - samples[i-1])
		sum += d * d
	}
	return int64(math.Round(math.Sqrt(sum / float64(len(samples)-1))))
}

// minDriftSamples is the history size below which drift is reported as 0;
// a regression over fewer points is noise.
const minDriftSamples = 10

// DriftPPB estimates long-term drift as the ordinary least-squares slope of
// the offset history over sample index, scaled to samples per second. One
// nanosecond of offset change per second is one part per billion.
func DriftPPB(samples []int64, samplesPerSecond float64) float64 {
	n := len(samples)
	if n < minDriftSamples || samplesPerSecond <= 0 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range samples {
		x, y := float64(i), float64(v)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slopeNsPerSample := (fn*sumXY - sumX*sumY) / denom
	return slopeNsPerSample * samplesPerSecond
}
