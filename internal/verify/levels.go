package verify

import "time"

// Level grades how far inside (or outside) a regulatory tolerance a clock
// sits. Degraded means out of compliance but close enough that operators
// should treat it as recoverable rather than catastrophic.
type Level string

const (
	LevelNonCompliant Level = "non_compliant"
	LevelDegraded     Level = "degraded"
	LevelCompliant    Level = "compliant"
	LevelExceeds      Level = "exceeds"
)

// Regulatory offset tolerances, in nanoseconds.
const (
	finra613LimitNs    = int64(50 * time.Millisecond)
	finra613DegradedNs = int64(100 * time.Millisecond)

	mifid2ExceedsNs  = int64(100 * time.Microsecond)
	mifid2LimitNs    = int64(time.Millisecond)
	mifid2DegradedNs = int64(10 * time.Millisecond)

	ptp1588ExceedsNs = int64(time.Microsecond)
	ptp1588LimitNs   = int64(time.Millisecond)
)

// FINRA613Level grades an absolute clock offset against FINRA Rule 613
// (CAT): 50 ms to the reference.
func FINRA613Level(offsetNs int64) Level {
	switch a := absNs(offsetNs); {
	case a < finra613LimitNs:
		return LevelCompliant
	case a < finra613DegradedNs:
		return LevelDegraded
	default:
		return LevelNonCompliant
	}
}

// MiFIDIILevel grades an absolute clock offset against the MiFID II RTS 25
// divergence ladder.
func MiFIDIILevel(offsetNs int64) Level {
	switch a := absNs(offsetNs); {
	case a < mifid2ExceedsNs:
		return LevelExceeds
	case a < mifid2LimitNs:
		return LevelCompliant
	case a < mifid2DegradedNs:
		return LevelDegraded
	default:
		return LevelNonCompliant
	}
}

// PTP1588Level grades an absolute clock offset against IEEE 1588 service
// expectations.
func PTP1588Level(offsetNs int64) Level {
	switch a := absNs(offsetNs); {
	case a < ptp1588ExceedsNs:
		return LevelExceeds
	case a < ptp1588LimitNs:
		return LevelCompliant
	default:
		return LevelNonCompliant
	}
}

func absNs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
