package clock

import (
	"fmt"
	"time"
)

// Source identifies where timestamps are derived from.
type Source string

const (
	SourceGPS    Source = "gps"
	SourcePTP    Source = "ptp"
	SourceSystem Source = "system"
)

// Precision tags the verified resolution of a timestamp. A timestamp never
// claims finer precision than its source measurably provides; femtosecond is
// reserved for hardware that genuinely supplies it.
type Precision string

const (
	PrecisionFemtosecond Precision = "femtosecond"
	PrecisionNanosecond  Precision = "nanosecond"
	PrecisionMicrosecond Precision = "microsecond"
	PrecisionMillisecond Precision = "millisecond"
)

// Capabilities describes what a clock source can deliver.
type Capabilities struct {
	Source       Source
	ResolutionNs int64
	AccuracyPPB  int64
	Precision    Precision
}

// CapabilitiesFor returns the capability table entry for a source.
func CapabilitiesFor(s Source) Capabilities {
	switch s {
	case SourceGPS:
		return Capabilities{Source: s, ResolutionNs: 1, AccuracyPPB: 10, Precision: PrecisionNanosecond}
	case SourcePTP:
		return Capabilities{Source: s, ResolutionNs: 1, AccuracyPPB: 100, Precision: PrecisionNanosecond}
	default:
		return Capabilities{Source: SourceSystem, ResolutionNs: 100, AccuracyPPB: 1000, Precision: PrecisionNanosecond}
	}
}

// Timestamp is an immutable clock reading: a wall-clock instant anchored to
// the monotonic counter, tagged with its source and verified precision.
type Timestamp struct {
	Wall         time.Time
	Mono         time.Duration
	Source       Source
	Precision    Precision
	Synchronized bool
}

// UnixNano returns the wall-clock instant in nanoseconds since the epoch.
func (t Timestamp) UnixNano() int64 {
	return t.Wall.UnixNano()
}

// ISO renders the instant as RFC 3339 with nanosecond digits, in UTC.
func (t Timestamp) ISO() string {
	return t.Wall.UTC().Format(time.RFC3339Nano)
}

// Femtoseconds renders the instant as a decimal femtosecond count. The six
// trailing digits are zero unless a hardware source supplied sub-nanosecond
// resolution; they are never populated from anything unmeasured.
func (t Timestamp) Femtoseconds() string {
	return fmt.Sprintf("%d000000", t.Wall.UnixNano())
}

// Components splits the instant for wire representations.
func (t Timestamp) Components() (seconds int64, nanos int64) {
	ns := t.Wall.UnixNano()
	return ns / int64(time.Second), ns % int64(time.Second)
}
