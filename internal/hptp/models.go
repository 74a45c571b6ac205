package hptp

import (
	"time"

	"chronocert/pkg/domain"
)

// maxStratum marks an unsynchronized node, per NTP convention.
const maxStratum = 16

// Peer is one configured synchronization peer. Fields are mutated only by
// the owning client during a sync cycle and read as copies elsewhere.
type Peer struct {
	ID        domain.PeerID `json:"id"`
	Address   string        `json:"address"`
	Stratum   int           `json:"stratum"`
	OffsetNs  int64         `json:"offsetNs"`
	JitterNs  int64         `json:"jitterNs"`
	Reachable bool          `json:"reachable"`
	LastSync  time.Time     `json:"lastSync"`
}

// SyncStatus is the consensus snapshot published after each successful sync
// cycle. It is replaced atomically as a whole value, so concurrent readers
// never observe a half-updated mix of fields.
type SyncStatus struct {
	Synchronized     bool      `json:"synchronized"`
	Stratum          int       `json:"stratum"`
	OffsetNs         int64     `json:"offsetNs"`
	JitterNs         int64     `json:"jitterNs"`
	DriftPPB         float64   `json:"driftPPB"`
	LastSync         time.Time `json:"lastSync"`
	PeerCount        int       `json:"peerCount"`
	RootDelayNs      int64     `json:"rootDelayNs"`
	RootDispersionNs int64     `json:"rootDispersionNs"`
}

// Unsynchronized returns the fail-closed status: not synchronized, worst
// stratum, maximal drift. Used at startup and by verifiers when a snapshot
// cannot be fetched.
func Unsynchronized() SyncStatus {
	return SyncStatus{
		Synchronized: false,
		Stratum:      maxStratum,
		DriftPPB:     1e9,
	}
}

// Measurement is the outcome of one four-timestamp exchange with a peer.
type Measurement struct {
	OffsetNs    int64
	RoundTripNs int64
	Stratum     int
}

// offsetFromExchange computes the clock offset and round trip from the four
// exchange timestamps: t1 local send, t2 remote receive, t3 remote send,
// t4 local receive. A negative offset means the local clock is ahead.
func offsetFromExchange(t1, t2, t3, t4 int64) (offsetNs, roundTripNs int64) {
	return ((t2 - t1) + (t3 - t4)) / 2, t4 - t1
}
