package hptp

// historyCapacity bounds the offset history used for jitter and drift
// estimation.
const historyCapacity = 64

// offsetRing is a fixed-capacity ring buffer of filtered cycle offsets.
// Single writer: the sync cycle that owns it. Readers take Snapshot copies.
type offsetRing struct {
	buf  []int64
	head int
	size int
}

func newOffsetRing(capacity int) *offsetRing {
	if capacity <= 0 {
		capacity = historyCapacity
	}
	return &offsetRing{buf: make([]int64, capacity)}
}

// Push appends a sample, evicting the oldest when full.
func (r *offsetRing) Push(v int64) {
	r.buf[(r.head+r.size)%len(r.buf)] = v
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Snapshot returns the samples oldest-first.
func (r *offsetRing) Snapshot() []int64 {
	out := make([]int64, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *offsetRing) Len() int { return r.size }
