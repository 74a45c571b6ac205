package hptp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"chronocert/internal/clock"
	"chronocert/internal/platform/metrics"
	"chronocert/pkg/domain"
)

// ErrCycleInProgress is returned when PerformSync is invoked while another
// cycle is still running. The periodic scheduler treats it as a no-op tick.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// SnapshotSink receives each newly published SyncStatus, e.g. to share it
// with remote verifiers through a cache.
type SnapshotSink interface {
	Publish(ctx context.Context, status SyncStatus) error
}

// Config configures the HPTP client.
type Config struct {
	Peers         []string
	PollInterval  time.Duration
	PeerTimeout   time.Duration
	MinPeers      int
	MaxPeers      int
	SyncThreshold time.Duration
}

// Client polls the configured peers, estimates this node's offset, jitter
// and drift relative to consensus, and exposes an atomically replaced
// SyncStatus snapshot. It wraps a clock.Driver to emit corrected timestamps.
type Client struct {
	driver   *clock.Driver
	measurer Measurer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	sink     SnapshotSink

	cfg Config

	// peers and history have a single writer: the active sync cycle.
	// The mutex covers reads of peer records from other goroutines.
	mu      sync.RWMutex
	peers   []*Peer
	history *offsetRing

	status   atomic.Pointer[SyncStatus]
	inFlight atomic.Bool

	sysNow func() time.Time

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSnapshotSink publishes each new SyncStatus to the given sink.
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithClock injects the wall clock used for last-sync stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.sysNow = now }
}

// NewClient parses the configured peer list and constructs a client.
// Measurer is required; peers start at stratum 1 until corrected by
// consensus cycles.
func NewClient(driver *clock.Driver, measurer Measurer, cfg Config, opts ...Option) (*Client, error) {
	if driver == nil {
		return nil, fmt.Errorf("clock driver is required")
	}
	if measurer == nil {
		return nil, fmt.Errorf("measurer is required")
	}
	if cfg.MinPeers < 1 {
		cfg.MinPeers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.PeerTimeout <= 0 || cfg.PeerTimeout >= cfg.PollInterval {
		cfg.PeerTimeout = cfg.PollInterval / 5
	}
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = time.Millisecond
	}
	if cfg.MaxPeers > 0 && len(cfg.Peers) > cfg.MaxPeers {
		return nil, fmt.Errorf("peer list exceeds max peers (%d)", cfg.MaxPeers)
	}

	peers := make([]*Peer, 0, len(cfg.Peers))
	seen := make(map[string]bool, len(cfg.Peers))
	for _, addr := range cfg.Peers {
		id, err := peerID(addr)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", addr, err)
		}
		if seen[addr] {
			return nil, fmt.Errorf("peer %q listed twice", addr)
		}
		seen[addr] = true
		peers = append(peers, &Peer{ID: id, Address: addr, Stratum: 1})
	}

	c := &Client{
		driver:   driver,
		measurer: measurer,
		logger:   slog.Default(),
		cfg:      cfg,
		peers:    peers,
		history:  newOffsetRing(historyCapacity),
		sysNow:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	initial := Unsynchronized()
	c.status.Store(&initial)
	return c, nil
}

func peerID(addr string) (domain.PeerID, error) {
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("address must be a URL with a host")
	}
	return domain.PeerID(u.Host), nil
}

// Status returns the most recent consensus snapshot.
func (c *Client) Status() SyncStatus {
	return *c.status.Load()
}

// Peers returns copies of the peer records.
func (c *Client) Peers() []Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Peer, len(c.peers))
	for i, p := range c.peers {
		out[i] = *p
	}
	return out
}

// Now returns the consensus-corrected timestamp: the raw driver reading
// minus the filtered offset, flagged with the current synchronized state.
func (c *Client) Now() clock.Timestamp {
	ts := c.driver.Timestamp()
	st := c.status.Load()
	ts.Wall = ts.Wall.Add(-time.Duration(st.OffsetNs))
	ts.Synchronized = st.Synchronized
	return ts
}

// RawNowNs exposes the uncorrected driver reading, used for exchange
// timestamps where the correction must not be applied twice.
func (c *Client) RawNowNs() int64 {
	return c.driver.Timestamp().UnixNano()
}

// Stratum returns this node's stratum from the latest snapshot.
func (c *Client) Stratum() int {
	return c.status.Load().Stratum
}

type measureResult struct {
	m   Measurement
	err error
}

// PerformSync runs one sync cycle: all peers measured in parallel, each
// bounded by the peer timeout, the whole cycle bounded by the poll interval
// minus a safety margin. Exactly one cycle may run at a time; a call during
// an active cycle returns ErrCycleInProgress without touching any state.
func (c *Client) PerformSync(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer c.inFlight.Store(false)

	cycleBudget := c.cfg.PollInterval - c.cfg.PollInterval/10
	ctx, cancel := context.WithTimeout(ctx, cycleBudget)
	defer cancel()

	c.mu.RLock()
	targets := make([]*Peer, len(c.peers))
	copy(targets, c.peers)
	c.mu.RUnlock()

	results := make([]measureResult, len(targets))
	var g errgroup.Group
	for i, p := range targets {
		g.Go(func() error {
			mctx, mcancel := context.WithTimeout(ctx, c.cfg.PeerTimeout)
			defer mcancel()
			m, err := c.measurer.Measure(mctx, p.Address)
			results[i] = measureResult{m: m, err: err}
			return nil
		})
	}
	// Individual failures are recorded per peer, never propagated.
	_ = g.Wait()

	now := c.sysNow()
	offsets := make([]int64, 0, len(targets))

	c.mu.Lock()
	for i, p := range targets {
		res := results[i]
		if res.err != nil {
			p.Reachable = false
			c.logger.Warn("peer unreachable for this cycle",
				"peer", p.ID.String(),
				"error", res.err.Error())
			continue
		}
		if p.Reachable {
			p.JitterNs = abs64(res.m.OffsetNs - p.OffsetNs)
		}
		p.Reachable = true
		p.OffsetNs = res.m.OffsetNs
		p.Stratum = res.m.Stratum
		p.LastSync = now
		offsets = append(offsets, res.m.OffsetNs)
	}

	if len(offsets) < c.cfg.MinPeers {
		c.mu.Unlock()
		// Below quorum the previous status is retained verbatim.
		c.logger.Warn("sync cycle below peer quorum, retaining previous status",
			"responded", len(offsets),
			"min_peers", c.cfg.MinPeers)
		if c.metrics != nil {
			c.metrics.SyncCycles.WithLabelValues("retained").Inc()
		}
		return nil
	}

	c.history.Push(Median(offsets))
	history := c.history.Snapshot()

	filtered := TrimmedMean(history)
	jitter := RMSJitter(history)
	drift := DriftPPB(history, 1/c.cfg.PollInterval.Seconds())

	stratum := maxStratum
	var rootDelay int64
	for _, p := range c.peers {
		if !p.Reachable {
			continue
		}
		if p.Stratum < stratum {
			stratum = p.Stratum
		}
		if d := abs64(p.OffsetNs); d > rootDelay {
			rootDelay = d
		}
	}
	if stratum < maxStratum {
		stratum++
	}
	c.mu.Unlock()

	status := SyncStatus{
		Synchronized:     abs64(filtered) < c.cfg.SyncThreshold.Nanoseconds(),
		Stratum:          stratum,
		OffsetNs:         filtered,
		JitterNs:         jitter,
		DriftPPB:         drift,
		LastSync:         now,
		PeerCount:        len(offsets),
		RootDelayNs:      rootDelay,
		RootDispersionNs: 2 * jitter,
	}
	c.status.Store(&status)

	c.logger.Info("sync cycle complete",
		"peers_responded", len(offsets),
		"filtered_offset_ns", filtered,
		"jitter_ns", jitter,
		"drift_ppb", drift,
		"stratum", stratum,
		"synchronized", status.Synchronized)

	if c.metrics != nil {
		c.metrics.SyncCycles.WithLabelValues("updated").Inc()
		c.metrics.FilteredOffsetNs.Set(float64(filtered))
		c.metrics.JitterNs.Set(float64(jitter))
		c.metrics.DriftPPB.Set(drift)
		c.metrics.ReachablePeers.Set(float64(len(offsets)))
	}

	if c.sink != nil {
		if err := c.sink.Publish(ctx, status); err != nil {
			c.logger.Warn("publishing sync snapshot failed", "error", err.Error())
		}
	}
	return nil
}

// Start launches the periodic sync loop with a deterministic stop handle.
func (c *Client) Start() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.PerformSync(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
					c.logger.Error("sync cycle failed", "error", err.Error())
				}
			}
		}
	}()
}

// Stop halts the sync loop and waits for it to exit.
func (c *Client) Stop() {
	c.lifecycleMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
