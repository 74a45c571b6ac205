//go:build integration

package snapshotcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronocert/internal/hptp"
	"chronocert/pkg/testutil/containers"
)

// =============================================================================
// Snapshot Cache Integration Test Suite
// =============================================================================
// Justification for integration tests: the cache is the only bridge between
// the syncing process and remote verifiers. These tests run against a real
// Redis to prove snapshots round-trip intact, expire with the TTL, and that
// an absent snapshot is reported as an error rather than a zero status.

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	ctx   context.Context
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.ctx = context.Background()
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *CacheSuite) TestPublishFetchRoundTrip() {
	cache, err := New(s.redis.Client, "", time.Minute)
	s.Require().NoError(err)

	published := hptp.SyncStatus{
		Synchronized:     true,
		OffsetNs:         300_000,
		JitterNs:         2_000,
		DriftPPB:         12.5,
		Stratum:          2,
		PeerCount:        3,
		RootDelayNs:      400_000,
		RootDispersionNs: 4_000,
		LastSync:         time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(cache.Publish(s.ctx, published))

	got, err := cache.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal(published.OffsetNs, got.OffsetNs)
	s.Equal(published.Stratum, got.Stratum)
	s.Equal(published.PeerCount, got.PeerCount)
	s.True(published.LastSync.Equal(got.LastSync))
	s.True(got.Synchronized)
}

func (s *CacheSuite) TestFetchMissingKeyFails() {
	cache, err := New(s.redis.Client, "chronocert:test:absent", time.Minute)
	s.Require().NoError(err)

	_, err = cache.Fetch(s.ctx)
	s.Error(err, "absent snapshot must read as an error, never as synchronized")
}

func (s *CacheSuite) TestSnapshotExpires() {
	cache, err := New(s.redis.Client, "chronocert:test:ttl", 100*time.Millisecond)
	s.Require().NoError(err)

	s.Require().NoError(cache.Publish(s.ctx, hptp.SyncStatus{Synchronized: true}))
	_, err = cache.Fetch(s.ctx)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, err := cache.Fetch(s.ctx)
		return err != nil
	}, 2*time.Second, 50*time.Millisecond, "snapshot outlived its TTL")
}

func (s *CacheSuite) TestPublishOverwrites() {
	cache, err := New(s.redis.Client, "chronocert:test:overwrite", time.Minute)
	s.Require().NoError(err)

	s.Require().NoError(cache.Publish(s.ctx, hptp.SyncStatus{OffsetNs: 1}))
	s.Require().NoError(cache.Publish(s.ctx, hptp.SyncStatus{OffsetNs: 2}))

	got, err := cache.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), got.OffsetNs)
}
