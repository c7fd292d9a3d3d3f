package events

import (
	"sync"
	"time"

	"github.com/vadiminshakov/updown/internal/domain"
)

// SnapshotCache keeps the latest snapshot per market and republishes every
// snapshot it receives.
type SnapshotCache struct {
	mu     sync.RWMutex
	latest map[domain.MarketKey]domain.MarketSnapshot
	out    *Broadcaster[domain.MarketSnapshot]
	maxAge time.Duration
	now    func() time.Time
}

// NewSnapshotCache creates a cache. Snapshots older than maxAge are treated
// as missing; zero disables the check.
func NewSnapshotCache(maxAge time.Duration, out *Broadcaster[domain.MarketSnapshot]) *SnapshotCache {
	return &SnapshotCache{
		latest: make(map[domain.MarketKey]domain.MarketSnapshot),
		out:    out,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Publish stores snap when it is newer than the cached one.
func (c *SnapshotCache) Publish(snap domain.MarketSnapshot) {
	c.mu.Lock()
	prev, ok := c.latest[snap.Market]
	stale := ok && snap.CapturedAt.Before(prev.CapturedAt)
	if !stale {
		c.latest[snap.Market] = snap
	}
	c.mu.Unlock()

	if !stale && c.out != nil {
		c.out.Publish(snap)
	}
}

// Snapshot returns the latest fresh snapshot of market.
func (c *SnapshotCache) Snapshot(market domain.MarketKey) (domain.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.latest[market]
	if !ok {
		return domain.MarketSnapshot{}, false
	}
	if c.maxAge > 0 && c.now().Sub(snap.CapturedAt) > c.maxAge {
		return domain.MarketSnapshot{}, false
	}
	return snap, true
}

// Markets returns the markets with a cached snapshot.
func (c *SnapshotCache) Markets() []domain.MarketKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.MarketKey, 0, len(c.latest))
	for k := range c.latest {
		out = append(out, k)
	}
	return out
}
