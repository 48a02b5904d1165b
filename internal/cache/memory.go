package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/observability"
)

const shardCount = 32

type entry struct {
	decision domain.GrowthDecision
	storedAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	TTL     time.Duration
	MaxSize int
	Now     func() time.Time
	// SyncSweep runs the sweeper on the caller's goroutine. Used by tests.
	SyncSweep bool
}

// MemoryStore is a sharded in-process Store. Shards are locked independently.
type MemoryStore struct {
	shards    [shardCount]*shard
	ttl       time.Duration
	maxSize   int
	now       func() time.Time
	syncSweep bool

	count    atomic.Int64
	sweeping atomic.Bool
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &MemoryStore{
		ttl:       opts.TTL,
		maxSize:   opts.MaxSize,
		now:       opts.Now,
		syncSweep: opts.SyncSweep,
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

// Get returns a fresh copy of the user's decision.
func (s *MemoryStore) Get(_ context.Context, userID string) (domain.GrowthDecision, bool) {
	sh := s.shardFor(userID)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[userID]
	if !ok {
		return domain.GrowthDecision{}, false
	}
	if now.Sub(e.storedAt) >= s.ttl {
		delete(sh.entries, userID)
		s.count.Add(-1)
		observability.RecordCacheEviction("expired", 1)
		return domain.GrowthDecision{}, false
	}
	return e.decision.Clone(), true
}

// Set stores a copy of d. Exceeding MaxSize triggers a sweep.
func (s *MemoryStore) Set(_ context.Context, d domain.GrowthDecision) {
	if d.UserID == "" {
		return
	}
	sh := s.shardFor(d.UserID)

	sh.mu.Lock()
	if _, exists := sh.entries[d.UserID]; !exists {
		s.count.Add(1)
	}
	sh.entries[d.UserID] = entry{decision: d.Clone(), storedAt: s.now()}
	sh.mu.Unlock()

	if int(s.count.Load()) > s.maxSize && s.sweeping.CompareAndSwap(false, true) {
		if s.syncSweep {
			s.sweep()
		} else {
			go s.sweep()
		}
	}
}

// Invalidate removes the user's decision.
func (s *MemoryStore) Invalidate(_ context.Context, userID string) {
	sh := s.shardFor(userID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[userID]; ok {
		delete(sh.entries, userID)
		s.count.Add(-1)
	}
}

// Len returns the number of stored entries, including not yet swept stale ones.
func (s *MemoryStore) Len() int {
	return int(s.count.Load())
}

// Sweep removes expired entries, then the oldest entries while still over MaxSize.
// Returns the number of entries removed.
func (s *MemoryStore) Sweep() int {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0
	}
	return s.sweep()
}

// sweep holds one shard lock at a time. Caller owns the sweeping flag.
func (s *MemoryStore) sweep() int {
	defer s.sweeping.Store(false)

	now := s.now()
	expired := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if now.Sub(e.storedAt) >= s.ttl {
				delete(sh.entries, id)
				expired++
			}
		}
		sh.mu.Unlock()
	}
	s.count.Add(int64(-expired))
	observability.RecordCacheEviction("expired", expired)

	// Still over the bound: drop the globally oldest entry until back under it.
	evicted := 0
	for int(s.count.Load()) > s.maxSize {
		if !s.evictOldest() {
			break
		}
		evicted++
	}
	observability.RecordCacheEviction("capacity", evicted)
	observability.UpdateCacheEntries(s.Len())

	return expired + evicted
}

func (s *MemoryStore) evictOldest() bool {
	var (
		victim   *shard
		victimID string
		victimAt time.Time
	)
	for _, sh := range s.shards {
		sh.mu.Lock()
		if id, ok := oldest(sh.entries); ok {
			at := sh.entries[id].storedAt
			if victim == nil || at.Before(victimAt) {
				victim, victimID, victimAt = sh, id, at
			}
		}
		sh.mu.Unlock()
	}
	if victim == nil {
		return false
	}

	victim.mu.Lock()
	defer victim.mu.Unlock()
	// The entry may have been refreshed or removed since the scan.
	if e, ok := victim.entries[victimID]; ok && e.storedAt.Equal(victimAt) {
		delete(victim.entries, victimID)
		s.count.Add(-1)
	}
	return true
}

func oldest(entries map[string]entry) (string, bool) {
	var (
		id    string
		at    time.Time
		found bool
	)
	for k, e := range entries {
		if !found || e.storedAt.Before(at) {
			id, at, found = k, e.storedAt, true
		}
	}
	return id, found
}

var _ Store = (*MemoryStore)(nil)
