// Package cache implements the decision cache of spec §4.9: a
// fingerprint-keyed, TTL-bounded cache of DecisionEvents with
// generation-counter invalidation and single-flight deduplication for
// concurrent evaluations sharing a key. An optional Redis-backed Store
// supports multi-process deployments; the in-memory Store is the default
// and is what every invariant test exercises directly.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// fingerprintLength matches the 16-hex-char prefix spec §4.7 defines for
// inputs_hash; the cache key reuses the same truncation.
const fingerprintLength = 16

// Fingerprint returns the 16-hex-char canonical fingerprint of v.
func Fingerprint(v any) (string, error) {
	hash, err := canonicalize.CanonicalHash(v)
	if err != nil {
		return "", err
	}
	if len(hash) > fingerprintLength {
		hash = hash[:fingerprintLength]
	}
	return hash, nil
}

// Key combines a context fingerprint with a sorted policy-id-subset
// fingerprint, per spec §4.9.
func Key(ctxFingerprint string, policyIDs []string) string {
	sorted := append([]string(nil), policyIDs...)
	sort.Strings(sorted)
	idsFingerprint, _ := Fingerprint(sorted)
	return ctxFingerprint + ":" + idsFingerprint
}

type entry struct {
	event      *contracts.DecisionEvent
	expiresAt  time.Time
	generation uint64
}

// Store is the in-memory decision cache: TTL-bounded with generation-
// counter invalidation and single-flight dedup on concurrent misses.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64
	ttl        time.Duration
	group      singleflight.Group
	now        func() time.Time
}

// New returns a Store with the given TTL. A zero TTL disables caching
// (every Get misses, every Put is a no-op), matching "not used when trace
// or dry_run is set" at the call site.
func New(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Invalidate bumps the generation counter, making every previously-cached
// entry stale without evicting it eagerly — the next Get on a stale key
// simply misses. This is the "broadcast a generation counter" mutation
// signal of spec §4.9.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// Get returns the cached event for key if present, unexpired, and from the
// current generation.
func (s *Store) Get(key string) (*contracts.DecisionEvent, bool) {
	if s.ttl <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || e.generation != s.generation || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.event, true
}

// Put stores event under key, stamped with the current generation and TTL.
func (s *Store) Put(key string, event *contracts.DecisionEvent) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		event:      event,
		expiresAt:  s.now().Add(s.ttl),
		generation: s.generation,
	}
}

// GetOrCompute returns the cached event for key, or calls compute exactly
// once across all concurrent callers sharing key and caches its result.
// The returned bool reports whether the value came from cache.
func (s *Store) GetOrCompute(ctx context.Context, key string, compute func() (*contracts.DecisionEvent, error)) (*contracts.DecisionEvent, bool, error) {
	if cached, ok := s.Get(key); ok {
		return cached, true, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		event, err := compute()
		if err != nil {
			return nil, err
		}
		s.Put(key, event)
		return event, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*contracts.DecisionEvent), false, nil
}

// Size reports the number of entries currently tracked, including stale
// ones not yet reaped.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
