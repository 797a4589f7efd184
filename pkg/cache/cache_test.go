package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func TestFingerprint_KeyOrderInsensitive(t *testing.T) {
	a, err := Fingerprint(map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(map[string]any{"y": 2, "x": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected identical fingerprints, got %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16-char fingerprint, got %d", len(a))
	}
}

func TestKey_PolicyIDOrderInsensitive(t *testing.T) {
	ctxFP := "abcd1234abcd1234"
	k1 := Key(ctxFP, []string{"p2", "p1"})
	k2 := Key(ctxFP, []string{"p1", "p2"})
	if k1 != k2 {
		t.Errorf("expected policy-id-subset order to not affect the key, got %s vs %s", k1, k2)
	}
}

func TestStore_GetPutRoundTrip(t *testing.T) {
	s := New(time.Minute)
	event := &contracts.DecisionEvent{EventID: "e1"}
	s.Put("k1", event)
	got, ok := s.Get("k1")
	if !ok || got.EventID != "e1" {
		t.Errorf("expected cache hit with e1, got %v, %v", got, ok)
	}
}

func TestStore_ZeroTTLDisablesCaching(t *testing.T) {
	s := New(0)
	s.Put("k1", &contracts.DecisionEvent{EventID: "e1"})
	if _, ok := s.Get("k1"); ok {
		t.Error("expected zero-TTL store to never cache")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := New(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	s.Put("k1", &contracts.DecisionEvent{EventID: "e1"})

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := s.Get("k1"); ok {
		t.Error("expected entry to have expired")
	}
}

func TestStore_InvalidateBumpsGeneration(t *testing.T) {
	s := New(time.Minute)
	s.Put("k1", &contracts.DecisionEvent{EventID: "e1"})
	s.Invalidate()
	if _, ok := s.Get("k1"); ok {
		t.Error("expected entry written under a stale generation to miss")
	}
}

func TestStore_GetOrCompute_SingleFlightDeduplicates(t *testing.T) {
	s := New(time.Minute)
	var calls int64

	var wg sync.WaitGroup
	results := make([]*contracts.DecisionEvent, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, _, err := s.GetOrCompute(context.Background(), "shared-key", func() (*contracts.DecisionEvent, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return &contracts.DecisionEvent{EventID: "computed"}, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = event
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt64(&calls) != 1 {
		t.Errorf("expected compute to run exactly once, ran %d times", calls)
	}
	for _, r := range results {
		if r == nil || r.EventID != "computed" {
			t.Errorf("expected every caller to get the computed event, got %v", r)
		}
	}
}

func TestStore_GetOrCompute_PropagatesError(t *testing.T) {
	s := New(time.Minute)
	wantErr := errors.New("boom")
	_, _, err := s.GetOrCompute(context.Background(), "k1", func() (*contracts.DecisionEvent, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected error to propagate, got %v", err)
	}
	if s.Size() != 0 {
		t.Error("expected a failed compute to not populate the cache")
	}
}
