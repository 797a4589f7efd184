package facade

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// InMemoryPolicySource is the default PolicySource used by tests and
// standalone runs: a map of policies keyed by id that the caller loads up
// front.
type InMemoryPolicySource struct {
	mu       sync.RWMutex
	policies map[string]contracts.Policy
}

// NewInMemoryPolicySource returns a PolicySource seeded with policies.
func NewInMemoryPolicySource(policies ...contracts.Policy) *InMemoryPolicySource {
	s := &InMemoryPolicySource{policies: make(map[string]contracts.Policy, len(policies))}
	for _, p := range policies {
		s.policies[p.ID] = p
	}
	return s
}

// Put adds or replaces a policy.
func (s *InMemoryPolicySource) Put(p contracts.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
}

// ListActive returns every policy with Status == PolicyActive.
func (s *InMemoryPolicySource) ListActive(ctx context.Context) ([]contracts.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if p.Status == contracts.PolicyActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// Find returns the policy with the given id. version is ignored: the
// in-memory source keeps only the current copy of each policy, not its
// archived versions.
func (s *InMemoryPolicySource) Find(ctx context.Context, id string, version string) (*contracts.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// RecordingSink is a RecordSink/TelemetrySink that appends everything it
// receives to an in-memory slice, for assertions in tests. It always
// accepts.
type RecordingSink struct {
	mu        sync.Mutex
	Records   []Record
	Telemetry []TelemetryItem
}

// NewRecordingSink returns an empty RecordingSink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

// Persist appends record and reports Accepted.
func (s *RecordingSink) Persist(ctx context.Context, record Record) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = append(s.Records, record)
	return Ack{Accepted: true}, nil
}

// Emit appends item.
func (s *RecordingSink) Emit(ctx context.Context, item TelemetryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Telemetry = append(s.Telemetry, item)
	return nil
}

// NoopSink is a RecordSink/TelemetrySink that discards everything,
// reporting rejection so callers never mistake silence for persistence.
type NoopSink struct{}

// Persist discards record.
func (NoopSink) Persist(ctx context.Context, record Record) (Ack, error) {
	return Ack{Accepted: false, Reason: "no record sink configured"}, nil
}

// Emit discards item.
func (NoopSink) Emit(ctx context.Context, item TelemetryItem) error { return nil }

// UUIDSource is the default IDSource, generating UUIDv4 strings.
type UUIDSource struct{}

// NewID returns a fresh UUIDv4.
func (UUIDSource) NewID() string { return uuid.NewString() }

// PrefixedIDSource generates sequential, prefix-tagged ids; useful in tests
// that need deterministic, human-readable ids instead of random UUIDs.
type PrefixedIDSource struct {
	mu     sync.Mutex
	Prefix string
	seq    uint64
}

// NewID returns the next "<prefix>-<n>" id.
func (s *PrefixedIDSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%d", s.Prefix, s.seq)
}
