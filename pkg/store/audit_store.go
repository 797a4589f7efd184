// Package store implements the append-only, hash-chained audit trail of
// policy mutations: every create/edit/enable/disable/delete/version_update
// against a Policy is recorded as a contracts.AuditEntry, chained by
// before_hash/after_hash so the sequence can be verified without trusting
// the storage layer itself.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrChainBroken     = errors.New("hash chain is broken")
	ErrMutationAttempt = errors.New("mutation of existing entry attempted")
)

// genesisHash is before_hash for the first entry ever appended for a given
// policy_id: hash(null) per spec.
var genesisHash = canonicalize.HashBytes([]byte("null"))

// AuditStore is an append-only audit log with hash chaining, one chain per
// policy_id.
type AuditStore struct {
	mu          sync.RWMutex
	entries     []*contracts.AuditEntry
	entryByID   map[string]*contracts.AuditEntry
	entryByHash map[string]*contracts.AuditEntry
	chainHead   map[string]string // policy_id -> current after_hash
	sequence    uint64
	handlers    []EntryHandler
}

// EntryHandler is called synchronously when a new entry is appended.
type EntryHandler func(entry *contracts.AuditEntry)

// NewAuditStore creates an empty append-only audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		entries:     make([]*contracts.AuditEntry, 0),
		entryByID:   make(map[string]*contracts.AuditEntry),
		entryByHash: make(map[string]*contracts.AuditEntry),
		chainHead:   make(map[string]string),
	}
}

// Append records one policy mutation. before_hash is the chain head for
// policyID (or genesisHash if this is the first entry for that policy).
func (s *AuditStore) Append(policyID, policyVersion string, action contracts.AuditAction, actor, correlationID string, metadata map[string]any) (*contracts.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.chainHead[policyID]
	if !ok {
		before = genesisHash
	}

	s.sequence++
	entry := &contracts.AuditEntry{
		ID:            uuid.New().String(),
		PolicyID:      policyID,
		PolicyVersion: policyVersion,
		Action:        action,
		Actor:         actor,
		Timestamp:     time.Now().UTC(),
		BeforeHash:    before,
		CorrelationID: correlationID,
		Metadata:      metadata,
	}

	afterHash, err := s.computeAfterHash(entry)
	if err != nil {
		s.sequence--
		return nil, fmt.Errorf("failed to compute entry hash: %w", err)
	}
	entry.AfterHash = afterHash
	s.chainHead[policyID] = afterHash

	s.entries = append(s.entries, entry)
	s.entryByID[entry.ID] = entry
	s.entryByHash[entry.AfterHash] = entry

	for _, h := range s.handlers {
		h(entry)
	}

	return entry, nil
}

// computeAfterHash hashes everything about the entry except the hash
// itself, binding it to the previous entry via BeforeHash.
func (s *AuditStore) computeAfterHash(entry *contracts.AuditEntry) (string, error) {
	return RecomputeAfterHash(entry)
}

// RecomputeAfterHash independently recomputes the after_hash of entry from
// its own fields, the same way Append does. Exported so a verifier can
// recompute hashes over an entry set it did not itself produce (an exported
// bundle, say) without trusting the stored AfterHash values.
func RecomputeAfterHash(entry *contracts.AuditEntry) (string, error) {
	hashable := struct {
		ID            string         `json:"id"`
		PolicyID      string         `json:"policy_id"`
		PolicyVersion string         `json:"policy_version"`
		Action        string         `json:"action"`
		Actor         string         `json:"actor"`
		Timestamp     time.Time      `json:"timestamp"`
		BeforeHash    string         `json:"before_hash"`
		CorrelationID string         `json:"correlation_id"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		ID:            entry.ID,
		PolicyID:      entry.PolicyID,
		PolicyVersion: entry.PolicyVersion,
		Action:        string(entry.Action),
		Actor:         entry.Actor,
		Timestamp:     entry.Timestamp,
		BeforeHash:    entry.BeforeHash,
		CorrelationID: entry.CorrelationID,
		Metadata:      entry.Metadata,
	}
	return canonicalize.CanonicalHash(hashable)
}

// Get retrieves an entry by id.
func (s *AuditStore) Get(id string) (*contracts.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entryByID[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// GetByHash retrieves an entry by its after_hash.
func (s *AuditStore) GetByHash(hash string) (*contracts.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entryByHash[hash]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// GetChainHead returns the current chain head hash for a policy id, or
// genesisHash if nothing has been appended for it yet.
func (s *AuditStore) GetChainHead(policyID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.chainHead[policyID]; ok {
		return h
	}
	return genesisHash
}

// QueryFilter filters the audit trail for export or inspection.
type QueryFilter struct {
	PolicyID   string
	Action     contracts.AuditAction
	StartTime  *time.Time
	EndTime    *time.Time
	MaxResults int
}

func (f QueryFilter) matches(e *contracts.AuditEntry) bool {
	if f.PolicyID != "" && e.PolicyID != f.PolicyID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// Query returns entries matching the filter, in append order (total order
// per policy_id, per the AuditEntry invariant).
func (s *AuditStore) Query(filter QueryFilter) []*contracts.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*contracts.AuditEntry, 0)
	for _, e := range s.entries {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results
}

// VerifyChain verifies the integrity of every per-policy hash chain.
func (s *AuditStore) VerifyChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return VerifyEntries(s.entries)
}

// VerifyEntries independently verifies the hash chain of an arbitrary entry
// slice, in the order given. Used both by VerifyChain (over a live store's
// own entries) and by the CLI's verify command (over entries read back from
// an exported evidence pack, which holds no AuditStore at all).
func VerifyEntries(entries []*contracts.AuditEntry) error {
	expectedPrev := make(map[string]string)
	for i, entry := range entries {
		want, ok := expectedPrev[entry.PolicyID]
		if !ok {
			want = genesisHash
		}
		if entry.BeforeHash != want {
			return fmt.Errorf("%w: entry %d (policy %s) has before_hash %s but expected %s",
				ErrChainBroken, i, entry.PolicyID, entry.BeforeHash, want)
		}

		computed, err := RecomputeAfterHash(entry)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash computation failed: %w", ErrChainBroken, i, err)
		}
		if computed != entry.AfterHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, entry.AfterHash)
		}

		expectedPrev[entry.PolicyID] = entry.AfterHash
	}

	return nil
}

// AddHandler registers a handler invoked synchronously on every Append.
func (s *AuditStore) AddHandler(h EntryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// AuditEvidenceBundle is an exportable, checksummed bundle of audit entries.
type AuditEvidenceBundle struct {
	BundleID   string                  `json:"bundle_id"`
	Version    string                  `json:"version"`
	CreatedAt  time.Time               `json:"created_at"`
	EntryCount int                     `json:"entry_count"`
	Entries    []*contracts.AuditEntry `json:"entries"`
	BundleHash string                  `json:"bundle_hash"`
}

// ExportBundle exports entries matching filter as a checksummed bundle.
func (s *AuditStore) ExportBundle(filter QueryFilter) (*AuditEvidenceBundle, error) {
	entries := s.Query(filter)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries match filter")
	}

	bundle := &AuditEvidenceBundle{
		BundleID:   uuid.New().String(),
		Version:    "1.0.0",
		CreatedAt:  time.Now().UTC(),
		EntryCount: len(entries),
		Entries:    entries,
	}

	bundleData, err := json.Marshal(bundle.Entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle entries: %w", err)
	}
	bundle.BundleHash = canonicalize.HashBytes(bundleData)

	return bundle, nil
}

// VerifyBundle verifies a bundle's checksum and internal chain consistency
// per policy_id.
func VerifyBundle(bundle *AuditEvidenceBundle) error {
	if len(bundle.Entries) == 0 {
		return fmt.Errorf("bundle is empty")
	}

	entriesData, err := json.Marshal(bundle.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle entries: %w", err)
	}
	if computed := canonicalize.HashBytes(entriesData); computed != bundle.BundleHash {
		return fmt.Errorf("bundle hash mismatch")
	}

	return VerifyEntries(bundle.Entries)
}

// Size returns the number of entries in the store.
func (s *AuditStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
