package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/store"
)

var (
	// ErrEmptyPolicyID is returned when policy_id is empty.
	ErrEmptyPolicyID = errors.New("audit: policy_id must not be empty")
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrStoreNotConfigured is returned when audit export is invoked without a backing store.
	ErrStoreNotConfigured = errors.New("audit: store not configured (fail-closed)")
)

// ExportRequest defines what to export.
type ExportRequest struct {
	PolicyID  string    `json:"policy_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// AuditEvidencePack is the exported bundle: the matched audit entries plus
// a manifest and a checksum over the zip contents.
type AuditEvidencePack struct {
	PolicyID    string                  `json:"policy_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Checksum    string                  `json:"checksum"`
	Entries     []*contracts.AuditEntry `json:"entries"`
}

// Exporter builds evidence packs from an audit store.
type Exporter struct {
	store *store.AuditStore
}

func NewExporter(s *store.AuditStore) *Exporter {
	return &Exporter{store: s}
}

// GeneratePack creates a zip file containing the matched audit entries and
// a manifest with a chain-head checksum.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if req.PolicyID == "" {
		return nil, "", ErrEmptyPolicyID
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.store == nil {
		return nil, "", ErrStoreNotConfigured
	}

	filter := store.QueryFilter{PolicyID: req.PolicyID}
	if !req.StartTime.IsZero() {
		filter.StartTime = &req.StartTime
	}
	if !req.EndTime.IsZero() {
		filter.EndTime = &req.EndTime
	}
	entries := e.store.Query(filter)

	entriesJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", err
	}

	manifest := map[string]interface{}{
		"policy_id":    req.PolicyID,
		"generated_at": time.Now(),
		"entry_count":  len(entries),
		"chain_head":   e.store.GetChainHead(req.PolicyID),
		"period": map[string]interface{}{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("entries.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(entriesJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "Audit evidence pack for policy %s\nGenerated at %s\n", req.PolicyID, time.Now())

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	checksum := hex.EncodeToString(hash[:])

	return zipBytes, checksum, nil
}
