package audit_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/audit"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/store"
)

func TestSlogHandler_FiresOnAppend(t *testing.T) {
	s := store.NewAuditStore()

	var captured *contracts.AuditEntry
	s.AddHandler(func(entry *contracts.AuditEntry) {
		captured = entry
	})
	s.AddHandler(audit.NewSlogHandler(slog.Default()))

	entry, err := s.Append("pol-1", "1.0.0", contracts.AuditCreate, "alice", "corr-1", nil)
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, entry.ID, captured.ID)
}

func TestExporter_GeneratePack_Success(t *testing.T) {
	s := store.NewAuditStore()
	_, _ = s.Append("pol-1", "1.0.0", contracts.AuditCreate, "alice", "", nil)
	_, _ = s.Append("pol-1", "1.0.1", contracts.AuditEdit, "alice", "", nil)

	exporter := audit.NewExporter(s)
	req := audit.ExportRequest{
		PolicyID:  "pol-1",
		StartTime: time.Now().Add(-24 * time.Hour),
		EndTime:   time.Now(),
	}

	zipBytes, checksum, err := exporter.GeneratePack(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, zipBytes)
	assert.Len(t, checksum, 64)
}

func TestExporter_GeneratePack_EmptyPolicyID(t *testing.T) {
	s := store.NewAuditStore()
	exporter := audit.NewExporter(s)
	req := audit.ExportRequest{PolicyID: ""}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrEmptyPolicyID)
}

func TestExporter_GeneratePack_InvalidTimeRange(t *testing.T) {
	s := store.NewAuditStore()
	exporter := audit.NewExporter(s)
	req := audit.ExportRequest{
		PolicyID:  "pol-1",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(-1 * time.Hour),
	}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrInvalidTimeRange)
}

func TestExporter_GeneratePack_FailClosedWithoutStore(t *testing.T) {
	exporter := audit.NewExporter(nil)
	req := audit.ExportRequest{PolicyID: "pol-1"}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrStoreNotConfigured)
}
