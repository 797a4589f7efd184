// Package audit mirrors the append-only policy mutation trail
// (pkg/store.AuditStore) onto structured logs and exports it as a
// checksummed evidence pack for compliance handoff.
package audit

import (
	"log/slog"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// NewSlogHandler returns a store.EntryHandler that logs every appended
// AuditEntry at info level, keyed by policy_id so log aggregation can
// reconstruct a policy's history without reading the store directly.
func NewSlogHandler(logger *slog.Logger) func(entry *contracts.AuditEntry) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(entry *contracts.AuditEntry) {
		logger.Info("policy audit entry",
			slog.String("policy_id", entry.PolicyID),
			slog.String("policy_version", entry.PolicyVersion),
			slog.String("action", string(entry.Action)),
			slog.String("actor", entry.Actor),
			slog.String("after_hash", entry.AfterHash),
			slog.Time("timestamp", entry.Timestamp),
		)
	}
}
