package contracts

import "time"

// AuditAction is the closed set of policy-mutation events the audit trail
// records.
type AuditAction string

const (
	AuditCreate        AuditAction = "create"
	AuditEdit          AuditAction = "edit"
	AuditEnable        AuditAction = "enable"
	AuditDisable       AuditAction = "disable"
	AuditDelete        AuditAction = "delete"
	AuditVersionUpdate AuditAction = "version_update"
)

// AuditEntry is one append-only record in the policy audit trail. BeforeHash
// and AfterHash chain each entry to the one preceding it (see pkg/store),
// so the sequence can be verified without trusting the storage layer.
type AuditEntry struct {
	ID            string         `json:"id"`
	PolicyID      string         `json:"policy_id"`
	PolicyVersion string         `json:"policy_version"`
	Action        AuditAction    `json:"action"`
	Actor         string         `json:"actor"`
	Timestamp     time.Time      `json:"timestamp"`
	BeforeHash    string         `json:"before_hash,omitempty"`
	AfterHash     string         `json:"after_hash"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
