// Package postgres is the reference host adapter for the integration
// façade: a PolicySource/RecordSink pair backed by the policies,
// policy_versions, policy_audit_trail, and policy_evaluations tables. It
// is illustrative of how a host wires pkg/facade to real storage, not a
// dependency the core requires.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
)

// Store is a facade.PolicySource and facade.RecordSink backed by Postgres.
type Store struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB. The caller owns the connection's
// lifecycle (DSN, pooling, TLS).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListActive returns every policy with status = 'active'.
func (s *Store) ListActive(ctx context.Context) ([]contracts.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, version, namespace, tags, priority, status,
		       rules, created_by, internal_version, created_at, updated_at
		FROM policies
		WHERE status = 'active'
		ORDER BY priority DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active policies: %w", err)
	}
	defer rows.Close()

	var out []contracts.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Find looks up a policy by id. When version is non-empty it is resolved
// against policy_versions instead of the live row in policies.
func (s *Store) Find(ctx context.Context, id string, version string) (*contracts.Policy, error) {
	if version == "" {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, name, description, version, namespace, tags, priority, status,
			       rules, created_by, internal_version, created_at, updated_at
			FROM policies
			WHERE id = $1
		`, id)
		p, err := scanPolicy(row)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("postgres: find policy %s: %w", id, err)
		}
		return &p, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, version, namespace, tags, priority, status,
		       rules, created_by, internal_version, created_at, updated_at
		FROM policy_versions
		WHERE policy_id = $1 AND version = $2
	`, id, version)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find policy %s@%s: %w", id, version, err)
	}
	return &p, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (contracts.Policy, error) {
	var p contracts.Policy
	var description, createdBy sql.NullString
	var tagsJSON, rulesJSON []byte

	err := row.Scan(
		&p.ID, &p.Name, &description, &p.Version, &p.Namespace, &tagsJSON,
		&p.Priority, &p.Status, &rulesJSON, &createdBy, &p.InternalVersion,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return contracts.Policy{}, err
	}
	if description.Valid {
		p.Description = description.String
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
			return contracts.Policy{}, fmt.Errorf("postgres: decode tags: %w", err)
		}
	}
	if err := json.Unmarshal(rulesJSON, &p.Rules); err != nil {
		return contracts.Policy{}, fmt.Errorf("postgres: decode rules: %w", err)
	}
	return p, nil
}

// Persist routes a DecisionRecord to policy_evaluations and an AuditRecord
// to policy_audit_trail (an append-only table; update and delete are
// blocked at the database level).
func (s *Store) Persist(ctx context.Context, record facade.Record) (facade.Ack, error) {
	switch r := record.(type) {
	case facade.DecisionRecord:
		return s.persistEvaluation(ctx, r.Event)
	case facade.AuditRecord:
		return s.persistAuditEntry(ctx, r.Entry)
	default:
		return facade.Ack{Accepted: false, Reason: "unsupported record type"}, nil
	}
}

// persistEvaluation writes one row to policy_evaluations. DecisionEvent
// itself only ever stores the inputs fingerprint (never the raw context),
// so the decision-shaped fields the table wants — outcome, matched
// policies/rules, cache hit — are read out of event.Outputs, which the
// policy enforcement agent populates from engine.Response before handing
// the event to the record sink.
func (s *Store) persistEvaluation(ctx context.Context, event *contracts.DecisionEvent) (facade.Ack, error) {
	outputs := event.Outputs
	if outputs == nil {
		outputs = map[string]any{}
	}

	contextJSON, err := json.Marshal(outputs)
	if err != nil {
		return facade.Ack{Accepted: false, Reason: err.Error()}, nil
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return facade.Ack{Accepted: false, Reason: err.Error()}, nil
	}
	matchedPoliciesJSON, _ := json.Marshal(stringSlice(outputs["matched_policies"]))
	matchedRulesJSON, _ := json.Marshal(stringSlice(outputs["matched_rules"]))
	policyIDsJSON, _ := json.Marshal(event.ConstraintsApplied)

	outcome, _ := outputs["outcome"].(string)
	reason, _ := outputs["reason"].(string)
	cached, _ := outputs["cached"].(bool)
	evaluationTimeMS, _ := outputs["evaluation_time_ms"].(float64)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_evaluations (
			request_id, policy_ids, outcome, allowed, reason, matched_policies,
			matched_rules, context, evaluation_time_ms, cached, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		event.ExecutionRef.RequestID, policyIDsJSON, outcome, outcome == string(contracts.OutcomeAllow),
		reason, matchedPoliciesJSON, matchedRulesJSON, contextJSON,
		evaluationTimeMS, cached, metadataJSON, event.Timestamp,
	)
	if err != nil {
		return facade.Ack{Accepted: false, Reason: err.Error()}, nil
	}
	return facade.Ack{Accepted: true}, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]string)
	if ok {
		return raw
	}
	anySlice, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, item := range anySlice {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Store) persistAuditEntry(ctx context.Context, entry *contracts.AuditEntry) (facade.Ack, error) {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return facade.Ack{Accepted: false, Reason: err.Error()}, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_audit_trail (
			id, policy_id, policy_version, action, actor, timestamp,
			before_hash, after_hash, correlation_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.PolicyID, entry.PolicyVersion, entry.Action, entry.Actor,
		entry.Timestamp, nullableString(entry.BeforeHash), entry.AfterHash,
		nullableString(entry.CorrelationID), metadataJSON,
	)
	if err != nil {
		return facade.Ack{Accepted: false, Reason: err.Error()}, nil
	}
	return facade.Ack{Accepted: true}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ArchiveVersion snapshots a policy into policy_versions before an edit
// overwrites the live row in policies, per the unique (policy_id,
// internal_version) constraint spec §6 describes.
func (s *Store) ArchiveVersion(ctx context.Context, p contracts.Policy) error {
	tagsJSON, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("postgres: encode tags: %w", err)
	}
	rulesJSON, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("postgres: encode rules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_versions (
			policy_id, internal_version, name, description, version, namespace,
			tags, priority, status, rules, created_by, created_at, updated_at, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (policy_id, internal_version) DO NOTHING
	`,
		p.ID, p.InternalVersion, p.Name, p.Description, p.Version, p.Namespace,
		tagsJSON, p.Priority, p.Status, rulesJSON, p.CreatedBy, p.CreatedAt, p.UpdatedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres: archive policy version: %w", err)
	}
	return nil
}
