// Package decision implements the decision event builder of spec §4.7:
// canonical-JSON fingerprinting of evaluation inputs, multiplicative
// confidence scoring, and envelope assembly. Events are Ed25519-signed via
// pkg/crypto (when a signer is configured) before being handed to a record
// sink, giving the audit chain a verifiable producer identity.
package decision

import (
	"fmt"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
)

// inputsHashLength is the number of leading hex characters of the SHA-256
// digest spec §4.7 keeps as inputs_hash.
const inputsHashLength = 16

// Builder assembles and optionally signs DecisionEvents.
type Builder struct {
	AgentID      string
	AgentVersion string
	Signer       crypto.Signer // nil disables signing

	Now func() time.Time
	IDs func() string
}

// New returns a Builder identifying itself as agentID/agentVersion. signer
// may be nil to leave events unsigned (e.g. in tests).
func New(agentID, agentVersion string, signer crypto.Signer) *Builder {
	return &Builder{
		AgentID:      agentID,
		AgentVersion: agentVersion,
		Signer:       signer,
		Now:          time.Now,
		IDs:          defaultEventID,
	}
}

var eventSeq uint64

func defaultEventID() string {
	eventSeq++
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixNano(), eventSeq)
}

// Input is everything the builder fingerprints and scores from.
type Input struct {
	DecisionType       contracts.DecisionType
	Inputs             any // the raw evaluation inputs to fingerprint, never stored directly
	Outputs            map[string]any
	ConstraintsApplied []string
	ExecutionRef       contracts.ExecutionRef
	Metadata           map[string]any

	// Confidence scoring signals, per spec §4.7.
	NoPoliciesMatched  bool
	MixedSatisfaction  bool
	Outcome            contracts.Outcome
	Failed             bool // an ExecutionContextError/DecisionError occurred
}

// Build fingerprints in.Inputs, scores confidence, assembles the envelope,
// and signs it if a signer is configured. An error here only ever comes
// from canonicalization or signing, never from the decision logic itself.
func (b *Builder) Build(in Input) (*contracts.DecisionEvent, error) {
	hash, err := canonicalize.CanonicalHash(in.Inputs)
	if err != nil {
		return nil, fmt.Errorf("decision: fingerprint inputs: %w", err)
	}
	if len(hash) > inputsHashLength {
		hash = hash[:inputsHashLength]
	}

	event := &contracts.DecisionEvent{
		EventID:            b.IDs(),
		AgentID:            b.AgentID,
		AgentVersion:       b.AgentVersion,
		DecisionType:       in.DecisionType,
		InputsHash:         hash,
		Outputs:            in.Outputs,
		Confidence:         confidence(in),
		ConstraintsApplied: in.ConstraintsApplied,
		ExecutionRef:       in.ExecutionRef,
		Timestamp:          b.Now().UTC(),
		Metadata:           in.Metadata,
	}

	if b.Signer != nil {
		if err := b.Signer.SignDecisionEvent(event); err != nil {
			return nil, fmt.Errorf("decision: sign event: %w", err)
		}
	}

	return event, nil
}

// confidence implements spec §4.7's multiplicative scoring, clamped to
// [0, 1]. A failed invocation always scores 0.
func confidence(in Input) float64 {
	if in.Failed {
		return 0
	}

	score := 1.0
	if in.NoPoliciesMatched {
		score *= 0.8
	}
	if in.MixedSatisfaction {
		score *= 0.9
	}
	switch in.Outcome {
	case contracts.OutcomeModify:
		score *= 0.95
	case contracts.OutcomeWarn:
		score *= 0.9
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
