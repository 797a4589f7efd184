package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// Verifier checks signatures produced by a Signer without needing the
// private key.
type Verifier interface {
	Verify(message []byte, signature []byte) bool
	VerifyDecisionEvent(e *contracts.DecisionEvent) (bool, error)
}

// Ed25519Verifier implements Verifier using a standalone public key.
type Ed25519Verifier struct {
	PublicKey ed25519.PublicKey
}

// NewEd25519Verifier builds a verifier from a raw public key.
func NewEd25519Verifier(pubKeyBytes []byte) (*Ed25519Verifier, error) {
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(pubKeyBytes))
	}
	return &Ed25519Verifier{PublicKey: ed25519.PublicKey(pubKeyBytes)}, nil
}

func (v *Ed25519Verifier) Verify(message []byte, signature []byte) bool {
	return ed25519.Verify(v.PublicKey, message, signature)
}

func (v *Ed25519Verifier) VerifyDecisionEvent(e *contracts.DecisionEvent) (bool, error) {
	if e.Signature == "" {
		return false, fmt.Errorf("missing signature")
	}
	payload, err := decisionEventPayload(e)
	if err != nil {
		return false, fmt.Errorf("canonicalize decision event: %w", err)
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false, err
	}
	return v.Verify(payload, sig), nil
}
