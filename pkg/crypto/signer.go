package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

const (
	sigSeparator     = ":"
	sigPrefixEd25519 = "ed25519"
)

// Signer signs and verifies the records the engine emits: decision events
// and audit entries.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
	PublicKeyBytes() []byte
	SignDecisionEvent(e *contracts.DecisionEvent) error
	VerifyDecisionEvent(e *contracts.DecisionEvent) (bool, error)
	SignAuditEntry(a *contracts.AuditEntry) (string, error)
}

// Ed25519Signer signs with an in-process Ed25519 keypair.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	KeyID   string
}

// NewEd25519Signer generates a fresh keypair under the given key id.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, KeyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		KeyID:   keyID,
	}
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}

func (s *Ed25519Signer) Verify(message []byte, signature []byte) bool {
	return ed25519.Verify(s.pubKey, message, signature)
}

// decisionEventPayload returns the bytes a DecisionEvent's signature binds
// to: the canonical JSON of every field except the signature itself.
func decisionEventPayload(e *contracts.DecisionEvent) ([]byte, error) {
	unsigned := *e
	unsigned.Signature = ""
	unsigned.SignatureKeyID = ""
	return canonicalize.JCS(unsigned)
}

// SignDecisionEvent signs the event in place and stamps the signing key id.
func (s *Ed25519Signer) SignDecisionEvent(e *contracts.DecisionEvent) error {
	payload, err := decisionEventPayload(e)
	if err != nil {
		return fmt.Errorf("canonicalize decision event: %w", err)
	}
	sig, err := s.Sign(payload)
	if err != nil {
		return err
	}
	e.Signature = sig
	e.SignatureKeyID = sigPrefixEd25519 + sigSeparator + s.KeyID
	return nil
}

// VerifyDecisionEvent checks a DecisionEvent's signature against this
// signer's own public key.
func (s *Ed25519Signer) VerifyDecisionEvent(e *contracts.DecisionEvent) (bool, error) {
	if e.Signature == "" {
		return false, fmt.Errorf("missing signature")
	}
	payload, err := decisionEventPayload(e)
	if err != nil {
		return false, fmt.Errorf("canonicalize decision event: %w", err)
	}
	return Verify(s.PublicKey(), e.Signature, payload)
}

// SignAuditEntry signs an audit entry's after_hash, binding the entry to
// this signer's identity without mutating the entry (the hash chain owns
// entry integrity; the signature only attests to producer identity).
func (s *Ed25519Signer) SignAuditEntry(a *contracts.AuditEntry) (string, error) {
	return s.Sign([]byte(a.AfterHash))
}

// Verify checks a hex-encoded signature against a hex-encoded public key.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
