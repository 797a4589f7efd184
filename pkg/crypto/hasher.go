package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
)

// Hasher provides deterministic hashing of canonicalized values.
type Hasher interface {
	Hash(v interface{}) (string, error)
}

// CanonicalHasher hashes the RFC 8785 canonical JSON form of v.
type CanonicalHasher struct{}

func NewCanonicalHasher() *CanonicalHasher {
	return &CanonicalHasher{}
}

func (h *CanonicalHasher) Hash(v interface{}) (string, error) {
	b, err := canonicalize.JCS(v)
	if err != nil {
		return "", fmt.Errorf("canonical serialization failed: %w", err)
	}
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:]), nil
}
