// Package versioning provides the semantic-version helpers Policy.version
// needs: format validation and ordering, both backed by Masterminds/semver
// the same way the teacher's pack dependency validates module constraints.
package versioning

import "github.com/Masterminds/semver/v3"

// Valid reports whether raw parses as a semantic version.
func Valid(raw string) bool {
	_, err := semver.NewVersion(raw)
	return err == nil
}

// Compare orders two semantic version strings: -1 if a < b, 0 if equal,
// 1 if a > b. A malformed string sorts before a well-formed one.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	default:
		return va.Compare(vb)
	}
}

// IsUpgrade reports whether candidate is a strictly greater version than
// current, per spec §4.1's "policy versions only move forward" rule.
func IsUpgrade(current, candidate string) bool {
	return Compare(candidate, current) > 0
}
