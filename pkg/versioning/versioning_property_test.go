//go:build property
// +build property

package versioning_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/versioning"
)

func semverGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	).Map(func(v []interface{}) string {
		return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
	})
}

// TestCompareAntisymmetric verifies Compare(a, b) == -Compare(b, a) sign,
// for well-formed semver strings.
func TestCompareAntisymmetric(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Compare is antisymmetric", prop.ForAll(
		func(a, b string) bool {
			fwd := versioning.Compare(a, b)
			rev := versioning.Compare(b, a)
			return sign(fwd) == -sign(rev)
		},
		semverGen(),
		semverGen(),
	))

	properties.TestingRun(t)
}

// TestIsUpgradeConsistentWithCompare verifies IsUpgrade agrees with Compare.
func TestIsUpgradeConsistentWithCompare(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("IsUpgrade agrees with Compare", prop.ForAll(
		func(current, candidate string) bool {
			return versioning.IsUpgrade(current, candidate) == (versioning.Compare(candidate, current) > 0)
		},
		semverGen(),
		semverGen(),
	))

	properties.TestingRun(t)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
