package upgrade

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// splitVersion parses s into [major, minor, patch] per spec §4.3: any
// pre-release suffix after '-' is stripped and missing trailing
// components default to 0. Masterminds/semver does the parsing when s is
// a well-formed semver string (and conveniently already separates the
// pre-release tag from the numeric core); a manual split is the fallback
// for partial version strings like "5.17" that the strict parser
// rejects, so version directories named without a patch component still
// sort correctly.
func splitVersion(s string) [3]int {
	core := s
	if i := strings.IndexByte(core, '-'); i >= 0 {
		core = core[:i]
	}
	if v, err := semver.NewVersion(core); err == nil {
		return [3]int{int(v.Major()), int(v.Minor()), int(v.Patch())}
	}
	parts := strings.Split(core, ".")
	var nums [3]int
	for i := 0; i < 3 && i < len(parts); i++ {
		n, _ := strconv.Atoi(parts[i])
		nums[i] = n
	}
	return nums
}

// compareVersions implements spec §4.3's total order over the triples
// splitVersion produces. Equal numeric triples compare equal even if the
// raw strings differ only by pre-release/build metadata (spec: "equal
// strings with different build suffixes produce a warning but compare
// equal").
func compareVersions(a, b string) int {
	va, vb := splitVersion(a), splitVersion(b)
	for i := range va {
		if va[i] != vb[i] {
			if va[i] < vb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionLess(a, b string) bool      { return compareVersions(a, b) < 0 }
func versionLessEq(a, b string) bool    { return compareVersions(a, b) <= 0 }
func versionEqual(a, b string) bool     { return compareVersions(a, b) == 0 }
func versionGreaterEq(a, b string) bool { return compareVersions(a, b) >= 0 }
