package entities

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	modsemver "golang.org/x/mod/semver"
)

const versionComponents = 3

// Severity classifies the distance between two versions.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityPatch   Severity = "patch"
	SeverityMinor   Severity = "minor"
	SeverityMajor   Severity = "major"
	SeverityUnknown Severity = "unknown"
)

// BreakingPolicy decides which severities count as breaking.
type BreakingPolicy string

const (
	// BreakingPolicyMajor treats every change of the leading component as breaking,
	// including 0.x to 1.x and 1.x to 2.x. Nothing else is breaking.
	BreakingPolicyMajor BreakingPolicy = "major"
	// BreakingPolicyZeroVer additionally treats a minor bump below 1.0.0 as breaking.
	BreakingPolicyZeroVer BreakingPolicy = "zerover"
)

// Diff is the outcome of comparing a latest version against the current one.
type Diff struct {
	Severity   Severity
	IsBreaking bool
}

// Version is a parsed, normalized version string.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Original   string
	HasPrefix  bool // the original started with "v" or "V"
}

// Canonical returns the normalized "X.Y.Z[-pre]" form.
func (v Version) Canonical() string {
	sv := semver.New(v.Major, v.Minor, v.Patch, v.Prerelease, "")
	return sv.String()
}

// ParseVersion normalizes s and parses it. Leading "v"/"V" is stripped, build
// metadata is dropped and missing components are padded with ".0"
// ("v4" becomes 4.0.0). It returns false when s is not numeric.
func ParseVersion(s string) (Version, bool) {
	original := s
	s = strings.TrimSpace(s)
	hasPrefix := len(s) > 0 && (s[0] == 'v' || s[0] == 'V')
	s = stripVersionPrefix(s)

	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		s = s[:idx]
	}

	core, pre, _ := strings.Cut(s, "-")
	parts := strings.Split(core, ".")
	if core == "" || len(parts) > versionComponents {
		return Version{}, false
	}
	for _, part := range parts {
		if !isDigits(part) {
			return Version{}, false
		}
	}
	for len(parts) < versionComponents {
		parts = append(parts, "0")
	}

	normalized := strings.Join(parts, ".")
	if pre != "" {
		normalized += "-" + pre
	}

	sv, err := semver.StrictNewVersion(normalized)
	if err != nil {
		return Version{}, false
	}

	return Version{
		Major:      sv.Major(),
		Minor:      sv.Minor(),
		Patch:      sv.Patch(),
		Prerelease: sv.Prerelease(),
		Original:   original,
		HasPrefix:  hasPrefix,
	}, true
}

// NormalizeVersion returns the canonical three-component form of s.
func NormalizeVersion(s string) (string, bool) {
	v, ok := ParseVersion(s)
	if !ok {
		return "", false
	}
	return v.Canonical(), true
}

// CompareVersions orders two version strings numerically, so v10.0.0 sorts after v9.0.0.
// Unparseable versions sort below parseable ones; two unparseable versions compare equal.
func CompareVersions(a, b string) int {
	va, okA := NormalizeVersion(a)
	vb, okB := NormalizeVersion(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}
	return modsemver.Compare("v"+va, "v"+vb)
}

// DiffVersions compares latest against current with the default policy.
func DiffVersions(latest, current string) Diff {
	return BreakingPolicyMajor.Diff(latest, current)
}

// Diff compares latest against current. Severity is decided by the first differing
// component. Input that fails numeric parsing yields SeverityUnknown and is never breaking.
func (p BreakingPolicy) Diff(latest, current string) Diff {
	lv, okL := ParseVersion(latest)
	cv, okC := ParseVersion(current)
	if !okL || !okC {
		return Diff{Severity: SeverityUnknown}
	}

	var severity Severity
	switch {
	case lv.Major != cv.Major:
		severity = SeverityMajor
	case lv.Minor != cv.Minor:
		severity = SeverityMinor
	case lv.Patch != cv.Patch:
		severity = SeverityPatch
	default:
		severity = SeverityNone
	}

	breaking := severity == SeverityMajor
	if p == BreakingPolicyZeroVer && severity == SeverityMinor && lv.Major == 0 {
		breaking = true
	}
	return Diff{Severity: severity, IsBreaking: breaking}
}

// Valid reports whether p is a known policy.
func (p BreakingPolicy) Valid() bool {
	return p == BreakingPolicyMajor || p == BreakingPolicyZeroVer
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
