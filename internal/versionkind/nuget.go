package versionkind

import (
	"regexp"
	"strconv"
	"strings"
)

func init() {
	register("nuget", nugetComparator{})
}

// nugetComparator handles NuGet's four-segment version numbers
// (Major.Minor.Build.Revision) plus a trailing "-label" prerelease suffix,
// and the interval notation "[1.0,2.0)" used in dependency ranges.
type nugetComparator struct{}

func parseNuGetVersion(v string) (segments [4]int, label string, ok bool) {
	v = strings.TrimSpace(v)
	label = ""
	if idx := strings.Index(v, "-"); idx >= 0 {
		label = v[idx+1:]
		v = v[:idx]
	}
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return segments, label, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return segments, label, false
		}
		segments[i] = n
	}
	return segments, label, true
}

func (nugetComparator) Compare(a, b string) int {
	sa, la, okA := parseNuGetVersion(a)
	sb, lb, okB := parseNuGetVersion(b)
	if !okA || !okB {
		return lexicalComparator{}.Compare(a, b)
	}
	for i := 0; i < 4; i++ {
		if c := intCompare(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	switch {
	case la == "" && lb == "":
		return 0
	case la == "":
		return 1
	case lb == "":
		return -1
	default:
		return strings.Compare(la, lb)
	}
}

func (nugetComparator) IsPrerelease(version string) bool {
	return strings.Contains(version, "-")
}

// Satisfies accepts both a bare version (equality) and bracket/paren
// interval notation such as "[1.0,2.0)" or "(,2.0]".
func (c nugetComparator) Satisfies(version, spec string) bool {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return true
	}
	if !strings.ContainsAny(spec, "[(") {
		return c.Compare(version, spec) == 0
	}

	m := nugetIntervalRe.FindStringSubmatch(spec)
	if m == nil {
		return false
	}
	lowerInclusive := m[1] == "["
	lower := strings.TrimSpace(m[2])
	upper := strings.TrimSpace(m[3])
	upperInclusive := m[4] == "]"

	if lower != "" {
		cmp := c.Compare(version, lower)
		if lowerInclusive && cmp < 0 {
			return false
		}
		if !lowerInclusive && cmp <= 0 {
			return false
		}
	}
	if upper != "" {
		cmp := c.Compare(version, upper)
		if upperInclusive && cmp > 0 {
			return false
		}
		if !upperInclusive && cmp >= 0 {
			return false
		}
	}
	return true
}

var nugetIntervalRe = regexp.MustCompile(`^([\[(])\s*([^,\])]*)\s*,\s*([^,\])]*)\s*([\])])$`)
