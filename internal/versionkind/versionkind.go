// Package versionkind implements per-ecosystem version ordering, prerelease
// classification, and update-kind labeling.
package versionkind

import (
	"regexp"
	"strconv"
)

var numericSegmentRe = regexp.MustCompile(`\d+`)

// segments extracts the leading numeric components of a version string for
// major/minor/patch comparison. ok is false when no numeric segment is
// found at all (an unparseable version).
func segments(_ string, version string) (parts []int, ok bool) {
	matches := numericSegmentRe.FindAllString(version, -1)
	if len(matches) == 0 {
		return nil, false
	}
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil {
			return parts, len(parts) > 0
		}
		parts = append(parts, n)
		if len(parts) == 3 {
			break
		}
	}
	return parts, true
}

// UpdateKind labels the relationship between a current and candidate version.
type UpdateKind string

const (
	Major      UpdateKind = "major"
	Minor      UpdateKind = "minor"
	Patch      UpdateKind = "patch"
	Prerelease UpdateKind = "prerelease"
	None       UpdateKind = "none"
)

// Comparator is implemented once per ecosystem family.
type Comparator interface {
	// Compare returns -1, 0, or 1 as a < b, a == b, a > b.
	Compare(a, b string) int
	// IsPrerelease reports whether version is a prerelease per the
	// ecosystem's own convention.
	IsPrerelease(version string) bool
	// Satisfies reports whether version meets spec.
	Satisfies(version, spec string) bool
}

var comparators = map[string]Comparator{}

func register(ecosystem string, c Comparator) {
	comparators[ecosystem] = c
}

// For returns the comparator for ecosystem, or a lexical fallback if none is
// registered.
func For(ecosystem string) Comparator {
	if c, ok := comparators[ecosystem]; ok {
		return c
	}
	return lexicalComparator{}
}

// LatestStableOf returns the highest version that is neither a prerelease
// nor present in yanked, or "" if none qualifies.
func LatestStableOf(ecosystem string, versions []string, yanked map[string]bool) string {
	cmp := For(ecosystem)
	var best string
	for _, v := range versions {
		if yanked[v] || cmp.IsPrerelease(v) {
			continue
		}
		if best == "" || cmp.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

// IsPrerelease dispatches to the ecosystem's comparator.
func IsPrerelease(ecosystem, version string) bool {
	return For(ecosystem).IsPrerelease(version)
}

// Satisfies dispatches to the ecosystem's comparator.
func Satisfies(ecosystem, version, spec string) bool {
	return For(ecosystem).Satisfies(version, spec)
}

// UpdateKindOf classifies candidate relative to current. When current or
// candidate contains no numeric segment at all, it falls back to a
// lexical comparison and reports ok=false so the caller can flag the
// degraded classification.
func UpdateKindOf(ecosystem, current, candidate string) (kind UpdateKind, ok bool) {
	cmp := For(ecosystem)

	if cmp.IsPrerelease(candidate) && !cmp.IsPrerelease(current) {
		return Prerelease, true
	}

	curParts, curOK := segments(ecosystem, current)
	candParts, candOK := segments(ecosystem, candidate)
	if !curOK || !candOK {
		lex := lexicalComparator{}
		if lex.Compare(current, candidate) == 0 {
			return None, false
		}
		return Patch, false
	}

	if cmp.Compare(current, candidate) == 0 {
		return None, true
	}
	switch {
	case len(curParts) > 0 && len(candParts) > 0 && curParts[0] != candParts[0]:
		return Major, true
	case len(curParts) > 1 && len(candParts) > 1 && curParts[1] != candParts[1]:
		return Minor, true
	default:
		return Patch, true
	}
}
