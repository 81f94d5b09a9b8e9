package versionkind

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

func init() {
	register("go", golangComparator{})
}

var goPseudoVersionRe = regexp.MustCompile(`-(?:0\.)?\d{14}-[0-9a-f]{12}(\+incompatible)?$`)

// golangComparator wraps golang.org/x/mod/semver, which requires a leading
// "v" and treats pseudo-versions as ordinary (very low) semver values.
type golangComparator struct{}

func (golangComparator) Compare(a, b string) int {
	return semver.Compare(normalizeGoVersion(a), normalizeGoVersion(b))
}

func (golangComparator) IsPrerelease(version string) bool {
	v := normalizeGoVersion(version)
	return semver.Prerelease(v) != "" || goPseudoVersionRe.MatchString(version)
}

func (golangComparator) Satisfies(version, spec string) bool {
	return normalizeGoVersion(version) == normalizeGoVersion(spec)
}

func normalizeGoVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// IsPseudoVersion reports whether v matches Go's pseudo-version shape
// (v0.0.0-<timestamp>-<sha>), used by the engine to set source_kind=pseudo
// independent of ordering.
func IsPseudoVersion(v string) bool {
	return goPseudoVersionRe.MatchString(v)
}
