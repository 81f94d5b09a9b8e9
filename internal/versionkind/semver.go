package versionkind

import (
	"github.com/Masterminds/semver/v3"
)

func init() {
	c := semverComparator{}
	for _, eco := range []string{"cargo", "npm", "packagist", "pub"} {
		register(eco, c)
	}
}

// semverComparator covers the semver-shaped ecosystems: Cargo, npm,
// Composer, and Dart pub all publish semver-compatible version strings.
type semverComparator struct{}

func (semverComparator) Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return lexicalComparator{}.Compare(a, b)
	}
	return va.Compare(vb)
}

func (semverComparator) IsPrerelease(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return lexicalComparator{}.IsPrerelease(version)
	}
	return v.Prerelease() != ""
}

func (semverComparator) Satisfies(version, spec string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}
