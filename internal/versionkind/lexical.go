package versionkind

import "strings"

// lexicalComparator is the fallback used for unregistered ecosystems and
// for versions a registered comparator cannot parse (spec 4.2: "when the
// current version cannot be parsed, the update kind falls back to a
// lexical comparison").
type lexicalComparator struct{}

func (lexicalComparator) Compare(a, b string) int {
	return strings.Compare(a, b)
}

func (lexicalComparator) IsPrerelease(version string) bool {
	return strings.ContainsAny(version, "-+")
}

func (lexicalComparator) Satisfies(version, spec string) bool {
	return version == spec
}
