// Package manifest extracts dependency descriptors and their source spans
// from the eight manifest dialects the engine understands.
package manifest

// Kind classifies why a dependency is declared.
type Kind string

const (
	Runtime  Kind = "runtime"
	Dev      Kind = "dev"
	Build    Kind = "build"
	Peer     Kind = "peer"
	Optional Kind = "optional"
	Indirect Kind = "indirect"
	Workspace Kind = "workspace"
)

// SourceKind classifies how a dependency is resolved.
type SourceKind string

const (
	SourceRegistry  SourceKind = "registry"
	SourceLocalPath SourceKind = "local-path"
	SourceGit       SourceKind = "git"
	SourceSDK       SourceKind = "sdk"
	SourceReplaced  SourceKind = "replaced"
	SourcePseudo    SourceKind = "pseudo"
	SourceExcluded  SourceKind = "excluded"
)

// Span is a byte range [Start, End) into the source document.
type Span struct {
	Start int
	End   int
}

// RoutingHint carries the per-descriptor metadata that selects a
// non-default fetcher.
type RoutingHint struct {
	RegistryName string // Cargo alternative registry
	Scope        string // npm scope, without the leading '@'
}

// Descriptor is one dependency as extracted from a manifest.
type Descriptor struct {
	Ecosystem    string
	Name         string
	DeclaredSpec string
	Span         Span
	Kind         Kind
	RoutingHint  RoutingHint
	SourceKind   SourceKind
}

// Parser extracts descriptors from one manifest dialect.
//
// Parsers are total: malformed input degrades to a partial descriptor list,
// never an error, never a panic. They never read past the document they are
// given.
type Parser interface {
	Parse(filename string, content []byte) []Descriptor
}

var parsers = map[string]Parser{}

func register(ecosystem string, p Parser) {
	parsers[ecosystem] = p
}

// ParseAll dispatches to the registered parser for ecosystem and returns its
// descriptors. An unknown ecosystem yields an empty, non-nil slice. A
// panicking dialect parser is the one fail-soft case recovered here rather
// than in each parser: editors feed incomplete documents on every keystroke
// and a crash must never propagate.
func ParseAll(ecosystem, filename string, content []byte) (descriptors []Descriptor) {
	p, ok := parsers[ecosystem]
	if !ok {
		return []Descriptor{}
	}
	descriptors = []Descriptor{}
	defer func() {
		if recover() != nil {
			descriptors = []Descriptor{}
		}
	}()
	if descriptors = p.Parse(filename, content); descriptors == nil {
		descriptors = []Descriptor{}
	}
	return descriptors
}
