package manifest

import (
	"encoding/json"
	"strings"
)

func init() {
	register("npm", npmParser{})
}

type npmParser struct{}

type npmDocument struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

func (npmParser) Parse(_ string, content []byte) []Descriptor {
	var doc npmDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor
	sections := []struct {
		deps map[string]string
		kind Kind
	}{
		{doc.Dependencies, Runtime},
		{doc.DevDependencies, Dev},
		{doc.PeerDependencies, Peer},
		{doc.OptionalDependencies, Optional},
	}

	for _, sec := range sections {
		for name, spec := range sec.deps {
			desc := Descriptor{
				Ecosystem:    "npm",
				Name:         name,
				DeclaredSpec: spec,
				Kind:         sec.kind,
				SourceKind:   npmSourceKind(spec),
			}
			if scope, ok := npmScope(name); ok {
				desc.RoutingHint.Scope = scope
			}
			desc.Span = findSpan(content, name, spec)
			out = append(out, desc)
		}
	}

	return out
}

func npmSourceKind(spec string) SourceKind {
	switch {
	case strings.HasPrefix(spec, "file:"), strings.HasPrefix(spec, "link:"):
		return SourceLocalPath
	case strings.HasPrefix(spec, "git"), strings.HasPrefix(spec, "http"):
		return SourceGit
	default:
		return SourceRegistry
	}
}

// npmScope extracts "scope" from "@scope/name", without the leading '@'.
func npmScope(name string) (string, bool) {
	if !strings.HasPrefix(name, "@") {
		return "", false
	}
	parts := strings.SplitN(name[1:], "/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return parts[0], true
}
