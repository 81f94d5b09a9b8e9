package manifest

import (
	"encoding/json"
	"strings"
)

func init() {
	register("packagist", composerParser{})
}

type composerParser struct{}

type composerDocument struct {
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

func (composerParser) Parse(_ string, content []byte) []Descriptor {
	var doc composerDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor
	sections := []struct {
		deps map[string]string
		kind Kind
	}{
		{doc.Require, Runtime},
		{doc.RequireDev, Dev},
	}

	for _, sec := range sections {
		for name, spec := range sec.deps {
			if name == "php" || strings.HasPrefix(name, "ext-") {
				continue
			}
			desc := Descriptor{
				Ecosystem:    "packagist",
				Name:         name,
				DeclaredSpec: spec,
				Kind:         sec.kind,
				SourceKind:   composerSourceKind(spec),
			}
			desc.Span = findSpan(content, name, spec)
			out = append(out, desc)
		}
	}

	return out
}

func composerSourceKind(spec string) SourceKind {
	if strings.HasPrefix(spec, "dev-") || strings.HasSuffix(spec, "-dev") {
		return SourceGit
	}
	return SourceRegistry
}
