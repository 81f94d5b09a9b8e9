package manifest

import (
	"gopkg.in/yaml.v3"
)

func init() {
	register("pub", pubParser{})
}

type pubParser struct{}

type pubDocument struct {
	Dependencies        map[string]any `yaml:"dependencies"`
	DevDependencies     map[string]any `yaml:"dev_dependencies"`
	DependencyOverrides map[string]any `yaml:"dependency_overrides"`
}

func (pubParser) Parse(_ string, content []byte) []Descriptor {
	var doc pubDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor
	sections := []struct {
		deps map[string]any
		kind Kind
	}{
		{doc.Dependencies, Runtime},
		{doc.DevDependencies, Dev},
		{doc.DependencyOverrides, Optional},
	}

	for _, sec := range sections {
		for name, raw := range sec.deps {
			spec, sourceKind := decodePubDep(raw)
			desc := Descriptor{
				Ecosystem:    "pub",
				Name:         name,
				DeclaredSpec: spec,
				Kind:         sec.kind,
				SourceKind:   sourceKind,
			}
			desc.Span = findSpan(content, name, spec)
			out = append(out, desc)
		}
	}

	return out
}

func decodePubDep(raw any) (spec string, sourceKind SourceKind) {
	switch v := raw.(type) {
	case string:
		return v, SourceRegistry
	case map[string]any:
		if _, ok := v["sdk"]; ok {
			return "", SourceSDK
		}
		if _, ok := v["git"]; ok {
			return "", SourceGit
		}
		if _, ok := v["path"]; ok {
			return "", SourceLocalPath
		}
		if hosted, ok := v["hosted"].(map[string]any); ok {
			if s, ok := hosted["version"].(string); ok {
				return s, SourceRegistry
			}
		}
		if s, ok := v["version"].(string); ok {
			return s, SourceRegistry
		}
		return "", SourceRegistry
	default:
		return "", SourceRegistry
	}
}
