package manifest

import (
	"bytes"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

func init() {
	register("cargo", cargoParser{})
}

type cargoParser struct{}

type cargoDep struct {
	Version   string
	Features  []string
	Registry  string
	Workspace bool
	Path      string
	Git       string
}

func (cargoParser) Parse(_ string, content []byte) []Descriptor {
	var doc map[string]any
	if err := toml.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor

	workspaceDeps := map[string]cargoDep{}
	if ws, ok := doc["workspace"].(map[string]any); ok {
		if table, ok := ws["dependencies"].(map[string]any); ok {
			for name, raw := range table {
				workspaceDeps[canonicalCargoName(name)] = decodeCargoDep(raw)
			}
		}
	}

	sections := []struct {
		key  string
		kind Kind
	}{
		{"dependencies", Runtime},
		{"dev-dependencies", Dev},
		{"build-dependencies", Build},
	}

	for _, sec := range sections {
		if table, ok := doc[sec.key].(map[string]any); ok {
			out = append(out, cargoDescriptorsFromTable(table, sec.kind, workspaceDeps, content)...)
		}
	}

	if target, ok := doc["target"].(map[string]any); ok {
		for _, raw := range target {
			platform, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if table, ok := platform["dependencies"].(map[string]any); ok {
				out = append(out, cargoDescriptorsFromTable(table, Runtime, workspaceDeps, content)...)
			}
		}
	}

	return out
}

func cargoDescriptorsFromTable(table map[string]any, kind Kind, workspaceDeps map[string]cargoDep, content []byte) []Descriptor {
	var out []Descriptor
	for name, raw := range table {
		dep := decodeCargoDep(raw)

		desc := Descriptor{
			Ecosystem: "cargo",
			Name:      name,
			Kind:      kind,
		}

		switch {
		case dep.Workspace:
			if resolved, ok := workspaceDeps[canonicalCargoName(name)]; ok {
				dep.Version = resolved.Version
				dep.Registry = resolved.Registry
				desc.SourceKind = SourceRegistry
			} else {
				desc.SourceKind = SourceLocalPath
			}
		case dep.Path != "":
			desc.SourceKind = SourceLocalPath
		case dep.Git != "":
			desc.SourceKind = SourceGit
		default:
			desc.SourceKind = SourceRegistry
		}

		desc.DeclaredSpec = dep.Version
		if dep.Registry != "" {
			desc.RoutingHint.RegistryName = dep.Registry
		}
		desc.Span = findSpan(content, name, dep.Version)

		out = append(out, desc)
	}
	return out
}

func decodeCargoDep(raw any) cargoDep {
	switch v := raw.(type) {
	case string:
		return cargoDep{Version: v}
	case map[string]any:
		var d cargoDep
		if s, ok := v["version"].(string); ok {
			d.Version = s
		}
		if s, ok := v["registry"].(string); ok {
			d.Registry = s
		}
		if b, ok := v["workspace"].(bool); ok {
			d.Workspace = b
		}
		if s, ok := v["path"].(string); ok {
			d.Path = s
		}
		if s, ok := v["git"].(string); ok {
			d.Git = s
		}
		return d
	default:
		return cargoDep{}
	}
}

// canonicalCargoName treats hyphens and underscores as equivalent for
// registry lookup; the manifest-declared name is kept for display.
func canonicalCargoName(name string) string {
	return CanonicalName("cargo", name)
}

// CanonicalName folds an ecosystem's name-equivalence rules onto name,
// for use as a cache or lookup key. The manifest-declared name (Descriptor.Name)
// is never rewritten; this exists only to make two spellings of the same
// package target the same cache entry. Cargo treats '-' and '_' as
// interchangeable in crate names (crates.io itself normalizes this way);
// every other ecosystem is identity.
func CanonicalName(ecosystem, name string) string {
	if ecosystem == "cargo" {
		return strings.ReplaceAll(name, "_", "-")
	}
	return name
}

// findSpan locates name's declaration line and returns the byte range of the
// version literal when present, otherwise the name itself. Best-effort: a
// textual scan rather than a TOML-position-aware one, adequate for editor
// decoration purposes.
func findSpan(content []byte, name, version string) Span {
	idx := bytes.Index(content, []byte(name))
	if idx < 0 {
		return Span{}
	}
	if version != "" {
		lineEnd := bytes.IndexByte(content[idx:], '\n')
		if lineEnd < 0 {
			lineEnd = len(content) - idx
		}
		line := content[idx : idx+lineEnd]
		vIdx := bytes.Index(line, []byte(version))
		if vIdx >= 0 {
			start := idx + vIdx
			return Span{Start: start, End: start + len(version)}
		}
	}
	return Span{Start: idx, End: idx + len(name)}
}
