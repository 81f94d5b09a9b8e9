package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

func init() {
	register("pypi", pythonParser{})
}

type pythonParser struct{}

func (pythonParser) Parse(filename string, content []byte) []Descriptor {
	if strings.HasSuffix(filename, ".toml") {
		return parsePyproject(content)
	}
	return parseRequirementsTxt(content)
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*(==|>=|<=|~=|!=|>|<)?\s*([^\s#;]*)`)

func parseRequirementsTxt(content []byte) []Descriptor {
	var out []Descriptor
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	offset := 0
	for scanner.Scan() {
		raw := scanner.Text()
		lineStart := offset
		offset += len(raw) + 1

		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-e ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "-e "))
		}
		if strings.HasPrefix(line, "-") {
			continue
		}
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		m := requirementLineRe.FindStringSubmatch(line)
		if m == nil || m[1] == "" {
			continue
		}

		name := m[1]
		spec := ""
		if m[3] != "" {
			spec = m[3] + m[4]
		}

		desc := Descriptor{
			Ecosystem:    "pypi",
			Name:         normalizePyPIName(name),
			DeclaredSpec: spec,
			Kind:         Runtime,
			SourceKind:   SourceRegistry,
		}
		nameIdx := strings.Index(raw, name)
		if nameIdx < 0 {
			nameIdx = 0
		}
		if spec != "" {
			specIdx := strings.Index(raw[nameIdx:], m[4])
			if specIdx >= 0 {
				start := lineStart + nameIdx + specIdx
				desc.Span = Span{Start: start, End: start + len(m[4])}
			}
		}
		if desc.Span == (Span{}) {
			start := lineStart + nameIdx
			desc.Span = Span{Start: start, End: start + len(name)}
		}

		out = append(out, desc)
	}

	return out
}

type pyprojectDoc struct {
	Project *struct {
		Dependencies          []string            `toml:"dependencies"`
		OptionalDependencies  map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool *struct {
		Poetry *struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyproject(content []byte) []Descriptor {
	var doc pyprojectDoc
	if err := toml.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor

	if doc.Project != nil {
		for _, entry := range doc.Project.Dependencies {
			out = append(out, pep508Descriptor(entry, Runtime, content))
		}
		for _, entries := range doc.Project.OptionalDependencies {
			for _, entry := range entries {
				out = append(out, pep508Descriptor(entry, Optional, content))
			}
		}
	}

	if doc.Tool != nil && doc.Tool.Poetry != nil {
		for name, raw := range doc.Tool.Poetry.Dependencies {
			if strings.EqualFold(name, "python") {
				continue
			}
			out = append(out, poetryDescriptor(name, raw, Runtime, content))
		}
		for name, raw := range doc.Tool.Poetry.DevDependencies {
			out = append(out, poetryDescriptor(name, raw, Dev, content))
		}
	}

	return out
}

func pep508Descriptor(entry string, kind Kind, content []byte) Descriptor {
	m := requirementLineRe.FindStringSubmatch(strings.TrimSpace(entry))
	name := entry
	spec := ""
	if m != nil && m[1] != "" {
		name = m[1]
		if m[3] != "" {
			spec = m[3] + m[4]
		}
	}
	return Descriptor{
		Ecosystem:    "pypi",
		Name:         normalizePyPIName(name),
		DeclaredSpec: spec,
		Kind:         kind,
		SourceKind:   SourceRegistry,
		Span:         findSpan(content, name, spec),
	}
}

func poetryDescriptor(name string, raw any, kind Kind, content []byte) Descriptor {
	spec := ""
	switch v := raw.(type) {
	case string:
		spec = v
	case map[string]any:
		if s, ok := v["version"].(string); ok {
			spec = s
		}
	}
	return Descriptor{
		Ecosystem:    "pypi",
		Name:         normalizePyPIName(name),
		DeclaredSpec: spec,
		Kind:         kind,
		SourceKind:   SourceRegistry,
		Span:         findSpan(content, name, spec),
	}
}

var pypiNameCollapseRe = regexp.MustCompile(`[-_.]+`)

// normalizePyPIName implements the standard PyPI normalization: lowercase,
// runs of -, _, . collapse to a single -.
func normalizePyPIName(name string) string {
	return pypiNameCollapseRe.ReplaceAllString(strings.ToLower(name), "-")
}
