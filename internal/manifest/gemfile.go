package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

func init() {
	register("rubygems", gemfileParser{})
}

type gemfileParser struct{}

// gemLineRe matches `gem "name"`, `gem "name", "~> 1.0"`, and multi-constraint
// forms like `gem "name", "~> 1.0", ">= 1.0.2"`. Not a real parser, the way
// spec.md describes the original Gemfile recognizer.
var gemLineRe = regexp.MustCompile(`gem\s+["']([^"']+)["'](?:\s*,\s*["']([^"']+)["'])?(?:\s*,\s*["']([^"']+)["'])?`)

var groupRe = regexp.MustCompile(`^\s*group\s+(.+?)\s+do`)

func (gemfileParser) Parse(_ string, content []byte) []Descriptor {
	var out []Descriptor

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	offset := 0
	var groupDepth int
	var inDevGroup bool

	for scanner.Scan() {
		raw := scanner.Text()
		lineStart := offset
		offset += len(raw) + 1

		trimmed := strings.TrimSpace(raw)

		if m := groupRe.FindStringSubmatch(trimmed); m != nil {
			groupDepth++
			if strings.Contains(m[1], "development") || strings.Contains(m[1], "test") {
				inDevGroup = true
			}
			continue
		}
		if trimmed == "end" && groupDepth > 0 {
			groupDepth--
			if groupDepth == 0 {
				inDevGroup = false
			}
			continue
		}

		m := gemLineRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		name := m[1]
		var constraints []string
		if m[2] != "" {
			constraints = append(constraints, m[2])
		}
		if m[3] != "" {
			constraints = append(constraints, m[3])
		}
		spec := strings.Join(constraints, ", ")

		kind := Runtime
		if inDevGroup {
			kind = Dev
		}

		sourceKind := SourceRegistry
		if strings.Contains(raw, "git:") {
			sourceKind = SourceGit
		} else if strings.Contains(raw, "path:") {
			sourceKind = SourceLocalPath
		}

		desc := Descriptor{
			Ecosystem:    "rubygems",
			Name:         name,
			DeclaredSpec: spec,
			Kind:         kind,
			SourceKind:   sourceKind,
		}

		nameIdx := strings.Index(raw, name)
		if nameIdx < 0 {
			nameIdx = 0
		}
		if spec != "" && m[2] != "" {
			specIdx := strings.Index(raw[nameIdx:], m[2])
			if specIdx >= 0 {
				start := lineStart + nameIdx + specIdx
				desc.Span = Span{Start: start, End: start + len(m[2])}
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
