package manifest

import (
	"regexp"

	"golang.org/x/mod/modfile"
)

func init() {
	register("go", golangParser{})
}

type golangParser struct{}

var pseudoVersionRe = regexp.MustCompile(`^v\d+\.\d+\.\d+-(?:0\.)?\d{14}-[0-9a-f]{12}(\+incompatible)?$`)

func (golangParser) Parse(filename string, content []byte) []Descriptor {
	f, err := modfile.Parse(filename, content, nil)
	if err != nil || f == nil {
		return []Descriptor{}
	}

	excluded := map[string]bool{}
	for _, ex := range f.Exclude {
		excluded[ex.Mod.Path+"@"+ex.Mod.Version] = true
	}

	replaced := map[string]string{}
	for _, rep := range f.Replace {
		replaced[rep.Old.Path] = rep.New.Path
	}

	var out []Descriptor
	for _, req := range f.Require {
		path := req.Mod.Path
		version := req.Mod.Version

		kind := Runtime
		if req.Indirect {
			kind = Indirect
		}

		desc := Descriptor{
			Ecosystem:    "go",
			Name:         path,
			DeclaredSpec: version,
			Kind:         kind,
			SourceKind:   SourceRegistry,
		}

		switch {
		case excluded[path+"@"+version]:
			// An exclude directive removes this exact module@version from
			// the build list; the module graph resolves to some other
			// version instead, so there is nothing here for a registry
			// lookup to confirm against.
			desc.SourceKind = SourceExcluded
		case replaced[path] != "":
			desc.SourceKind = SourceReplaced
		case pseudoVersionRe.MatchString(version):
			desc.SourceKind = SourcePseudo
		}

		desc.Span = findSpan(content, path, version)
		out = append(out, desc)
	}

	return out
}
