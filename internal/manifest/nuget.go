package manifest

import (
	"encoding/xml"
	"strings"
)

func init() {
	register("nuget", nugetParser{})
}

type nugetParser struct{}

type csprojDocument struct {
	ItemGroups []struct {
		PackageReferences []packageRefElement `xml:"PackageReference"`
		PackageVersions   []packageRefElement `xml:"PackageVersion"`
	} `xml:"ItemGroup"`
}

type packageRefElement struct {
	Include string `xml:"Include,attr"`
	Version string `xml:"Version,attr"`
}

func (nugetParser) Parse(_ string, content []byte) []Descriptor {
	var doc csprojDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return []Descriptor{}
	}

	var out []Descriptor
	for _, group := range doc.ItemGroups {
		for _, ref := range group.PackageReferences {
			out = append(out, nugetDescriptor(ref, content))
		}
		for _, ref := range group.PackageVersions {
			out = append(out, nugetDescriptor(ref, content))
		}
	}

	return out
}

func nugetDescriptor(ref packageRefElement, content []byte) Descriptor {
	return Descriptor{
		Ecosystem:    "nuget",
		Name:         strings.ToLower(ref.Include),
		DeclaredSpec: ref.Version,
		Kind:         Runtime,
		SourceKind:   SourceRegistry,
		Span:         findSpan(content, ref.Include, ref.Version),
	}
}
