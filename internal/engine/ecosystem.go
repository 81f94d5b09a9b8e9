package engine

// Manifest parsers and the version algebra key ecosystems by the
// specification's literal names (go, packagist, rubygems). The registry
// clients under internal/core key the same ecosystems by their PURL type
// (golang, composer, gem). toCoreEcosystem is the one place that bridges
// the two vocabularies; every other package picks one side and stays there.
var manifestToCoreEcosystem = map[string]string{
	"go":        "golang",
	"packagist": "composer",
	"rubygems":  "gem",
}

func toCoreEcosystem(manifestEcosystem string) string {
	if core, ok := manifestToCoreEcosystem[manifestEcosystem]; ok {
		return core
	}
	return manifestEcosystem
}
