package router

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// cargoCredentialsFile is the parsed shape of ~/.cargo/credentials.toml:
//
//	[registries.my-registry]
//	token = "..."
//
//	[registry]
//	token = "..." # crates.io, not used by alternate-registry routing
type cargoCredentialsFile struct {
	tokens map[string]string // registry name -> token
}

func parseCargoCredentials(path string) (*cargoCredentialsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Registries map[string]struct {
			Token string `toml:"token"`
		} `toml:"registries"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	tokens := make(map[string]string, len(doc.Registries))
	for name, entry := range doc.Registries {
		tokens[name] = entry.Token
	}
	return &cargoCredentialsFile{tokens: tokens}, nil
}
