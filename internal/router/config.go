package router

import "github.com/mpiton/dependi-engine/config"

// FromSnapshot translates the external configuration surface into the
// router's routing table.
func FromSnapshot(s config.Snapshot) Config {
	cfg := Config{NPMBaseURL: s.NPMBaseURL}

	for name, reg := range s.CargoRegistries {
		cfg.CargoAlternates = append(cfg.CargoAlternates, AlternateRegistry{
			Name:             name,
			BaseURL:          reg.IndexURL,
			CredentialEnvVar: reg.Auth.Variable,
		})
	}
	for scope, reg := range s.NPMScoped {
		cfg.NPMScopes = append(cfg.NPMScopes, AlternateRegistry{
			Name:             scope,
			BaseURL:          reg.URL,
			CredentialEnvVar: reg.Auth.Variable,
		})
	}
	return cfg
}
