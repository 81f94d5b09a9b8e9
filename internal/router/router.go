// Package router maps a dependency descriptor's routing hint to the
// registry that should serve it, resolving credentials for alternate and
// scoped registries along the way.
package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpiton/dependi-engine/internal/core"
	"github.com/mpiton/dependi-engine/internal/manifest"
)

// AlternateRegistry is one configured non-default registry: a Cargo
// registry keyed by registry name (queried with the same crates.io-style
// API client as crates.io, not the sparse-index protocol), or an npm
// registry keyed by scope.
type AlternateRegistry struct {
	Name    string // Cargo registry_name, or npm scope (without '@')
	BaseURL string
	// CredentialEnvVar names the environment variable holding the bearer
	// token for this registry. Empty means no authentication is attempted.
	CredentialEnvVar string
}

// Config is the static routing table, swapped atomically on configuration
// reload per the engine's immutable-configuration-snapshot policy.
type Config struct {
	CargoAlternates []AlternateRegistry
	NPMScopes       []AlternateRegistry
	NPMBaseURL      string // configured base npm registry, falls back to the public one when empty
}

// ConfigError reports a routing configuration problem. Route returns it
// when a route is resolved, e.g. when the Cargo credentials file location
// cannot be determined.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "router: " + e.Reason }

// Router selects and constructs the core.Registry that should serve a
// given descriptor, and carries the bearer token (if any) that must be
// attached to that registry's outbound requests.
type Router struct {
	cfg        Config
	httpClient *core.Client
	cargoCreds *cargoCredentialsFile // lazily parsed fallback, nil until needed
}

// New builds a Router. httpClient is shared across every constructed
// registry, the way the façade shares one outbound client.
func New(cfg Config, httpClient *core.Client) *Router {
	return &Router{cfg: cfg, httpClient: httpClient}
}

// Route is the resolved destination for one descriptor: the registry
// client to call (already carrying the bearer token, if any, via its
// underlying core.Client), the base URL that identifies it for cache
// partitioning (source_registry in the cache key), and the token itself,
// retained for callers that need to know whether the route is
// authenticated.
type Route struct {
	Registry       core.Registry
	SourceRegistry string
	Token          string
}

// Route resolves the registry, base URL, and bearer token (if any) that
// should serve d. coreEcosystem is the PURL-style ecosystem name
// (core.Registry.Ecosystem()'s vocabulary), already translated from the
// descriptor's spec-literal ecosystem by the caller.
func (r *Router) Route(coreEcosystem string, d manifest.Descriptor) (Route, error) {
	switch coreEcosystem {
	case "cargo":
		return r.routeCargo(d)
	case "npm":
		return r.routeNPM(d)
	default:
		baseURL := core.DefaultURL(coreEcosystem)
		reg, err := core.New(coreEcosystem, "", r.httpClient)
		return Route{Registry: reg, SourceRegistry: baseURL}, err
	}
}

func (r *Router) routeCargo(d manifest.Descriptor) (Route, error) {
	name := d.RoutingHint.RegistryName
	if name == "" {
		baseURL := core.DefaultURL("cargo")
		reg, err := core.New("cargo", "", r.httpClient)
		return Route{Registry: reg, SourceRegistry: baseURL}, err
	}

	for _, alt := range r.cfg.CargoAlternates {
		if alt.Name != name {
			continue
		}
		token, err := r.resolveCargoToken(alt)
		if err != nil {
			return Route{}, err
		}
		reg, err := core.New("cargo", alt.BaseURL, r.clientFor(token))
		return Route{Registry: reg, SourceRegistry: alt.BaseURL, Token: token}, err
	}

	// Unconfigured registry name: fall back to crates.io per spec.
	baseURL := core.DefaultURL("cargo")
	reg, err := core.New("cargo", "", r.httpClient)
	return Route{Registry: reg, SourceRegistry: baseURL}, err
}

func (r *Router) routeNPM(d manifest.Descriptor) (Route, error) {
	scope := d.RoutingHint.Scope

	for _, alt := range r.cfg.NPMScopes {
		if alt.Name != scope {
			continue
		}
		token := r.resolveEnvToken(alt)
		reg, err := core.New("npm", alt.BaseURL, r.clientFor(token))
		return Route{Registry: reg, SourceRegistry: alt.BaseURL, Token: token}, err
	}

	baseURL := r.cfg.NPMBaseURL
	if baseURL == "" {
		baseURL = core.DefaultURL("npm")
	}
	reg, err := core.New("npm", r.cfg.NPMBaseURL, r.httpClient)
	return Route{Registry: reg, SourceRegistry: baseURL}, err
}

// resolveEnvToken returns the bearer token from alt's configured
// environment variable, or "" if unset or the registry is not HTTPS.
func (r *Router) resolveEnvToken(alt AlternateRegistry) string {
	if alt.CredentialEnvVar == "" {
		return ""
	}
	if !strings.HasPrefix(alt.BaseURL, "https://") {
		return ""
	}
	return os.Getenv(alt.CredentialEnvVar)
}

// resolveCargoToken applies the Cargo-specific fallback: when the
// configured environment variable is unset, parse the host's Cargo
// credentials file. No other ecosystem touches the filesystem for
// credentials.
func (r *Router) resolveCargoToken(alt AlternateRegistry) (string, error) {
	if tok := r.resolveEnvToken(alt); tok != "" {
		return tok, nil
	}
	if alt.CredentialEnvVar != "" {
		if _, set := os.LookupEnv(alt.CredentialEnvVar); set {
			// Variable set but empty, or non-HTTPS registry: no token, not an error.
			return "", nil
		}
	}
	if !strings.HasPrefix(alt.BaseURL, "https://") {
		return "", nil
	}

	if r.cargoCreds == nil {
		path, err := defaultCargoCredentialsPath()
		if err != nil {
			return "", &ConfigError{Reason: fmt.Sprintf("locating cargo credentials file: %v", err)}
		}
		creds, err := parseCargoCredentials(path)
		if err != nil {
			// Missing or unreadable credentials file degrades to unauthenticated,
			// matching the fetcher's overall degrade-on-missing-auth posture.
			creds = &cargoCredentialsFile{}
		}
		r.cargoCreds = creds
	}
	return r.cargoCreds.tokens[alt.Name], nil
}

// clientFor returns the router's shared client, or a copy carrying token
// as a bearer Authorization header when token is non-empty. The resulting
// client is what gets handed to core.New, so the attached registry's
// outbound requests carry the header without the caller doing anything
// further with Route.Token.
func (r *Router) clientFor(token string) *core.Client {
	if token == "" {
		return r.httpClient
	}
	return r.httpClient.WithAuthToken(token)
}

func defaultCargoCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cargo", "credentials.toml"), nil
}
