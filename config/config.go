// Package config defines the immutable configuration snapshot the engine
// is constructed from. Configuration is read once at startup and frozen
// for the process lifetime; dynamic reconfiguration is out of scope — a
// reload swaps the whole snapshot atomically rather than mutating fields.
package config

import (
	"fmt"
	"path"
	"time"
)

// ConfigurationError reports an invalid configuration value. Startup fails
// loudly on this error, pointing at the offending key, rather than
// degrading like the engine's other error kinds.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Key, e.Reason)
}

// AuthConfig names the environment variable a bearer token is read from at
// request time.
type AuthConfig struct {
	Type     string // currently only "env" is recognized
	Variable string
}

// CargoRegistry is one configured Cargo alternative registry.
type CargoRegistry struct {
	IndexURL string
	Auth     AuthConfig
}

// NPMScope is one configured npm scoped registry.
type NPMScope struct {
	URL  string
	Auth AuthConfig
}

// Snapshot is the frozen configuration value threaded by reference through
// the engine and its collaborators.
type Snapshot struct {
	InlayHintsEnabled      bool
	InlayHintsShowUpToDate bool
	DiagnosticsEnabled     bool

	CacheTTL time.Duration

	SecurityEnabled     bool
	SecurityMinSeverity string // one of low, medium, high, critical

	Ignore []string // glob patterns; matching names are not resolved

	CargoRegistries map[string]CargoRegistry // keyed by registry_name
	NPMBaseURL      string
	NPMScoped       map[string]NPMScope // keyed by scope, without leading '@'
}

// Default returns the snapshot used when the collaborator supplies no
// overrides.
func Default() Snapshot {
	return Snapshot{
		InlayHintsEnabled:      true,
		InlayHintsShowUpToDate: false,
		DiagnosticsEnabled:     true,
		CacheTTL:               time.Hour,
		SecurityEnabled:        true,
		SecurityMinSeverity:    "low",
		CargoRegistries:        map[string]CargoRegistry{},
		NPMScoped:              map[string]NPMScope{},
	}
}

var validSeverities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Validate fails loudly on the first malformed key, per the
// ConfigurationError policy: invalid configuration must never degrade
// silently.
func (s Snapshot) Validate() error {
	if s.CacheTTL <= 0 {
		return &ConfigurationError{Key: "cache.ttl_secs", Reason: "must be positive"}
	}
	if s.SecurityEnabled && !validSeverities[s.SecurityMinSeverity] {
		return &ConfigurationError{Key: "security.min_severity", Reason: "must be one of low, medium, high, critical"}
	}
	for _, pattern := range s.Ignore {
		if _, err := path.Match(pattern, ""); err != nil {
			return &ConfigurationError{Key: "ignore", Reason: fmt.Sprintf("malformed glob pattern %q", pattern)}
		}
	}
	for name, reg := range s.CargoRegistries {
		if reg.IndexURL == "" {
			return &ConfigurationError{Key: fmt.Sprintf("registries.cargo.registries.%s.index_url", name), Reason: "must not be empty"}
		}
		if reg.Auth.Type != "" && reg.Auth.Type != "env" {
			return &ConfigurationError{Key: fmt.Sprintf("registries.cargo.registries.%s.auth.type", name), Reason: "only \"env\" is supported"}
		}
	}
	for scope, reg := range s.NPMScoped {
		if reg.URL == "" {
			return &ConfigurationError{Key: fmt.Sprintf("registries.npm.scoped.%s.url", scope), Reason: "must not be empty"}
		}
		if reg.Auth.Type != "" && reg.Auth.Type != "env" {
			return &ConfigurationError{Key: fmt.Sprintf("registries.npm.scoped.%s.auth.type", scope), Reason: "only \"env\" is supported"}
		}
	}
	return nil
}
