package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default snapshot must validate, got %v", err)
	}
}

func TestValidateNonPositiveTTL(t *testing.T) {
	s := Default()
	s.CacheTTL = 0
	err := s.Validate()
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "cache.ttl_secs" {
		t.Errorf("expected cache.ttl_secs, got %s", cfgErr.Key)
	}
}

func TestValidateUnknownSeverity(t *testing.T) {
	s := Default()
	s.SecurityMinSeverity = "catastrophic"
	err := s.Validate()
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "security.min_severity" {
		t.Errorf("expected security.min_severity, got %s", cfgErr.Key)
	}
}

func TestValidateSeverityIgnoredWhenSecurityDisabled(t *testing.T) {
	s := Default()
	s.SecurityEnabled = false
	s.SecurityMinSeverity = "not-a-real-level"
	if err := s.Validate(); err != nil {
		t.Fatalf("disabled security must not validate min_severity, got %v", err)
	}
}

func TestValidateCargoRegistryEmptyIndexURL(t *testing.T) {
	s := Default()
	s.CargoRegistries = map[string]CargoRegistry{"corp": {IndexURL: ""}}
	err := s.Validate()
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "registries.cargo.registries.corp.index_url" {
		t.Errorf("unexpected key: %s", cfgErr.Key)
	}
}

func TestValidateCargoRegistryBadAuthType(t *testing.T) {
	s := Default()
	s.CargoRegistries = map[string]CargoRegistry{
		"corp": {IndexURL: "https://cargo.corp.example", Auth: AuthConfig{Type: "oauth"}},
	}
	err := s.Validate()
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "registries.cargo.registries.corp.auth.type" {
		t.Errorf("unexpected key: %s", cfgErr.Key)
	}
}

func TestValidateNPMScopedEmptyURL(t *testing.T) {
	s := Default()
	s.NPMScoped = map[string]NPMScope{"corp": {URL: ""}}
	err := s.Validate()
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "registries.npm.scoped.corp.url" {
		t.Errorf("unexpected key: %s", cfgErr.Key)
	}
}

func asConfigurationError(err error, target **ConfigurationError) bool {
	if ce, ok := err.(*ConfigurationError); ok {
		*target = ce
		return true
	}
	return false
}
