package router_test

import (
	"testing"

	_ "github.com/mpiton/dependi-engine/internal/cargo"
	"github.com/mpiton/dependi-engine/internal/core"
	"github.com/mpiton/dependi-engine/internal/manifest"
	_ "github.com/mpiton/dependi-engine/internal/npm"
	"github.com/mpiton/dependi-engine/internal/router"
)

// TestScopedNPMRouting is scenario S2: a configured scope routes to its
// private URL with a bearer token; an unscoped package routes publicly.
func TestScopedNPMRouting(t *testing.T) {
	t.Setenv("COMPANY_NPM_TOKEN", "s3cr3t")

	cfg := router.Config{
		NPMScopes: []router.AlternateRegistry{
			{Name: "company", BaseURL: "https://npm.company.example", CredentialEnvVar: "COMPANY_NPM_TOKEN"},
		},
	}
	r := router.New(cfg, core.DefaultClient())

	widget := manifest.Descriptor{Ecosystem: "npm", Name: "@company/widget", RoutingHint: manifest.RoutingHint{Scope: "company"}}
	route, err := r.Route("npm", widget)
	if err != nil {
		t.Fatalf("routing @company/widget: %v", err)
	}
	if route.SourceRegistry != "https://npm.company.example" {
		t.Fatalf("expected private registry, got %s", route.SourceRegistry)
	}
	if route.Token != "s3cr3t" {
		t.Fatalf("expected bearer token from env, got %q", route.Token)
	}

	express := manifest.Descriptor{Ecosystem: "npm", Name: "express"}
	route, err = r.Route("npm", express)
	if err != nil {
		t.Fatalf("routing express: %v", err)
	}
	if route.Token != "" {
		t.Fatalf("expected no token for public package, got %q", route.Token)
	}
}

func TestCargoFallsBackToCratesIOWhenUnconfigured(t *testing.T) {
	cfg := router.Config{}
	r := router.New(cfg, core.DefaultClient())

	d := manifest.Descriptor{Ecosystem: "cargo", Name: "serde", RoutingHint: manifest.RoutingHint{RegistryName: "unconfigured"}}
	route, err := r.Route("cargo", d)
	if err != nil {
		t.Fatalf("routing serde: %v", err)
	}
	if route.SourceRegistry != core.DefaultURL("cargo") {
		t.Fatalf("expected crates.io fallback, got %s", route.SourceRegistry)
	}
}

func TestNonHTTPSRegistryNeverGetsToken(t *testing.T) {
	t.Setenv("INSECURE_TOKEN", "should-not-be-used")
	cfg := router.Config{
		NPMScopes: []router.AlternateRegistry{
			{Name: "insecure", BaseURL: "http://npm.insecure.example", CredentialEnvVar: "INSECURE_TOKEN"},
		},
	}
	r := router.New(cfg, core.DefaultClient())

	d := manifest.Descriptor{Ecosystem: "npm", Name: "@insecure/pkg", RoutingHint: manifest.RoutingHint{Scope: "insecure"}}
	route, err := r.Route("npm", d)
	if err != nil {
		t.Fatalf("routing: %v", err)
	}
	if route.Token != "" {
		t.Fatalf("expected no token over plain HTTP, got %q", route.Token)
	}
}
