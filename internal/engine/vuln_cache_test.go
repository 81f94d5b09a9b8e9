package engine

import (
	"context"
	"testing"
	"time"

	"github.com/mpiton/dependi-engine/internal/cache"
	"github.com/mpiton/dependi-engine/internal/manifest"
	"github.com/mpiton/dependi-engine/internal/router"
	"github.com/mpiton/dependi-engine/internal/vuln"
)

// TestAnnotateVulnerabilitiesServesFreshCacheWithoutQuerying confirms a
// fresh advisory cache entry short-circuits the vulnerability source
// entirely, proving the independent vulnTTL path is consulted before any
// network lookup.
func TestAnnotateVulnerabilitiesServesFreshCacheWithoutQuerying(t *testing.T) {
	e := New(nil, router.Config{}, nil, true, 0, nil, nil)

	d := manifest.Descriptor{Ecosystem: "cargo", Name: "serde", DeclaredSpec: "1.0.0"}
	coreEco := toCoreEcosystem(d.Ecosystem)
	key := vulnCacheKey(coreEco, d.Name, d.DeclaredSpec)

	seeded := []vuln.Advisory{{ID: "RUSTSEC-2024-0001", Severity: vuln.High, Summary: "seeded advisory"}}
	if err := e.cache.PutValue(key, seeded, vulnTTL, time.Now()); err != nil {
		t.Fatalf("seeding vuln cache: %v", err)
	}

	var info VersionInfo
	e.annotateVulnerabilities(context.Background(), coreEco, d, &info)

	if len(info.Vulnerabilities) != 1 || info.Vulnerabilities[0].ID != "RUSTSEC-2024-0001" {
		t.Fatalf("expected the seeded advisory to be served from cache, got %+v", info.Vulnerabilities)
	}
}

func TestVulnCacheKeyDoesNotCollideWithMetadataKey(t *testing.T) {
	coreEco := "cargo"
	vk := vulnCacheKey(coreEco, "serde", "1.0.0")
	mk := cache.Key{Ecosystem: coreEco, SourceRegistry: "https://crates.io", Name: "serde"}

	if vk == mk {
		t.Fatal("vulnerability cache key must not equal a metadata cache key")
	}
}
