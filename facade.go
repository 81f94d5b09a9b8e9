package dependi

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpiton/dependi-engine/config"
	"github.com/mpiton/dependi-engine/internal/cache"
	"github.com/mpiton/dependi-engine/internal/core"
	"github.com/mpiton/dependi-engine/internal/engine"
	"github.com/mpiton/dependi-engine/internal/manifest"
	"github.com/mpiton/dependi-engine/internal/router"
	"github.com/mpiton/dependi-engine/internal/vuln"
)

// Engine is the single entry point external collaborators (the editor
// protocol adapter, the command-line scanner) use: lookup, lookup_many,
// scan, invalidate. It owns the cache, router, fetchers, and
// vulnerability lookup; collaborators never touch those directly.
type Engine = engine.Engine

// VersionInfo is the engine's canonical metadata record for one package.
type VersionInfo = engine.VersionInfo

// ScanReport is scan's result: per-descriptor findings plus severity totals.
type ScanReport = engine.ScanReport

// ScanFinding is one descriptor's entry within a ScanReport.
type ScanFinding = engine.ScanFinding

// Descriptor is one dependency as extracted from a manifest by ParseManifest.
type Descriptor = manifest.Descriptor

// Severity is the four-level advisory scale.
type Severity = vuln.Severity

const (
	SeverityCritical = vuln.Critical
	SeverityHigh     = vuln.High
	SeverityMedium   = vuln.Medium
	SeverityLow      = vuln.Low
)

// CacheKey identifies one cache entry for selective invalidation.
type CacheKey = cache.Key

// NewEngine constructs an Engine from a configuration snapshot and a
// durable cache path. An empty dbPath runs hot-tier-only, which is useful
// for short-lived command-line invocations that do not want to manage a
// cache file.
func NewEngine(snapshot config.Snapshot, dbPath string, logger *slog.Logger) (*Engine, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	var cold cache.ColdStore
	if dbPath != "" {
		store, err := cache.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		cold = store
	}

	routerCfg := router.FromSnapshot(snapshot)
	httpClient := core.NewClient(core.WithTimeout(30 * time.Second))
	return engine.New(cold, routerCfg, httpClient, snapshot.SecurityEnabled, snapshot.CacheTTL, snapshot.Ignore, logger), nil
}

// ParseManifest extracts dependency descriptors from one manifest file.
// ecosystem selects the dialect; see manifest.Descriptor.Ecosystem for the
// accepted values.
func ParseManifest(ecosystem, filename string, content []byte) []Descriptor {
	return manifest.ParseAll(ecosystem, filename, content)
}

// Lookup resolves a single descriptor, serving a stale cache entry
// immediately while revalidating in the background when needed.
func Lookup(ctx context.Context, e *Engine, d Descriptor) (VersionInfo, error) {
	return e.Lookup(ctx, d)
}

// LookupMany resolves descriptors concurrently, preserving input order.
func LookupMany(ctx context.Context, e *Engine, descriptors []Descriptor) ([]VersionInfo, error) {
	return e.LookupMany(ctx, descriptors)
}

// Scan forces a synchronous refresh of every descriptor and filters
// vulnerabilities by minSeverity.
func Scan(ctx context.Context, e *Engine, descriptors []Descriptor, minSeverity Severity) (ScanReport, error) {
	return e.Scan(ctx, descriptors, minSeverity)
}

// Invalidate clears a single cache key from both tiers. With a nil key only
// the in-memory tier is cleared: durable-tier entries are not deleted and
// can still be served until a sweep removes them.
func Invalidate(e *Engine, key *CacheKey) {
	e.Invalidate(key)
}
