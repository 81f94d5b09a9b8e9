// Package engine is the façade every external collaborator calls through:
// lookup, lookup_many, scan, and invalidate, per the system's single-entry-
// point design. It owns no protocol or document state; it consumes
// descriptors and returns VersionInfo records.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/spdx"

	download "github.com/mpiton/dependi-engine/fetch"
	"github.com/mpiton/dependi-engine/internal/cache"
	"github.com/mpiton/dependi-engine/internal/core"
	"github.com/mpiton/dependi-engine/internal/fetch"
	"github.com/mpiton/dependi-engine/internal/manifest"
	"github.com/mpiton/dependi-engine/internal/router"
	"github.com/mpiton/dependi-engine/internal/versionkind"
	"github.com/mpiton/dependi-engine/internal/vuln"
)

// TimeoutError reports a fetch that exceeded its deadline. Per the
// concurrency model, a timeout is never cached — the next call retries.
type TimeoutError struct {
	Ecosystem string
	Name      string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine: fetch timed out for %s/%s", e.Ecosystem, e.Name)
}

const (
	metadataTimeout  = 10 * time.Second
	defaultMetaTTL   = time.Hour
	vulnTTL          = 6 * time.Hour
	defaultFanoutCap = 32
)

// VersionInfo is the engine's canonical result for one dependency.
type VersionInfo struct {
	LatestStable       string
	LatestPrerelease   string
	AllVersions        []string
	YankedVersions     map[string]bool
	Deprecated         bool
	DeprecationMessage string
	Description        string
	Homepage           string
	Repository         string
	License            string
	ReleaseDates       map[string]time.Time
	FetchedAt          time.Time
	SourceRegistry     string
	Vulnerabilities    []vuln.Advisory

	// Synthetic is set for non-registry source kinds (local-path, git, sdk,
	// replaced, pseudo, excluded); such records are never cached and carry
	// no version data beyond what the descriptor itself states. LookupMany
	// also returns an empty Synthetic record in place of a failed lookup.
	Synthetic bool

	// Ignored is set when the descriptor's name matched a configured
	// ignore glob; like Synthetic, no network call was made and no data
	// beyond the descriptor itself is populated.
	Ignored bool
}

// Engine wires the manifest parsers' output through caching, routing,
// fetching, and vulnerability enrichment.
type Engine struct {
	cache      *cache.Cache
	coalescer  *fetch.Coalescer
	router     *router.Router
	vulnLookup *vuln.Lookup
	breaker    *download.CircuitBreakerFetcher
	logger     *slog.Logger

	limiters map[string]*fetch.TokenBucket

	securityEnabled bool
	fanoutCap       int
	metaTTL         time.Duration
	ignore          []string
}

// New builds an Engine. cold may be nil to run cache hot-tier-only.
// metaTTL is the configured metadata cache TTL (config.Snapshot.CacheTTL);
// a non-positive value falls back to defaultMetaTTL. ignore is the set of
// glob patterns (config.Snapshot.Ignore) whose matching dependency names
// are never resolved.
func New(cold cache.ColdStore, routerCfg router.Config, httpClient *core.Client, securityEnabled bool, metaTTL time.Duration, ignore []string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metaTTL <= 0 {
		metaTTL = defaultMetaTTL
	}
	return &Engine{
		cache:           cache.New(cold, logger),
		coalescer:       fetch.NewCoalescer(),
		router:          router.New(routerCfg, httpClient),
		vulnLookup:      vuln.New(logger),
		breaker:         download.NewCircuitBreakerFetcher(download.NewFetcher()),
		logger:          logger,
		limiters:        make(map[string]*fetch.TokenBucket),
		securityEnabled: securityEnabled,
		fanoutCap:       defaultFanoutCap,
		metaTTL:         metaTTL,
		ignore:          ignore,
	}
}

func hostOf(sourceRegistry string) string {
	if u, err := url.Parse(sourceRegistry); err == nil && u.Host != "" {
		return u.Host
	}
	return sourceRegistry
}

// isIgnored reports whether name matches any of the engine's configured
// ignore globs (config.Snapshot.Ignore). A malformed pattern never
// matches rather than erroring — pattern syntax is validated at startup.
func (e *Engine) isIgnored(name string) bool {
	for _, pattern := range e.ignore {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (e *Engine) limiterFor(sourceRegistry string) *fetch.TokenBucket {
	host := hostOf(sourceRegistry)
	if l, ok := e.limiters[host]; ok {
		return l
	}
	l := fetch.NewTokenBucket(fetch.BudgetFor(host))
	e.limiters[host] = l
	return l
}

// Lookup is read-through with background revalidation: a fresh cache hit
// returns immediately; a stale hit returns immediately too, while a
// refresh is launched in the background through the coalescer so later
// callers see the updated record.
func (e *Engine) Lookup(ctx context.Context, d manifest.Descriptor) (VersionInfo, error) {
	if d.SourceKind != manifest.SourceRegistry {
		return syntheticVersionInfo(d), nil
	}
	if e.isIgnored(d.Name) {
		return ignoredVersionInfo(d), nil
	}

	coreEco := toCoreEcosystem(d.Ecosystem)
	route, err := e.router.Route(coreEco, d)
	if err != nil {
		return VersionInfo{}, err
	}

	key := cache.Key{Ecosystem: d.Ecosystem, SourceRegistry: route.SourceRegistry, Name: manifest.CanonicalName(d.Ecosystem, d.Name)}
	now := time.Now()

	if entry, ok := e.cache.Get(key); ok {
		var info VersionInfo
		if err := json.Unmarshal(entry.Payload, &info); err == nil {
			if entry.Stale(now) {
				go e.refreshInBackground(key, coreEco, d, route)
			}
			return info, nil
		}
	}

	info, err := e.fetchAndStore(ctx, key, coreEco, d, route)
	if err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

// refreshInBackground re-fetches through the coalescer so a concurrent
// foreground Lookup for the same key joins this call instead of issuing a
// second request. It is independent of any caller's context and cannot be
// cancelled except by process shutdown.
func (e *Engine) refreshInBackground(key cache.Key, coreEco string, d manifest.Descriptor, route router.Route) {
	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()
	if _, err := e.fetchAndStore(ctx, key, coreEco, d, route); err != nil {
		e.logger.Debug("engine: background revalidation failed", "ecosystem", d.Ecosystem, "name", d.Name, "error", err)
	}
}

// fetchAndStore coalesces concurrent fetches for key, writes the result
// to both cache tiers on success, and annotates it with vulnerabilities
// when security is enabled.
func (e *Engine) fetchAndStore(ctx context.Context, key cache.Key, coreEco string, d manifest.Descriptor, route router.Route) (VersionInfo, error) {
	coalesceKey := key.Ecosystem + "\x00" + key.SourceRegistry + "\x00" + key.Name

	result, err := e.coalescer.Do(ctx, coalesceKey, func(ctx context.Context) (any, error) {
		return e.fetch(ctx, coreEco, d, route)
	})
	if err != nil {
		var timeout *TimeoutError
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			timeout = &TimeoutError{Ecosystem: d.Ecosystem, Name: d.Name}
			return VersionInfo{}, timeout
		}
		return VersionInfo{}, err
	}

	info := result.Value.(VersionInfo)
	now := time.Now()
	info.FetchedAt = now

	if e.securityEnabled {
		e.annotateVulnerabilities(ctx, coreEco, d, &info)
	}

	if err := e.cache.PutValue(key, info, e.metaTTL, now); err != nil {
		e.logger.Warn("engine: failed to marshal cache payload", "error", err)
	}
	return info, nil
}

// fetch performs the single network round-trip for one descriptor: rate
// limit, then list versions and package metadata, then classify.
func (e *Engine) fetch(ctx context.Context, coreEco string, d manifest.Descriptor, route router.Route) (VersionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	limiter := e.limiterFor(route.SourceRegistry)
	if err := limiter.Wait(ctx); err != nil {
		return VersionInfo{}, err
	}

	host := hostOf(route.SourceRegistry)

	var versions []core.Version
	var pkg *core.Package
	err := e.breaker.Call(host, func() error {
		var fetchErr error
		versions, fetchErr = route.Registry.FetchVersions(ctx, d.Name)
		if fetchErr != nil {
			return fetchErr
		}
		pkg, fetchErr = route.Registry.FetchPackage(ctx, d.Name)
		return fetchErr
	})
	if err != nil {
		return VersionInfo{}, err
	}

	return buildVersionInfo(d.Ecosystem, route.SourceRegistry, pkg, versions), nil
}

func buildVersionInfo(ecosystem, sourceRegistry string, pkg *core.Package, versions []core.Version) VersionInfo {
	all := make([]string, 0, len(versions))
	yanked := make(map[string]bool)
	releaseDates := make(map[string]time.Time)
	deprecated := false
	deprecationMessage := ""

	for _, v := range versions {
		all = append(all, v.Number)
		if v.Status == core.StatusYanked || v.Status == core.StatusRetracted {
			yanked[v.Number] = true
		}
		if v.Status == core.StatusDeprecated {
			deprecated = true
			if msg, ok := v.Metadata["deprecation_message"].(string); ok {
				deprecationMessage = msg
			}
		}
		if !v.PublishedAt.IsZero() {
			releaseDates[v.Number] = v.PublishedAt
		}
	}

	cmp := versionkind.For(ecosystem)
	sort.Slice(all, func(i, j int) bool { return cmp.Compare(all[i], all[j]) > 0 })
	dedupe(&all)

	var latestPrerelease string
	for _, v := range all {
		if cmp.IsPrerelease(v) {
			latestPrerelease = v
			break
		}
	}

	info := VersionInfo{
		LatestStable:       versionkind.LatestStableOf(ecosystem, all, yanked),
		LatestPrerelease:   latestPrerelease,
		AllVersions:        all,
		YankedVersions:     yanked,
		Deprecated:         deprecated,
		DeprecationMessage: deprecationMessage,
		ReleaseDates:       releaseDates,
		SourceRegistry:     sourceRegistry,
	}
	if pkg != nil {
		info.Description = pkg.Description
		info.Homepage = pkg.Homepage
		info.Repository = pkg.Repository
		info.License = normalizeLicense(pkg.Licenses)
	}
	return info
}

// normalizeLicense reduces a registry's free-form license string to an SPDX
// expression. A license string the normalizer cannot parse (registry-specific
// shorthand, a custom license name) is passed through unchanged rather than
// dropped, since a raw string is still more useful to a caller than nothing.
func normalizeLicense(license string) string {
	if license == "" {
		return ""
	}
	if normalized, err := spdx.NormalizeExpressionLax(license); err == nil {
		return normalized
	}
	return license
}

func dedupe(versions *[]string) {
	seen := make(map[string]bool, len(*versions))
	out := (*versions)[:0]
	for _, v := range *versions {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	*versions = out
}

func syntheticVersionInfo(d manifest.Descriptor) VersionInfo {
	return VersionInfo{
		FetchedAt: time.Now(),
		Synthetic: true,
	}
}

func ignoredVersionInfo(d manifest.Descriptor) VersionInfo {
	return VersionInfo{
		FetchedAt: time.Now(),
		Ignored:   true,
	}
}

// vulnCacheSentinel occupies cache.Key's SourceRegistry field for advisory
// entries, which are keyed by (ecosystem, name, declared_version) rather
// than by source registry, so they never collide with a VersionInfo entry.
const vulnCacheSentinel = "\x00vuln"

func vulnCacheKey(coreEco, name, declaredVersion string) cache.Key {
	return cache.Key{Ecosystem: coreEco, SourceRegistry: vulnCacheSentinel, Name: name + "\x00" + declaredVersion}
}

// annotateVulnerabilities joins advisory data onto info under its own TTL
// (vulnTTL), independent of the metadata TTL that governs the surrounding
// VersionInfo — a stale VersionInfo refresh does not force an advisory
// re-query, and vice versa, per the cache's two-TTL design.
//
// coreEco is the PURL ecosystem vocabulary (golang, composer, gem, ...),
// not the manifest's own ecosystem name — purl.MakePURL and the registry
// package share that vocabulary, so a mismatch here (e.g. "go" instead of
// "golang") would silently return zero advisories for every mismapped
// ecosystem instead of erroring.
func (e *Engine) annotateVulnerabilities(ctx context.Context, coreEco string, d manifest.Descriptor, info *VersionInfo) {
	key := vulnCacheKey(coreEco, manifest.CanonicalName(d.Ecosystem, d.Name), d.DeclaredSpec)
	now := time.Now()

	if entry, ok := e.cache.Get(key); ok && !entry.Stale(now) {
		var advisories []vuln.Advisory
		if err := json.Unmarshal(entry.Payload, &advisories); err == nil {
			info.Vulnerabilities = advisories
			return
		}
	}

	results := e.vulnLookup.Batch(ctx, []vuln.Query{{
		Ecosystem:       coreEco,
		Name:            d.Name,
		DeclaredVersion: d.DeclaredSpec,
	}})
	if len(results) != 1 {
		return
	}
	info.Vulnerabilities = results[0]
	if err := e.cache.PutValue(key, results[0], vulnTTL, now); err != nil {
		e.logger.Warn("engine: failed to marshal vulnerability cache payload", "error", err)
	}
}

// LookupMany resolves descriptors concurrently, bounded by fanoutCap, and
// preserves input order in the returned slice.
func (e *Engine) LookupMany(ctx context.Context, descriptors []manifest.Descriptor) ([]VersionInfo, error) {
	results := make([]VersionInfo, len(descriptors))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanoutCap)

	for i, d := range descriptors {
		i, d := i, d
		g.Go(func() error {
			info, err := e.Lookup(ctx, d)
			if err != nil {
				results[i] = VersionInfo{Synthetic: true}
				return nil // a single failed lookup degrades, it does not abort the batch
			}
			results[i] = info
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Invalidate removes a single cache key from both tiers. With a nil key it
// clears the hot tier only: durable-tier entries are not deleted and can
// still be served until a sweep removes them.
func (e *Engine) Invalidate(key *cache.Key) {
	if key == nil {
		e.cache.InvalidateAll()
		return
	}
	e.cache.Invalidate(*key)
}
