package engine

import (
	"context"

	"github.com/mpiton/dependi-engine/internal/cache"
	"github.com/mpiton/dependi-engine/internal/manifest"
	"github.com/mpiton/dependi-engine/internal/vuln"
)

// ScanFinding is one descriptor's scan result: its resolved metadata plus
// the advisories at or above the requested severity.
type ScanFinding struct {
	Descriptor      manifest.Descriptor
	Info            VersionInfo
	Vulnerabilities []vuln.Advisory
}

// ScanReport is scan's synchronous result: per-descriptor findings plus
// severity totals across the whole batch.
type ScanReport struct {
	Findings []ScanFinding
	Total    int
	Critical int
	High     int
	Medium   int
	Low      int
}

// Scan forces a refresh of every descriptor (even non-stale cache
// entries), joins vulnerabilities, and filters by minSeverity. Unlike
// Lookup, this is a synchronous end-to-end call: the command-line
// scanning front-end needs a single deterministic answer, not a
// stale-while-revalidate read.
func (e *Engine) Scan(ctx context.Context, descriptors []manifest.Descriptor, minSeverity vuln.Severity) (ScanReport, error) {
	var report ScanReport

	for _, d := range descriptors {
		if d.SourceKind != manifest.SourceRegistry {
			report.Findings = append(report.Findings, ScanFinding{Descriptor: d, Info: syntheticVersionInfo(d)})
			continue
		}
		if e.isIgnored(d.Name) {
			report.Findings = append(report.Findings, ScanFinding{Descriptor: d, Info: ignoredVersionInfo(d)})
			continue
		}

		coreEco := toCoreEcosystem(d.Ecosystem)
		route, err := e.router.Route(coreEco, d)
		if err != nil {
			return report, err
		}

		key := keyFor(d, route.SourceRegistry)
		info, err := e.fetchAndStore(ctx, key, coreEco, d, route)
		if err != nil {
			return report, err
		}

		var kept []vuln.Advisory
		for _, adv := range info.Vulnerabilities {
			if adv.Severity.AtLeast(minSeverity) {
				kept = append(kept, adv)
				report.Total++
				tallySeverity(&report, adv.Severity)
			}
		}

		report.Findings = append(report.Findings, ScanFinding{Descriptor: d, Info: info, Vulnerabilities: kept})
	}

	return report, nil
}

func tallySeverity(report *ScanReport, s vuln.Severity) {
	switch s {
	case vuln.Critical:
		report.Critical++
	case vuln.High:
		report.High++
	case vuln.Medium:
		report.Medium++
	default:
		report.Low++
	}
}

func keyFor(d manifest.Descriptor, sourceRegistry string) cache.Key {
	return cache.Key{Ecosystem: d.Ecosystem, SourceRegistry: sourceRegistry, Name: manifest.CanonicalName(d.Ecosystem, d.Name)}
}
