// Package vuln batches advisory lookups against a single OSV-shaped source
// and normalizes results onto the four-level severity scale.
package vuln

import (
	"context"
	"log/slog"

	"github.com/git-pkgs/purl"
	"github.com/git-pkgs/vulns"
	"github.com/git-pkgs/vulns/osv"
)

// Severity is the four-level scale, total order critical > high > medium > low.
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
)

var severityRank = map[Severity]int{
	Critical: 3,
	High:     2,
	Medium:   1,
	Low:      0,
}

// AtLeast reports whether s meets or exceeds min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Advisory is one vulnerability record joined onto a VersionInfo.
type Advisory struct {
	ID             string
	Severity       Severity
	AffectedRanges []string
	FixedIn        string
	Summary        string
	URL            string
}

// Query identifies one (ecosystem, package, declared version) triple to
// check for known vulnerabilities. Ecosystem is the PURL-style name
// (golang, composer, gem, ...), the vocabulary purl.MakePURL expects, not
// the manifest package's own ecosystem identifiers.
type Query struct {
	Ecosystem       string
	Name            string
	DeclaredVersion string
}

// Lookup batches advisory queries through a single source. An outage
// degrades to an empty result per query rather than failing the caller —
// metadata resolution never blocks on the advisory database.
type Lookup struct {
	source vulns.Source
	logger *slog.Logger
}

// New creates a Lookup backed by the OSV source, the way git-pkgs/proxy's
// enrichment service wires vulns.Source onto VersionInfo-shaped records.
func New(logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{source: osv.New(), logger: logger}
}

// Batch queries advisories for every entry in queries, in order. A failure
// for the whole batch logs and returns a slice of empty results rather than
// an error, matching spec's "advisory outage never prevents metadata
// display."
func (l *Lookup) Batch(ctx context.Context, queries []Query) [][]Advisory {
	purls := make([]*purl.PURL, len(queries))
	for i, q := range queries {
		purls[i] = purl.MakePURL(q.Ecosystem, q.Name, q.DeclaredVersion)
	}

	results, err := l.source.QueryBatch(ctx, purls)
	if err != nil {
		l.logger.Warn("vuln: advisory database unavailable, degrading to no annotations", "error", err)
		return make([][]Advisory, len(queries))
	}

	out := make([][]Advisory, len(queries))
	for i, vulnList := range results {
		q := queries[i]
		advisories := make([]Advisory, 0, len(vulnList))
		for _, v := range vulnList {
			adv := Advisory{
				ID:       v.ID,
				Severity: normalizeSeverity(v.SeverityLevel()),
				Summary:  v.Summary,
				FixedIn:  v.FixedVersion(q.Ecosystem, q.Name),
			}
			for _, ref := range v.References {
				adv.URL = ref.URL
				break
			}
			advisories = append(advisories, adv)
		}
		out[i] = advisories
	}
	return out
}

func normalizeSeverity(level string) Severity {
	switch level {
	case "critical", "CRITICAL":
		return Critical
	case "high", "HIGH":
		return High
	case "medium", "MEDIUM", "moderate", "MODERATE":
		return Medium
	default:
		return Low
	}
}
