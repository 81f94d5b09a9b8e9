// Package nuget provides a registry client for nuget.org (.NET).
package nuget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mpiton/dependi-engine/internal/core"
)

const (
	DefaultURL = "https://api.nuget.org/v3"
	ecosystem  = "nuget"
)

func init() {
	core.Register(ecosystem, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	r.urls = &URLs{baseURL: r.baseURL}
	return r
}

func (r *Registry) Ecosystem() string {
	return ecosystem
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type registrationResponse struct {
	Items []registrationPage `json:"items"`
}

type registrationPage struct {
	Items []registrationLeaf `json:"items"`
}

type registrationLeaf struct {
	CatalogEntry catalogEntry `json:"catalogEntry"`
}

type catalogEntry struct {
	ID                string             `json:"id"`
	Version           string             `json:"version"`
	Description       string             `json:"description"`
	ProjectURL        string             `json:"projectUrl"`
	LicenseExpression string             `json:"licenseExpression"`
	Listed            bool               `json:"listed"`
	Tags              []string           `json:"tags"`
	Published         string             `json:"published"`
	Deprecation       *deprecationInfo   `json:"deprecation"`
	Dependencies      []dependencyGroup  `json:"dependencyGroups"`
	Authors           string             `json:"authors"`
}

type deprecationInfo struct {
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

type dependencyGroup struct {
	TargetFramework string       `json:"targetFramework"`
	Dependencies    []dependency `json:"dependencies"`
}

type dependency struct {
	ID    string `json:"id"`
	Range string `json:"range"`
}

func (r *Registry) fetch(ctx context.Context, name string) (*registrationResponse, error) {
	url := fmt.Sprintf("%s/registration5-semver1/%s/index.json", r.baseURL, strings.ToLower(name))

	var resp registrationResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		return nil, err
	}
	return &resp, nil
}

func leaves(resp *registrationResponse) []registrationLeaf {
	var all []registrationLeaf
	for _, page := range resp.Items {
		all = append(all, page.Items...)
	}
	return all
}

func latestListed(resp *registrationResponse) *catalogEntry {
	var latest *catalogEntry
	for _, leaf := range leaves(resp) {
		entry := leaf.CatalogEntry
		if !entry.Listed {
			continue
		}
		e := entry
		latest = &e
	}
	return latest
}

func (r *Registry) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	resp, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	entry := latestListed(resp)
	if entry == nil {
		all := leaves(resp)
		if len(all) == 0 {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		entry = &all[len(all)-1].CatalogEntry
	}

	var repository string
	if strings.Contains(entry.ProjectURL, "github.com") {
		repository = entry.ProjectURL
	}

	return &core.Package{
		Name:        entry.ID,
		Description: entry.Description,
		Homepage:    entry.ProjectURL,
		Repository:  repository,
		Licenses:    entry.LicenseExpression,
		Keywords:    entry.Tags,
		Metadata: map[string]any{
			"project_url": entry.ProjectURL,
		},
	}, nil
}

func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	resp, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	all := leaves(resp)
	versions := make([]core.Version, 0, len(all))
	for _, leaf := range all {
		entry := leaf.CatalogEntry

		var publishedAt time.Time
		if entry.Published != "" {
			publishedAt, _ = time.Parse(time.RFC3339, entry.Published)
		}

		status := core.StatusNone
		switch {
		case entry.Deprecation != nil:
			status = core.StatusDeprecated
		case !entry.Listed:
			status = core.StatusYanked
		}

		versions = append(versions, core.Version{
			Number:      entry.Version,
			PublishedAt: publishedAt,
			Licenses:    entry.LicenseExpression,
			Status:      status,
			Metadata: map[string]any{
				"listed": entry.Listed,
			},
		})
	}

	return versions, nil
}

func (r *Registry) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	resp, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	var entry *catalogEntry
	for _, leaf := range leaves(resp) {
		if leaf.CatalogEntry.Version == version {
			e := leaf.CatalogEntry
			entry = &e
			break
		}
	}
	if entry == nil {
		return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name, Version: version}
	}

	seen := make(map[string]bool)
	var deps []core.Dependency
	for _, group := range entry.Dependencies {
		for _, d := range group.Dependencies {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			deps = append(deps, core.Dependency{
				Name:         d.ID,
				Requirements: d.Range,
				Scope:        core.Runtime,
			})
		}
	}

	return deps, nil
}

func (r *Registry) FetchMaintainers(ctx context.Context, name string) ([]core.Maintainer, error) {
	resp, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	entry := latestListed(resp)
	if entry == nil {
		all := leaves(resp)
		if len(all) == 0 {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		entry = &all[len(all)-1].CatalogEntry
	}

	if entry.Authors == "" {
		return nil, nil
	}

	names := strings.Split(entry.Authors, ",")
	maintainers := make([]core.Maintainer, len(names))
	for i, n := range names {
		maintainers[i] = core.Maintainer{
			Name: strings.TrimSpace(n),
		}
	}

	return maintainers, nil
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.nuget.org/packages/%s/%s", name, version)
	}
	return fmt.Sprintf("https://www.nuget.org/packages/%s", name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	lower := strings.ToLower(name)
	return fmt.Sprintf("https://api.nuget.org/v3-flatcontainer/%s/%s/%s.%s.nupkg", lower, version, lower, version)
}

func (u *URLs) Documentation(name, version string) string {
	return ""
}

func (u *URLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:nuget/%s@%s", name, version)
	}
	return fmt.Sprintf("pkg:nuget/%s", name)
}
