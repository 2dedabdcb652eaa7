package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabConfig holds the three values that must all be set for the GitLab
// Container Registry adapter to be usable (spec §6).
type GitLabConfig struct {
	BaseURL   string
	Token     string
	ProjectID string
}

// Ready reports whether all three required values are set.
func (c GitLabConfig) Ready() bool {
	return c.BaseURL != "" && c.Token != "" && c.ProjectID != ""
}

// GitLab is a registry.Adapter over a GitLab Container Registry project.
// Unlike DockerHub, it reports no digests and performs no flavour-aware
// stop-early pagination — it returns whatever tag names the API lists,
// verbatim, following the API's pagination to the last page.
type GitLab struct {
	Config GitLabConfig
	Log    logr.Logger

	newClient func(cfg GitLabConfig) (*gitlab.Client, error)
}

// NewGitLab constructs a GitLab adapter. The client is created lazily on
// first use so a GitLab value can be held even when credentials are absent
// (ListCandidateTags then returns ErrNoCredentials, non-fatal per spec §7).
func NewGitLab(cfg GitLabConfig, log logr.Logger) *GitLab {
	return &GitLab{
		Config: cfg,
		Log:    log,
		newClient: func(cfg GitLabConfig) (*gitlab.Client, error) {
			return gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(cfg.BaseURL))
		},
	}
}

// ResolveNamespace is a no-op for GitLab: the adapter addresses images by
// repository name within a single configured project, there is no separate
// namespace-discovery step as there is for DockerHub.
func (g *GitLab) ResolveNamespace(ctx context.Context, name string) (string, error) {
	if !g.Config.Ready() {
		return "", ErrNoCredentials
	}
	return g.Config.ProjectID, nil
}

// ListCandidateTags lists every tag of the named Container Registry
// repository within the configured project, found via a full
// (all-paginated) scan of the project's registry repositories.
func (g *GitLab) ListCandidateTags(ctx context.Context, namespace, name string) ([]Tag, error) {
	if !g.Config.Ready() {
		return nil, ErrNoCredentials
	}
	client, err := g.newClient(g.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}

	repo, err := g.findRepository(client, name)
	if err != nil {
		return nil, err
	}

	var tags []Tag
	opts := &gitlab.ListRegistryRepositoryTagsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1},
	}
	for {
		page, resp, err := client.ContainerRegistry.ListRegistryRepositoryTags(g.Config.ProjectID, repo.ID, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
		}
		for _, t := range page {
			tag := Tag{Name: t.Name, Digest: t.Digest}
			if t.CreatedAt != nil {
				tag.LastUpdated = *t.CreatedAt
			}
			tags = append(tags, tag)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return tags, nil
}

// TagTimestamp returns the tag's CreatedAt as reported by the registry
// repository tags listing — GitLab's API does not expose a dedicated
// per-tag timestamp lookup distinct from the list response.
func (g *GitLab) TagTimestamp(ctx context.Context, namespace, name, tag string) (time.Time, error) {
	tags, err := g.ListCandidateTags(ctx, namespace, name)
	if err != nil {
		return time.Time{}, err
	}
	for _, t := range tags {
		if t.Name == tag {
			if t.LastUpdated.IsZero() {
				return time.Time{}, ErrDateNotFound
			}
			return t.LastUpdated, nil
		}
	}
	return time.Time{}, ErrDateNotFound
}

func (g *GitLab) findRepository(client *gitlab.Client, name string) (*gitlab.RegistryRepository, error) {
	opts := &gitlab.ListRegistryRepositoriesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1},
	}
	for {
		repos, resp, err := client.ContainerRegistry.ListProjectRegistryRepositories(g.Config.ProjectID, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
		}
		for _, r := range repos {
			if r.Name == name {
				return r, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil, ErrImageNotFound
}
