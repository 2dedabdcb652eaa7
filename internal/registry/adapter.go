// Package registry exposes a uniform adapter over the upstream container
// registries the Reconciler polls: DockerHub and a GitLab Container
// Registry. Both satisfy the same Adapter capability, following spec §9's
// "registry polymorphism" design note — the Reconciler never branches on
// registry kind beyond picking which Adapter to call.
package registry

import (
	"context"
	"errors"
	"time"
)

// Tag is an opaque registry tag name plus the metadata the Decision Engine
// and Version Algebra need.
type Tag struct {
	Name        string
	Digest      string // empty if the registry didn't report one (GitLab)
	LastUpdated time.Time
}

// Sentinel errors forming the per-adapter failure taxonomy of spec §7.
// Non-fatal: the Reconciler catches these, logs through the dedupe gate, and
// skips the affected container.
var (
	ErrImageNotFound         = errors.New("registry: image not found")
	ErrDateNotFound          = errors.New("registry: tag timestamp not found")
	ErrRegistryAbnormalResp  = errors.New("registry: abnormal response")
	ErrNoCredentials         = errors.New("registry: no credentials configured")
)

// Adapter is implemented once per upstream registry kind.
type Adapter interface {
	// ResolveNamespace finds the repository namespace for a bare image name
	// (DockerHub only; GitLab has no separate namespace-resolution step).
	// Returns ErrImageNotFound if the registry has nothing matching name.
	ResolveNamespace(ctx context.Context, name string) (string, error)

	// ListCandidateTags returns every tag the registry reports for
	// namespace/name, in no particular order. Returns ErrNoCredentials for
	// GitLab when required configuration is absent (non-fatal: the
	// Reconciler treats this as "no images").
	ListCandidateTags(ctx context.Context, namespace, name string) ([]Tag, error)

	// TagTimestamp returns the last-updated time for a specific tag, or
	// ErrDateNotFound if the registry has no timestamp for it.
	TagTimestamp(ctx context.Context, namespace, name, tag string) (time.Time, error)
}
