// Package imageref parses and renders container image references the way
// the Reconciler sees them in a Deployment's container spec: possibly
// GitLab-hosted (marked by a "containers/" path segment, GitLab Container
// Registry's project-path convention), otherwise assumed DockerHub.
package imageref

import (
	"fmt"
	"strings"
)

// gitlabMarker is the path segment that identifies a GitLab Container
// Registry reference, per spec §3: "a prefix of the form …/containers/…".
const gitlabMarker = "containers/"

// ImageRef is a parsed container image reference decomposed per spec §3:
// (registry-prefix, repository namespace, short name, tag).
type ImageRef struct {
	// Prefix is everything preceding the repository namespace, including a
	// trailing "containers/" marker when present. Empty for a bare
	// DockerHub official image reference like "nginx:1.21".
	Prefix string

	// Namespace is the repository namespace/owner ("library" for DockerHub
	// official images, a GitLab group/project path, or a DockerHub user).
	Namespace string

	// Name is the short image name, with no path separators.
	Name string

	// Tag is the tag portion after the final ':'. Defaults to "latest" if
	// the reference carries none.
	Tag string
}

// IsGitLab reports whether this reference was parsed from a GitLab
// Container Registry path (contains the "containers/" marker).
func (r ImageRef) IsGitLab() bool {
	return strings.Contains(r.Prefix, gitlabMarker)
}

// Repository returns "namespace/name", the registry-relative repository
// path with no prefix or tag.
func (r ImageRef) Repository() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// ErrInvalidImageRef is returned when ref cannot be decomposed into a
// namespace/name[:tag] shape.
type ErrInvalidImageRef struct {
	Value string
}

func (e *ErrInvalidImageRef) Error() string {
	return fmt.Sprintf("invalid image reference: %q", e.Value)
}

// ParseImageRef decomposes a container image reference string into an
// ImageRef. Tag defaults to "latest" when absent, matching Docker's own
// convention so a bare "nginx" reference round-trips as "nginx:latest".
func ParseImageRef(ref string) (ImageRef, error) {
	if ref == "" {
		return ImageRef{}, &ErrInvalidImageRef{Value: ref}
	}

	path, tag := splitTag(ref)
	if path == "" {
		return ImageRef{}, &ErrInvalidImageRef{Value: ref}
	}

	segments := strings.Split(path, "/")

	var prefix, namespace, name string
	switch len(segments) {
	case 1:
		// Bare name: DockerHub official image, implicit "library" namespace.
		namespace = "library"
		name = segments[0]
	case 2:
		namespace = segments[0]
		name = segments[1]
	default:
		name = segments[len(segments)-1]
		namespace = segments[len(segments)-2]
		prefix = strings.Join(segments[:len(segments)-2], "/") + "/"
	}

	if name == "" {
		return ImageRef{}, &ErrInvalidImageRef{Value: ref}
	}

	return ImageRef{Prefix: prefix, Namespace: namespace, Name: name, Tag: tag}, nil
}

// splitTag separates the registry path from a trailing ":tag", ignoring any
// colon that is part of a registry host:port prefix (a colon before the
// first '/' belongs to the host, not the tag).
func splitTag(ref string) (path, tag string) {
	slash := strings.Index(ref, "/")
	searchFrom := 0
	if slash >= 0 {
		searchFrom = slash
	}
	if idx := strings.LastIndex(ref[searchFrom:], ":"); idx >= 0 {
		colon := searchFrom + idx
		return ref[:colon], ref[colon+1:]
	}
	return ref, "latest"
}

// RenderImageRef is the inverse of ParseImageRef: parseImageRef(renderImageRef(ref)) == ref
// for any ref produced by ParseImageRef, per spec §8's round-trip property.
func RenderImageRef(r ImageRef) string {
	var b strings.Builder
	if r.Prefix != "" {
		b.WriteString(r.Prefix)
	}
	if r.Namespace != "" && r.Namespace != "library" {
		b.WriteString(r.Namespace)
		b.WriteByte('/')
	} else if r.Prefix != "" {
		// A non-DockerHub prefix always carries an explicit namespace segment,
		// even when it happens to be named "library".
		b.WriteString(r.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(r.Name)
	if r.Tag != "" {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	return b.String()
}

// WithTag returns a copy of r with Tag replaced, for rendering an updated
// image reference after a decision to update.
func (r ImageRef) WithTag(tag string) ImageRef {
	r.Tag = tag
	return r
}
