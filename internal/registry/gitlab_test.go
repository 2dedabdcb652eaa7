package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
)

func TestGitLabConfigReady(t *testing.T) {
	cases := []struct {
		name string
		cfg  GitLabConfig
		want bool
	}{
		{"all set", GitLabConfig{BaseURL: "https://gitlab.example.com", Token: "tok", ProjectID: "123"}, true},
		{"missing base url", GitLabConfig{Token: "tok", ProjectID: "123"}, false},
		{"missing token", GitLabConfig{BaseURL: "https://gitlab.example.com", ProjectID: "123"}, false},
		{"missing project id", GitLabConfig{BaseURL: "https://gitlab.example.com", Token: "tok"}, false},
		{"nothing set", GitLabConfig{}, false},
	}
	for _, c := range cases {
		if got := c.cfg.Ready(); got != c.want {
			t.Errorf("%s: Ready() = %v, want %v", c.name, got, c.want)
		}
	}
}

// Missing credentials must be a non-fatal ErrNoCredentials, per spec §4.2 /
// §7: the reconciler treats this as "no images", never as a propagated error.
func TestGitLabListCandidateTagsNoCredentials(t *testing.T) {
	g := NewGitLab(GitLabConfig{}, logr.Discard())
	_, err := g.ListCandidateTags(context.Background(), "", "myimage")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestGitLabResolveNamespaceNoCredentials(t *testing.T) {
	g := NewGitLab(GitLabConfig{}, logr.Discard())
	_, err := g.ResolveNamespace(context.Background(), "myimage")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestGitLabResolveNamespaceReturnsProjectID(t *testing.T) {
	cfg := GitLabConfig{BaseURL: "https://gitlab.example.com", Token: "tok", ProjectID: "42"}
	g := NewGitLab(cfg, logr.Discard())
	ns, err := g.ResolveNamespace(context.Background(), "myimage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "42" {
		t.Errorf("namespace = %q, want 42", ns)
	}
}
