package imageref

import "testing"

func TestParseImageRefDockerHubBare(t *testing.T) {
	r, err := ParseImageRef("nginx:1.21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Namespace != "library" || r.Name != "nginx" || r.Tag != "1.21" || r.IsGitLab() {
		t.Errorf("got %+v", r)
	}
}

func TestParseImageRefDefaultTag(t *testing.T) {
	r, err := ParseImageRef("nginx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Tag != "latest" {
		t.Errorf("Tag = %q, want latest", r.Tag)
	}
}

func TestParseImageRefNamespaced(t *testing.T) {
	r, err := ParseImageRef("myuser/myapp:2.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Namespace != "myuser" || r.Name != "myapp" || r.Tag != "2.0.0" || r.IsGitLab() {
		t.Errorf("got %+v", r)
	}
}

func TestParseImageRefGitLab(t *testing.T) {
	r, err := ParseImageRef("registry.example.com/containers/myproj/myimage:1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsGitLab() {
		t.Errorf("expected GitLab ref")
	}
	if r.Namespace != "myproj" || r.Name != "myimage" || r.Tag != "1.2.3" {
		t.Errorf("got %+v", r)
	}
}

func TestParseImageRefWithPortAndNoTag(t *testing.T) {
	r, err := ParseImageRef("registry.example.com:5000/myapp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Namespace != "registry.example.com:5000" || r.Name != "myapp" || r.Tag != "latest" {
		t.Errorf("got %+v", r)
	}
}

func TestRoundTrip(t *testing.T) {
	refs := []string{
		"nginx:1.21",
		"myuser/myapp:2.0.0",
		"registry.example.com/containers/myproj/myimage:1.2.3",
	}
	for _, s := range refs {
		r1, err := ParseImageRef(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		rendered := RenderImageRef(r1)
		r2, err := ParseImageRef(rendered)
		if err != nil {
			t.Fatalf("reparse %q: %v", rendered, err)
		}
		if r1 != r2 {
			t.Errorf("round-trip mismatch for %q: %+v != %+v (rendered %q)", s, r1, r2, rendered)
		}
	}
}

func TestWithTag(t *testing.T) {
	r, _ := ParseImageRef("nginx:1.21")
	updated := r.WithTag("1.22")
	if updated.Tag != "1.22" || r.Tag != "1.21" {
		t.Errorf("WithTag should not mutate receiver: got %+v, orig %+v", updated, r)
	}
}
