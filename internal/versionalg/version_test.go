package versionalg

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"1.2.3", false},
		{"1.2.3rc1", false},
		{"1.2.3.post1", false},
		{"1.2.3.dev0", false},
		{"1!2.3", false},
		{"1.2.3+local.1", false},
		{"3.8-alpine", true},
		{"latest", true},
		{"", true},
	}
	for _, c := range cases {
		_, err := ParseVersion(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseVersion(%q) err=%v, wantErr=%v", c.in, err, c.wantErr)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.4", -1},
		{"1.2.4", "1.2.3", 1},
		{"1.2.3", "1.2.3", 0},
		{"1.2.3rc1", "1.2.3", -1},
		{"1.2.3.post1", "1.2.3", 1},
		{"1.2.3.dev0", "1.2.3", -1},
		{"2.0", "1.9.9", 1},
		{"1.2.3a1", "1.2.3b1", -1},
	}
	for _, c := range cases {
		av, err := ParseVersion(c.a)
		if err != nil {
			t.Fatalf("parse %q: %v", c.a, err)
		}
		bv, err := ParseVersion(c.b)
		if err != nil {
			t.Fatalf("parse %q: %v", c.b, err)
		}
		if got := av.Compare(bv); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestFilterPEP440(t *testing.T) {
	valid, invalid := FilterPEP440([]string{"1.2.3", "latest", "3.8-alpine", "2.0.0rc1"})
	if len(valid) != 2 {
		t.Errorf("valid = %v, want 2 entries", valid)
	}
	if len(invalid) != 2 {
		t.Errorf("invalid = %v, want 2 entries", invalid)
	}
}

func TestExtractVersion(t *testing.T) {
	prefix, version, suffix, ok := ExtractVersion("3.8-alpine")
	if !ok || prefix != "" || version != "3.8" || suffix != "-alpine" {
		t.Errorf("ExtractVersion(3.8-alpine) = %q %q %q %v", prefix, version, suffix, ok)
	}
	if _, _, _, ok := ExtractVersion("latest"); ok {
		t.Errorf("ExtractVersion(latest) should fail")
	}
}

func TestSameFlavour(t *testing.T) {
	if !SameFlavour("3.8-alpine", "3.9-alpine") {
		t.Errorf("expected same flavour")
	}
	if SameFlavour("3.8-alpine", "3.8") {
		t.Errorf("expected different flavour")
	}
}

func TestMax(t *testing.T) {
	if got := Max([]string{"1.0.0", "latest", "2.0.0"}); got != "latest" {
		t.Errorf("Max with latest present = %q, want latest", got)
	}
	if got := Max([]string{"1.0.0", "1.2.0", "1.1.9"}); got != "1.2.0" {
		t.Errorf("Max = %q, want 1.2.0", got)
	}
	if got := Max([]string{"3.8-alpine"}); got != "" {
		t.Errorf("Max of unparsable tags = %q, want empty", got)
	}
}
