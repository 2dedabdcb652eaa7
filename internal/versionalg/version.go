// Package versionalg implements the PEP440-flavoured version comparisons the
// update-decision engine relies on.
//
// Two distinct comparators live here on purpose. ShouldAutoUpdate (policy.go)
// reproduces the source's raw dot-segment string comparison used for frontier
// decisions, bug and all (see the doc comment on ShouldAutoUpdate). Version,
// defined in this file, implements real PEP440 release/pre/post/dev ordering
// and is used to find the overall newest tag a registry offers and, in
// LatestAutoUpdatable, to keep only candidates newer than the current version
// and rank them — the two orderings are not meant to agree on anything beyond
// strict equality.
package versionalg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionPattern approximates PEP440: N[.N]*[{a|b|rc}N][.postN][.devN].
// Segment separators for pre/post/dev follow PEP440's "may be separated by a
// dot, hyphen, or underscore" rule collapsed to optional punctuation.
var versionPattern = regexp.MustCompile(`^(?:(\d+)!)?(\d+(?:\.\d+)*)((?:[-_.]?(?:a|b|c|rc|alpha|beta|pre|preview)[-_.]?\d*)?)((?:[-_.]?(?:post|rev|r)[-_.]?\d*)?)((?:[-_.]?dev[-_.]?\d*)?)(?:\+([a-zA-Z0-9.]+))?$`)

// extractVersionSubstring matches a leading-or-embedded run of digits and
// dots, per spec: the substring `(\d\.?)+` inside a tag. Used to locate the
// numeric portion of a flavoured tag like "3.8-alpine" (-> "3.8").
var extractVersionSubstring = regexp.MustCompile(`(\d\.?)+`)

// Version is a parsed PEP440-compatible version, ordered by real release
// semantics (release segments, then pre < release < post, dev sorts before
// its base version).
type Version struct {
	Epoch   int
	Release []int
	Pre     *preRelease
	Post    *int
	Dev     *int
	Local   string
	Raw     string
}

type preRelease struct {
	phase string // normalized to "a", "b", or "rc"
	num   int
}

// ErrInvalidVersion is returned when a string does not parse as a PEP440 version.
type ErrInvalidVersion struct {
	Value string
}

func (e *ErrInvalidVersion) Error() string {
	return fmt.Sprintf("invalid PEP440 version: %q", e.Value)
}

// ParseVersion parses v as a full PEP440-style version string. Unlike
// ExtractVersion, the whole string must match — "3.8-alpine" fails here even
// though it contains an extractable version, because "-alpine" is not a valid
// PEP440 local/pre/post/dev segment.
func ParseVersion(v string) (Version, error) {
	m := versionPattern.FindStringSubmatch(v)
	if m == nil {
		return Version{}, &ErrInvalidVersion{Value: v}
	}

	out := Version{Raw: v}
	if m[1] != "" {
		out.Epoch, _ = strconv.Atoi(m[1])
	}
	for _, seg := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return Version{}, &ErrInvalidVersion{Value: v}
		}
		out.Release = append(out.Release, n)
	}
	if pre := strings.TrimLeft(m[3], "-_."); pre != "" {
		phase, num := splitPhaseNum(pre, []string{"rc", "alpha", "beta", "preview", "pre", "a", "b", "c"})
		out.Pre = &preRelease{phase: normalizePhase(phase), num: num}
	}
	if post := strings.TrimLeft(m[4], "-_."); post != "" {
		_, num := splitPhaseNum(post, []string{"post", "rev", "r"})
		out.Post = &num
	}
	if dev := strings.TrimLeft(m[5], "-_."); dev != "" {
		_, num := splitPhaseNum(dev, []string{"dev"})
		out.Dev = &num
	}
	out.Local = m[6]
	return out, nil
}

// IsPEP440 reports whether v parses as a full PEP440 version.
func IsPEP440(v string) bool {
	_, err := ParseVersion(v)
	return err == nil
}

// FilterPEP440 splits tags into those that fully parse as PEP440 versions and
// those that don't.
func FilterPEP440(tags []string) (valid, invalid []string) {
	for _, t := range tags {
		if IsPEP440(t) {
			valid = append(valid, t)
		} else {
			invalid = append(invalid, t)
		}
	}
	return valid, invalid
}

// ExtractVersion locates the `(\d\.?)+` numeric substring inside a tag and
// returns it along with the literal prefix/suffix surrounding it, so callers
// can decide whether two tags share the same "flavour" (e.g. "3.8-alpine" vs
// "3.8": same prefix "", different suffix "-alpine" vs "").
func ExtractVersion(tag string) (prefix, version, suffix string, ok bool) {
	loc := extractVersionSubstring.FindStringIndex(tag)
	if loc == nil {
		return "", "", "", false
	}
	version = tag[loc[0]:loc[1]]
	// A trailing dot with no following digit is not part of the version.
	version = strings.TrimSuffix(version, ".")
	prefix = tag[:loc[0]]
	suffix = tag[loc[0]+len(version) : ]
	return prefix, version, suffix, true
}

// SameFlavour reports whether two tags' literal prefix/suffix around their
// extracted version substrings are identical — the comparability rule of §3's
// Invariants ("tags that differ in flavour ... are not comparable").
func SameFlavour(a, b string) bool {
	ap, _, as, aok := ExtractVersion(a)
	bp, _, bs, bok := ExtractVersion(b)
	return aok && bok && ap == bp && as == bs
}

func splitPhaseNum(s string, knownPhases []string) (phase string, num int) {
	s = strings.TrimLeft(s, "-_.")
	for _, p := range knownPhases {
		if strings.HasPrefix(s, p) {
			rest := strings.TrimPrefix(s, p)
			rest = strings.TrimLeft(rest, "-_.")
			if rest == "" {
				return p, 0
			}
			n, err := strconv.Atoi(rest)
			if err != nil {
				return p, 0
			}
			return p, n
		}
	}
	return "", 0
}

func normalizePhase(p string) string {
	switch p {
	case "a", "alpha":
		return "a"
	case "b", "beta":
		return "b"
	case "rc", "c", "pre", "preview":
		return "rc"
	}
	return p
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, using real PEP440 ordering (epoch, release, pre < release < post,
// dev always sorts before its non-dev counterpart).
func (v Version) Compare(other Version) int {
	if v.Epoch != other.Epoch {
		return cmpInt(v.Epoch, other.Epoch)
	}
	if c := cmpReleases(v.Release, other.Release); c != 0 {
		return c
	}
	if c := cmpPre(v.Pre, other.Pre); c != 0 {
		return c
	}
	if c := cmpOptIntPtr(v.Post, other.Post); c != 0 {
		return c
	}
	return cmpDev(v.Dev, other.Dev)
}

func cmpReleases(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	return 0
}

func cmpPre(a, b *preRelease) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1 // no pre-release sorts after any pre-release
	}
	if b == nil {
		return -1
	}
	if a.phase != b.phase {
		order := map[string]int{"a": 0, "b": 1, "rc": 2}
		return cmpInt(order[a.phase], order[b.phase])
	}
	return cmpInt(a.num, b.num)
}

func cmpOptIntPtr(a, b *int) int {
	av, bv := 0, 0
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	if (a == nil) != (b == nil) {
		if a == nil {
			return -1
		}
		return 1
	}
	return cmpInt(av, bv)
}

func cmpDev(a, b *int) int {
	if (a == nil) == (b == nil) {
		if a == nil {
			return 0
		}
		return cmpInt(*a, *b)
	}
	if a != nil {
		return -1 // dev release sorts before its non-dev counterpart
	}
	return 1
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Max returns the string form of the largest PEP440 version among tags,
// giving "latest" top priority if present (matching get_latest_version's
// upstream behaviour). Non-parsing tags are ignored. Returns "" if nothing
// usable is found.
func Max(tags []string) string {
	for _, t := range tags {
		if t == "latest" {
			return "latest"
		}
	}
	var best string
	var bestV Version
	have := false
	for _, t := range tags {
		v, err := ParseVersion(t)
		if err != nil {
			continue
		}
		if !have || v.Compare(bestV) > 0 {
			best, bestV, have = t, v, true
		}
	}
	return best
}
