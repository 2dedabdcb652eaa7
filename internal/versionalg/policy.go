package versionalg

import "strings"

// ShouldAutoUpdate decides whether cand is an acceptable automatic upgrade
// from curr under frontier F, reproducing the source's comparator exactly —
// including its bug. Segments are compared as raw strings, not integers, so
// "10" sorts before "9". This is flagged as a known defect upstream (the
// intended behaviour is presumably numeric-segment comparison) but tests
// pin the string behaviour and it must not be "fixed" here.
func ShouldAutoUpdate(curr, cand string, frontier int) bool {
	if curr == "latest" && cand == "latest" {
		return true
	}

	currSegs := strings.Split(curr, ".")
	candSegs := strings.Split(cand, ".")
	s := len(currSegs)
	if len(candSegs) < s {
		s = len(candSegs)
	}

	if frontier <= 0 || frontier > s {
		return true
	}

	if curr == cand {
		return false
	}

	for i := 0; i < frontier; i++ {
		if candSegs[i] > currSegs[i] {
			return false
		}
	}

	for i := frontier; i < s; i++ {
		if candSegs[i] > currSegs[i] {
			return true
		}
	}

	if len(currSegs) < len(candSegs) {
		return true
	}

	return false
}

// LatestAutoUpdatable returns the largest PEP440-parsable tag in tags that is
// strictly greater than curr (by real PEP440 ordering) and for which
// ShouldAutoUpdate(curr, tag, frontier) holds. Returns "" if none qualifies.
//
// Signature canonicalized per the upstream argument-order inconsistency
// between get_newest_docker_updatable_version's call sites: the correct,
// single order is (updatableVersions, frontier, currentVersion).
func LatestAutoUpdatable(updatableVersions []string, frontier int, curr string) string {
	currV, currErr := ParseVersion(curr)

	var best string
	var bestV Version
	have := false

	for _, cand := range updatableVersions {
		candV, err := ParseVersion(cand)
		if err != nil {
			continue
		}
		if currErr == nil && candV.Compare(currV) <= 0 {
			continue
		}
		if !ShouldAutoUpdate(curr, cand, frontier) {
			continue
		}
		if !have || candV.Compare(bestV) > 0 {
			best, bestV, have = cand, candV, true
		}
	}
	return best
}
