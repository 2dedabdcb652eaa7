package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/asicoderOfficial/k8supdater/internal/versionalg"
)

const (
	dockerhubSearchURL = "https://hub.docker.com/api/content/v1/products/search"
	dockerhubAPIBase    = "https://hub.docker.com/v2/repositories"
)

// dockerhubSearchHeaders emulates a browser's Explore-bar search request.
// Carried verbatim from the upstream source's search_dockerhub_command —
// without this exact header set (notably Search-Version and
// X-DOCKER-API-CLIENT) the search endpoint returns an empty/degraded
// response.
var dockerhubSearchHeaders = map[string]string{
	"Accept":             "application/json",
	"Accept-Language":    "en-US,en;q=0.9",
	"Connection":         "keep-alive",
	"Content-Type":       "application/json",
	"Search-Version":     "v3",
	"Sec-Fetch-Dest":     "empty",
	"Sec-Fetch-Mode":     "cors",
	"Sec-Fetch-Site":     "same-origin",
	"User-Agent":         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/102.0.0.0 Safari/537.36",
	"X-DOCKER-API-CLIENT": "docker-hub/1511.0.0",
	"sec-ch-ua":          `" Not A;Brand";v="99", "Chromium";v="102", "Google Chrome";v="102"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Linux"`,
}

type dockerhubSearchResponse struct {
	Summaries []dockerhubSearchSummary `json:"summaries"`
}

// dockerhubSearchSummary is the typed counterpart to a raw DockerHub search
// JSON summary entry (spec §9's "explicit record types" design note).
type dockerhubSearchSummary struct {
	Name string `json:"name"`
}

type dockerhubTagImage struct {
	Digest string `json:"digest"`
}

// dockerhubTagEntry is the typed counterpart to a raw tags-endpoint result
// entry.
type dockerhubTagEntry struct {
	Name        string              `json:"name"`
	LastUpdated string              `json:"last_updated"`
	Images      []dockerhubTagImage `json:"images"`
}

type dockerhubTagsPage struct {
	Results []dockerhubTagEntry `json:"results"`
	Next    *string             `json:"next"`
}

type dockerhubSpecificTag struct {
	LastUpdated string `json:"last_updated"`
}

// DockerHub is a registry.Adapter over DockerHub Hub API v2.
type DockerHub struct {
	HTTPClient *http.Client
	Log        logr.Logger

	// SearchURL and APIBase default to the real DockerHub endpoints; tests
	// override them to point at an httptest server.
	SearchURL string
	APIBase   string
}

// NewDockerHub constructs a DockerHub adapter with a bounded per-call
// timeout (spec §5: "suggest 2-5s for search/tag queries").
func NewDockerHub(log logr.Logger) *DockerHub {
	return &DockerHub{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Log:        log,
		SearchURL:  dockerhubSearchURL,
		APIBase:    dockerhubAPIBase,
	}
}

// ResolveNamespace implements img_namespace_for_search_query: an exact name
// match resolves to the "library" namespace, otherwise the first summary
// containing name resolves to the namespace prefix of its own name.
func (d *DockerHub) ResolveNamespace(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf("%s?page_size=100&q=%s", d.SearchURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	for k, v := range dockerhubSearchHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Referer", "https://hub.docker.com/search?q="+name)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: search returned status %d", ErrRegistryAbnormalResp, resp.StatusCode)
	}

	var parsed dockerhubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	if len(parsed.Summaries) == 0 {
		return "", ErrImageNotFound
	}
	for _, s := range parsed.Summaries {
		if !strings.Contains(s.Name, name) {
			continue
		}
		if s.Name == name {
			return "library", nil
		}
		if idx := strings.Index(s.Name, "/"); idx >= 0 {
			return s.Name[:idx], nil
		}
		return "library", nil
	}
	return "", ErrImageNotFound
}

// ListCandidateTags pages through /v2/repositories/{ns}/{name}/tags/ until a
// page reports no next page or a later page fails, collecting every result's
// name, first digest, and last-updated timestamp. An error on the first page
// is returned to the caller.
func (d *DockerHub) ListCandidateTags(ctx context.Context, namespace, name string) ([]Tag, error) {
	var tags []Tag
	page := 1
	for {
		entries, hasNext, err := d.fetchTagsPage(ctx, namespace, name, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		for _, e := range entries {
			tags = append(tags, tagFromEntry(e))
		}
		if !hasNext {
			break
		}
		page++
	}
	return tags, nil
}

func (d *DockerHub) fetchTagsPage(ctx context.Context, namespace, name string, page int) ([]dockerhubTagEntry, bool, error) {
	url := fmt.Sprintf("%s/%s/%s/tags/?page=%s", d.APIBase, namespace, name, strconv.Itoa(page))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: tags page returned status %d", ErrRegistryAbnormalResp, resp.StatusCode)
	}
	var parsed dockerhubTagsPage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	return parsed.Results, parsed.Next != nil && *parsed.Next != "", nil
}

func tagFromEntry(e dockerhubTagEntry) Tag {
	t := Tag{Name: e.Name}
	if len(e.Images) > 0 {
		t.Digest = e.Images[0].Digest
	}
	if ts, err := time.Parse(time.RFC3339Nano, e.LastUpdated); err == nil {
		t.LastUpdated = ts
	} else if ts, err := time.Parse("2006-01-02T15:04:05", e.LastUpdated); err == nil {
		t.LastUpdated = ts
	}
	return t
}

// TagTimestamp queries the specific-tag endpoint for last_updated.
func (d *DockerHub) TagTimestamp(ctx context.Context, namespace, name, tag string) (time.Time, error) {
	url := fmt.Sprintf("%s/%s/%s/tags/%s", d.APIBase, namespace, name, tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return time.Time{}, ErrDateNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("%w: specific-tag returned status %d", ErrRegistryAbnormalResp, resp.StatusCode)
	}
	var parsed dockerhubSpecificTag
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRegistryAbnormalResp, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, parsed.LastUpdated)
	if err != nil {
		ts, err = time.Parse("2006-01-02T15:04:05", parsed.LastUpdated)
		if err != nil {
			return time.Time{}, ErrDateNotFound
		}
	}
	return ts, nil
}

// UpdatableVersionsRelativeToCurrent implements the DockerHub-specific
// "updatable candidates relative to curr" enumeration of spec §4.2: tags is
// assumed ordered newest-first (DockerHub's default tags-endpoint order).
// Walking it, a tag whose extracted version shares curr's flavour
// (prefix/suffix) is collected under its version string; the walk stops as
// soon as it reaches curr itself (same prefix, version, and suffix),
// because everything after that point in a newest-first list is already
// known to the caller. Entries are deduplicated by digest when both tags
// carry one, keeping the first (newest) occurrence.
func UpdatableVersionsRelativeToCurrent(tags []Tag, curr string) map[string]string {
	currPrefix, currVersion, currSuffix, currOK := versionalg.ExtractVersion(curr)

	updatable := make(map[string]string)
	seenDigests := make(map[string]bool)

	for _, t := range tags {
		prefix, version, suffix, ok := versionalg.ExtractVersion(t.Name)
		if !ok {
			continue
		}
		if currOK && prefix == currPrefix && version == currVersion && suffix == currSuffix {
			break
		}
		if currOK && (prefix != currPrefix || suffix != currSuffix) {
			continue
		}
		if t.Digest != "" {
			if seenDigests[t.Digest] {
				continue
			}
			seenDigests[t.Digest] = true
		}
		if _, exists := updatable[version]; !exists {
			updatable[version] = t.Name
		}
	}
	return updatable
}
