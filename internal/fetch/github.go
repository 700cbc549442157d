package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	githubAPIBase = "https://api.github.com"
	// DefaultTokenEnv is consulted for an API token unless the settings
	// file names a different variable.
	DefaultTokenEnv = "GITHUB_TOKEN"
)

// Release describes a GitHub release as returned by the REST API.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       string  `json:"name"`
	Draft      bool    `json:"draft"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Asset is a single downloadable artifact attached to a release.
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

// Tag is a repository tag as returned by the REST API.
type Tag struct {
	Name string `json:"name"`
}

// GitHubClient resolves releases and tags through the GitHub REST API.
type GitHubClient struct {
	client   *http.Client
	baseURL  string
	token    string
	tokenEnv string
}

// NewGitHubClient creates a client. tokenEnv names the environment
// variable holding an optional API token; empty selects the default.
func NewGitHubClient(tokenEnv string) *GitHubClient {
	if tokenEnv == "" {
		tokenEnv = DefaultTokenEnv
	}
	return &GitHubClient{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  githubAPIBase,
		token:    os.Getenv(tokenEnv),
		tokenEnv: tokenEnv,
	}
}

// LatestRelease resolves the latest non-draft release of owner/repo.
func (c *GitHubClient) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	var rel Release
	if err := c.getJSON(ctx, url, &rel); err != nil {
		return nil, fmt.Errorf("latest release for %s/%s: %w", owner, repo, err)
	}
	return &rel, nil
}

// LatestTag resolves the most recent tag of owner/repo. GitHub returns
// tags in reverse chronological order of creation, so the first entry
// is the newest.
func (c *GitHubClient) LatestTag(ctx context.Context, owner, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/tags?per_page=1", c.baseURL, owner, repo)
	var tags []Tag
	if err := c.getJSON(ctx, url, &tags); err != nil {
		return "", fmt.Errorf("tags for %s/%s: %w", owner, repo, err)
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("no tags found for %s/%s", owner, repo)
	}
	return tags[0].Name, nil
}

// FindAsset returns the first release asset whose name contains all the
// given substrings. Matching is case-insensitive.
func (r *Release) FindAsset(substrings ...string) (*Asset, bool) {
	for i := range r.Assets {
		name := strings.ToLower(r.Assets[i].Name)
		matched := true
		for _, sub := range substrings {
			if !strings.Contains(name, strings.ToLower(sub)) {
				matched = false
				break
			}
		}
		if matched {
			return &r.Assets[i], true
		}
	}
	return nil, false
}

// Version strips a leading "v" from the release tag.
func (r *Release) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

func (c *GitHubClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return fmt.Errorf("GitHub API rate limit exceeded (set %s to raise the limit)", c.tokenEnv)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("not found")
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	const maxBody = 8 * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
