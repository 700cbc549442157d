package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGitHubClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewGitHubClient("")
	c.baseURL = server.URL
	return c
}

func TestLatestRelease(t *testing.T) {
	c := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/sharkdp/fd/releases/latest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/vnd.github+json" {
			t.Errorf("unexpected Accept: %s", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{
			"tag_name": "v10.2.0",
			"name": "v10.2.0",
			"assets": [
				{"name": "fd-v10.2.0-x86_64-unknown-linux-gnu.tar.gz", "size": 1, "browser_download_url": "https://example.com/fd.tar.gz"},
				{"name": "fd-v10.2.0-aarch64-apple-darwin.tar.gz", "size": 1, "browser_download_url": "https://example.com/fd-mac.tar.gz"}
			]
		}`))
	})

	rel, err := c.LatestRelease(context.Background(), "sharkdp", "fd")
	if err != nil {
		t.Fatalf("LatestRelease(): %v", err)
	}
	if rel.TagName != "v10.2.0" {
		t.Errorf("TagName = %q, want v10.2.0", rel.TagName)
	}
	if rel.Version() != "10.2.0" {
		t.Errorf("Version() = %q, want 10.2.0", rel.Version())
	}

	asset, ok := rel.FindAsset("x86_64", "linux")
	if !ok {
		t.Fatal("FindAsset(x86_64, linux) not found")
	}
	if asset.DownloadURL != "https://example.com/fd.tar.gz" {
		t.Errorf("asset URL = %q", asset.DownloadURL)
	}

	if _, ok := rel.FindAsset("riscv64"); ok {
		t.Error("FindAsset(riscv64) should not match")
	}
}

func TestLatestTag(t *testing.T) {
	c := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/tmux/tmux/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"name": "3.5a"}, {"name": "3.5"}]`))
	})

	tag, err := c.LatestTag(context.Background(), "tmux", "tmux")
	if err != nil {
		t.Fatalf("LatestTag(): %v", err)
	}
	if tag != "3.5a" {
		t.Errorf("tag = %q, want 3.5a", tag)
	}
}

func TestLatestTagEmpty(t *testing.T) {
	c := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := c.LatestTag(context.Background(), "o", "r"); err == nil {
		t.Fatal("expected error for empty tag list")
	}
}

func TestRateLimitError(t *testing.T) {
	c := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.LatestRelease(context.Background(), "o", "r")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
}
