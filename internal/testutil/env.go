// Package testutil provides utilities for testing devup in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
)

// SetupTestEnv redirects every path devup touches into a per-test temp
// directory so tests never read or write the developer's real prefix,
// settings, or shell rc files. Returns the temp root.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmpDir, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmpDir, "cache"))

	// xdg caches resolved paths at init time.
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	dirs := []string{
		filepath.Join(tmpDir, "config", "devup"),
		filepath.Join(tmpDir, "state"),
		filepath.Join(tmpDir, "cache"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create test directory %s: %v", dir, err)
		}
	}

	return tmpDir
}

// WriteSettings drops a settings.toml into the isolated config dir set
// up by SetupTestEnv.
func WriteSettings(t *testing.T, tmpDir, content string) string {
	t.Helper()

	path := filepath.Join(tmpDir, "config", "devup", "settings.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}
