package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"

	"github.com/devup-sh/devup/internal/testutil"
)

func TestSetupTestEnvIsolatesPaths(t *testing.T) {
	tmpDir := testutil.SetupTestEnv(t)

	if home := os.Getenv("HOME"); home != tmpDir {
		t.Errorf("HOME = %q, want %q", home, tmpDir)
	}
	if got := os.Getenv("XDG_CONFIG_HOME"); got != filepath.Join(tmpDir, "config") {
		t.Errorf("XDG_CONFIG_HOME = %q", got)
	}
	if xdg.ConfigHome != filepath.Join(tmpDir, "config") {
		t.Errorf("xdg.ConfigHome = %q, reload did not take", xdg.ConfigHome)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "config", "devup")); err != nil {
		t.Errorf("config dir not created: %v", err)
	}
}

func TestWriteSettings(t *testing.T) {
	tmpDir := testutil.SetupTestEnv(t)

	path := testutil.WriteSettings(t, tmpDir, "jobs = 3\n")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if string(content) != "jobs = 3\n" {
		t.Errorf("content = %q", content)
	}
}
