package conf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devup-sh/devup/internal/platform"
)

func linuxInfo() *platform.Info {
	return &platform.Info{
		OS:             "linux",
		Arch:           "amd64",
		ArchRaw:        "amd64",
		Platform:       "ubuntu",
		Family:         platform.FamilyDebian,
		Version:        "24.04",
		PackageManager: platform.PkgApt,
		AdminGroup:     "sudo",
	}
}

func baseConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse(strings.NewReader("tmux=stable\nneovim=head\nripgrep=stable\n"))
	if err != nil {
		t.Fatalf("parse baseline: %v", err)
	}
	return cfg
}

func TestEvalOverlayAddRemoveOverride(t *testing.T) {
	code := `
		devup = {
			add = { "zoxide=stable", platform.when(platform.is_macos, "reattach-to-user-namespace=managed") },
			remove = { "neovim" },
			override = { ripgrep = "managed" },
		}
	`
	overlay, err := EvalOverlay(context.Background(), code, linuxInfo())
	if err != nil {
		t.Fatalf("EvalOverlay failed: %v", err)
	}

	if len(overlay.Add) != 1 || overlay.Add[0].Name != "zoxide" {
		t.Errorf("Add = %+v, want single zoxide entry (macOS conditional filtered)", overlay.Add)
	}
	if len(overlay.Remove) != 1 || overlay.Remove[0] != "neovim" {
		t.Errorf("Remove = %v", overlay.Remove)
	}
	if overlay.Override["ripgrep"] != ModeManaged {
		t.Errorf("Override = %v", overlay.Override)
	}

	merged, err := overlay.Apply(baseConfig(t))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Lookup("neovim") != nil {
		t.Error("neovim should be removed")
	}
	if merged.Lookup("zoxide") == nil {
		t.Error("zoxide should be added")
	}
	if got := merged.Lookup("ripgrep").Mode; got != ModeManaged {
		t.Errorf("ripgrep mode = %s, want managed", got)
	}
}

func TestEvalOverlayAddReplacesBaseline(t *testing.T) {
	code := `devup = { add = { "tmux=head" } }`
	overlay, err := EvalOverlay(context.Background(), code, linuxInfo())
	if err != nil {
		t.Fatalf("EvalOverlay failed: %v", err)
	}
	merged, err := overlay.Apply(baseConfig(t))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := merged.Lookup("tmux").Mode; got != ModeHead {
		t.Errorf("tmux mode = %s, want head", got)
	}
	count := 0
	for _, tool := range merged.Tools {
		if tool.Name == "tmux" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("tmux appears %d times after merge", count)
	}
}

func TestEvalOverlayErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax error", "devup = {"},
		{"missing table", "x = 1"},
		{"bad add entry", `devup = { add = { "no equals sign" } }`},
		{"bad override mode", `devup = { override = { tmux = "wat" } }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EvalOverlay(context.Background(), tt.code, linuxInfo()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOverlaySandbox(t *testing.T) {
	// os/io/require must not be reachable from overlay code.
	tests := []string{
		`devup = { add = { os.getenv("HOME") } }`,
		`devup = {} io.open("/etc/passwd")`,
		`require("socket") devup = {}`,
	}
	for _, code := range tests {
		if _, err := EvalOverlay(context.Background(), code, linuxInfo()); err == nil {
			t.Errorf("sandboxed VM should reject %q", code)
		}
	}
}

func TestEvalOverlayBoundsRunawayCode(t *testing.T) {
	old := overlayTimeout
	overlayTimeout = 100 * time.Millisecond
	t.Cleanup(func() { overlayTimeout = old })

	start := time.Now()
	_, err := EvalOverlay(context.Background(), `while true do end`, linuxInfo())
	if err == nil {
		t.Fatal("runaway overlay should error out")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("evaluation ran %v, budget not enforced", elapsed)
	}
}

func TestLoadOverlayMissingFile(t *testing.T) {
	overlay, err := LoadOverlay(context.Background(), filepath.Join(t.TempDir(), OverlayFileName), linuxInfo())
	if err != nil {
		t.Fatalf("missing overlay should not error, got %v", err)
	}
	if overlay != nil {
		t.Error("missing overlay should be nil")
	}

	// Nil overlay applies as identity.
	cfg := baseConfig(t)
	merged, err := overlay.Apply(cfg)
	if err != nil {
		t.Fatalf("nil Apply failed: %v", err)
	}
	if len(merged.Tools) != len(cfg.Tools) {
		t.Error("nil overlay should not change the config")
	}
}

func TestLoadOverlayTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, OverlayFileName)
	if err := os.WriteFile(path, []byte(strings.Repeat("-- pad\n", MaxOverlaySize/7+1)), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOverlay(context.Background(), path, linuxInfo()); err == nil {
		t.Error("oversized overlay should be rejected")
	}
}

func TestLoadCombinesBaselineAndOverlay(t *testing.T) {
	etcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(etcDir, ToolsFileName), []byte("tmux=stable\nconda=stable\n"), 0644); err != nil {
		t.Fatal(err)
	}
	overlay := `devup = { remove = { "conda" } }`
	if err := os.WriteFile(filepath.Join(etcDir, OverlayFileName), []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), etcDir, linuxInfo())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Lookup("conda") != nil {
		t.Error("overlay remove not applied")
	}
	if cfg.Lookup("tmux") == nil {
		t.Error("baseline entry lost")
	}
}

func TestLoadMissingBaseline(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), linuxInfo())
	if err == nil || !strings.Contains(err.Error(), "devup init") {
		t.Errorf("expected init hint, got %v", err)
	}
}
