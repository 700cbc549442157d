package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/installer"
	"github.com/devup-sh/devup/internal/shell"
	"github.com/devup-sh/devup/internal/testutil"
)

func TestSetupEnvironmentPrefixOverride(t *testing.T) {
	tmpDir := testutil.SetupTestEnv(t)
	testutil.WriteSettings(t, tmpDir, "jobs = 2\n")

	override := filepath.Join(tmpDir, "prefix")
	env, err := setupEnvironment(context.Background(), override)
	if err != nil {
		t.Fatalf("setupEnvironment: %v", err)
	}

	if env.Prefix.Root != override {
		t.Errorf("prefix = %q, want %q", env.Prefix.Root, override)
	}
	if env.Settings.Jobs != 2 {
		t.Errorf("settings jobs = %d, want 2", env.Settings.Jobs)
	}
	if env.Platform.OS == "" || env.Platform.Arch == "" {
		t.Errorf("platform not detected: %+v", env.Platform)
	}
	if env.Prefix.AdminGroup != env.Platform.AdminGroup {
		t.Errorf("prefix admin group = %q, want platform's %q",
			env.Prefix.AdminGroup, env.Platform.AdminGroup)
	}
}

func TestSetupEnvironmentPrefixFromSettings(t *testing.T) {
	tmpDir := testutil.SetupTestEnv(t)
	want := filepath.Join(tmpDir, "settings-prefix")
	testutil.WriteSettings(t, tmpDir, "prefix = \""+want+"\"\n")

	env, err := setupEnvironment(context.Background(), "")
	if err != nil {
		t.Fatalf("setupEnvironment: %v", err)
	}
	if env.Prefix.Root != want {
		t.Errorf("prefix = %q, want %q", env.Prefix.Root, want)
	}
}

func TestSelectTools(t *testing.T) {
	cfg := &conf.Config{Tools: []conf.Tool{
		{Name: "ripgrep", Mode: conf.ModeStable},
		{Name: "fd", Mode: conf.ModeManaged},
		{Name: "tmux", Mode: conf.ModeNone},
	}}

	all, err := selectTools(cfg, nil)
	if err != nil {
		t.Fatalf("selectTools(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 tools, got %d", len(all))
	}

	picked, err := selectTools(cfg, []string{"fd", "ripgrep"})
	if err != nil {
		t.Fatalf("selectTools(named): %v", err)
	}
	if len(picked) != 2 || picked[0].Name != "fd" || picked[1].Name != "ripgrep" {
		t.Errorf("unexpected selection: %+v", picked)
	}

	if _, err := selectTools(cfg, []string{"nope"}); err == nil {
		t.Error("expected error for unknown tool name")
	}
}

func TestWriteDefaultToolsConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.conf")
	if err := writeDefaultToolsConf(path); err != nil {
		t.Fatalf("writeDefaultToolsConf: %v", err)
	}

	cfg, err := conf.ParseFile(path)
	if err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	if len(cfg.Warnings) > 0 {
		t.Errorf("generated config has warnings: %v", cfg.Warnings)
	}
	if len(cfg.Tools) != len(installer.RecipeNames()) {
		t.Errorf("entries = %d, want %d", len(cfg.Tools), len(installer.RecipeNames()))
	}
	for _, tool := range cfg.Tools {
		if tool.Mode != conf.ModeStable {
			t.Errorf("%s defaults to %s, want stable", tool.Name, tool.Mode)
		}
	}
}

func TestResolveShellExplicit(t *testing.T) {
	sh, err := resolveShell([]string{"zsh"})
	if err != nil {
		t.Fatalf("resolveShell(zsh): %v", err)
	}
	if sh != shell.ShellZsh {
		t.Errorf("shell = %s, want zsh", sh)
	}

	if _, err := resolveShell([]string{"tcsh"}); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestToolInitLines(t *testing.T) {
	cfg := &conf.Config{Tools: []conf.Tool{
		{Name: "zoxide", Mode: conf.ModeStable, Flags: []string{"shell"}},
		{Name: "starship", Mode: conf.ModeStable},
		{Name: "ripgrep", Mode: conf.ModeStable, Flags: []string{"shell"}},
		{Name: "direnv", Mode: conf.ModeNone, Flags: []string{"shell"}},
	}}

	lines := toolInitLines(cfg, shell.ShellBash)

	if len(lines) != 1 {
		t.Fatalf("lines = %v, want just the zoxide init", lines)
	}
	if lines[0] != `eval "$(zoxide init bash)"` {
		t.Errorf("line = %q", lines[0])
	}
}

func TestMultiFlag(t *testing.T) {
	var m multiFlag
	if err := m.Set("shell"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("extra"); err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m[0] != "shell" || m[1] != "extra" {
		t.Errorf("multiFlag = %v", m)
	}
}
