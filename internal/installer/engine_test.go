package installer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devup-sh/devup/internal/buildsrc"
	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/fetch"
	"github.com/devup-sh/devup/internal/journal"
	"github.com/devup-sh/devup/internal/platform"
	"github.com/devup-sh/devup/internal/prefix"
	"github.com/devup-sh/devup/internal/verify"
)

// fakePM implements pkgmgr.Manager.
type fakePM struct {
	name      string
	installed map[string]bool
	calls     []string
	failOn    string
}

func (f *fakePM) Name() string { return f.name }

func (f *fakePM) Install(ctx context.Context, packages ...string) error {
	f.calls = append(f.calls, "install "+strings.Join(packages, " "))
	for _, pkg := range packages {
		if pkg == f.failOn {
			return fmt.Errorf("package %s not found", pkg)
		}
		f.installed[pkg] = true
	}
	return nil
}

func (f *fakePM) Upgrade(ctx context.Context, packages ...string) error {
	f.calls = append(f.calls, "upgrade "+strings.Join(packages, " "))
	return nil
}

func (f *fakePM) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	return f.installed[pkg], nil
}

func testEngine(t *testing.T, pm *fakePM) *Engine {
	t.Helper()
	pfx := &prefix.Prefix{Root: t.TempDir()}
	info := &platform.Info{OS: "linux", Arch: "amd64"}

	var e *Engine
	if pm != nil {
		e = NewEngine(pfx, pm, info, nil, 1)
	} else {
		e = NewEngine(pfx, nil, info, nil, 1)
	}

	// Source path plumbing stubbed out: resolveTarget returns a fixed
	// tag and buildFromSource drops a fake binary in a temp dir.
	e.resolveTarget = func(ctx context.Context, rec *Recipe, mode conf.Mode) (target, error) {
		if mode == conf.ModeHead {
			return target{version: "head", commit: "abcdef1234567890"}, nil
		}
		return target{version: "v1.2.3"}, nil
	}
	e.buildFromSource = func(ctx context.Context, rec *Recipe, rev string) (string, error) {
		built := filepath.Join(t.TempDir(), rec.BinaryName())
		if err := os.WriteFile(built, []byte("bin "+rev), 0755); err != nil {
			return "", err
		}
		return built, nil
	}
	e.runVersion = func(ctx context.Context, bin string, args ...string) (string, error) {
		return "v1.2.3\n", nil
	}
	e.runPost = func(ctx context.Context, dir, command string) error {
		return nil
	}
	e.lookPath = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}
	return e
}

func TestInstallSourceStable(t *testing.T) {
	e := testEngine(t, nil)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "ripgrep", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Outcome != journal.OutcomeInstalled {
		t.Errorf("outcome = %s, want installed (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.Version != "v1.2.3" {
		t.Errorf("version = %q", rec.Version)
	}

	// The ripgrep recipe installs the binary as rg.
	if _, err := os.Stat(filepath.Join(e.pfx.BinDir(), "rg")); err != nil {
		t.Errorf("binary not installed: %v", err)
	}
}

func TestInstallNoOpWhenCurrent(t *testing.T) {
	e := testEngine(t, nil)

	tools := []conf.Tool{{Name: "ripgrep", Mode: conf.ModeStable}}
	if _, err := e.Install(context.Background(), tools, Options{}); err != nil {
		t.Fatalf("first Install(): %v", err)
	}

	records, err := e.Install(context.Background(), tools, Options{})
	if err != nil {
		t.Fatalf("second Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeCurrent {
		t.Errorf("outcome = %s, want current", records[0].Outcome)
	}

	// --force rebuilds even when current.
	records, err = e.Install(context.Background(), tools, Options{Force: true})
	if err != nil {
		t.Fatalf("forced Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeInstalled {
		t.Errorf("forced outcome = %s, want installed", records[0].Outcome)
	}
}

func TestInstallUpdateOnNewVersion(t *testing.T) {
	e := testEngine(t, nil)

	tools := []conf.Tool{{Name: "fzf", Mode: conf.ModeStable}}
	if _, err := e.Install(context.Background(), tools, Options{}); err != nil {
		t.Fatalf("first Install(): %v", err)
	}

	e.resolveTarget = func(ctx context.Context, rec *Recipe, mode conf.Mode) (target, error) {
		return target{version: "v2.0.0"}, nil
	}
	records, err := e.Install(context.Background(), tools, Options{})
	if err != nil {
		t.Fatalf("second Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeUpdated {
		t.Errorf("outcome = %s, want updated", records[0].Outcome)
	}
	if records[0].Version != "v2.0.0" {
		t.Errorf("version = %q", records[0].Version)
	}
}

func TestInstallModeNoneSkips(t *testing.T) {
	e := testEngine(t, nil)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "tmux", Mode: conf.ModeNone},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", records[0].Outcome)
	}
}

func TestInstallUnknownToolFailsAndContinues(t *testing.T) {
	e := testEngine(t, nil)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "nosuchtool", Mode: conf.ModeStable},
		{Name: "fzf", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Outcome != journal.OutcomeFailed {
		t.Errorf("first outcome = %s, want failed", records[0].Outcome)
	}
	if records[1].Outcome != journal.OutcomeInstalled {
		t.Errorf("second outcome = %s, want installed (batch must continue)", records[1].Outcome)
	}
}

func TestInstallBuildFailureWarnsAndContinues(t *testing.T) {
	e := testEngine(t, nil)
	e.buildFromSource = func(ctx context.Context, rec *Recipe, rev string) (string, error) {
		if rec.Name == "neovim" {
			return "", errors.New("cmake build: exit status 2")
		}
		built := filepath.Join(t.TempDir(), rec.BinaryName())
		if err := os.WriteFile(built, []byte("ok"), 0755); err != nil {
			return "", err
		}
		return built, nil
	}

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "neovim", Mode: conf.ModeStable},
		{Name: "jq", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeFailed {
		t.Errorf("neovim outcome = %s, want failed", records[0].Outcome)
	}
	if !strings.Contains(records[0].Error, "cmake build") {
		t.Errorf("error = %q", records[0].Error)
	}
	if records[1].Outcome != journal.OutcomeInstalled {
		t.Errorf("jq outcome = %s, want installed", records[1].Outcome)
	}
}

func TestInstallManaged(t *testing.T) {
	pm := &fakePM{name: "apt-get", installed: map[string]bool{}}
	e := testEngine(t, pm)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "fd", Mode: conf.ModeManaged},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeInstalled {
		t.Errorf("outcome = %s, want installed (error: %s)", records[0].Outcome, records[0].Error)
	}

	// apt names the fd package fd-find.
	if len(pm.calls) != 1 || pm.calls[0] != "install fd-find" {
		t.Errorf("pm calls = %v", pm.calls)
	}
}

func TestInstallManagedAlreadyPresent(t *testing.T) {
	pm := &fakePM{name: "pacman", installed: map[string]bool{"fd": true}}
	e := testEngine(t, pm)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "fd", Mode: conf.ModeManaged},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeCurrent {
		t.Errorf("outcome = %s, want current", records[0].Outcome)
	}
	if len(pm.calls) != 0 {
		t.Errorf("pm should not be invoked when package present: %v", pm.calls)
	}
}

func TestInstallManagedForceUpgrades(t *testing.T) {
	pm := &fakePM{name: "pacman", installed: map[string]bool{"fd": true}}
	e := testEngine(t, pm)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "fd", Mode: conf.ModeManaged},
	}, Options{Force: true})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeUpdated {
		t.Errorf("outcome = %s, want updated (error: %s)", records[0].Outcome, records[0].Error)
	}
	if len(pm.calls) != 1 || pm.calls[0] != "upgrade fd" {
		t.Errorf("pm calls = %v, want a single upgrade", pm.calls)
	}
}

// writeBinaryTarGz writes a tar.gz containing a single executable and
// returns its path.
func writeBinaryTarGz(t *testing.T, dir, archiveName, binaryName string) string {
	t.Helper()
	path := filepath.Join(dir, archiveName)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	content := []byte("#!/bin/sh\necho " + binaryName + "\n")
	if err := tw.WriteHeader(&tar.Header{Name: binaryName, Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return path
}

// releaseEngine stubs the network edges of the release path: the GitHub
// lookup returns a canned release and asset downloads come from a local
// staging directory.
func releaseEngine(t *testing.T, assetDir string, rel *fetch.Release) *Engine {
	t.Helper()
	e := testEngine(t, nil)
	e.resolveRelease = func(ctx context.Context, spec *ReleaseSpec) (*fetch.Release, error) {
		return rel, nil
	}
	e.fetchAsset = func(ctx context.Context, tool, version, url string) (string, error) {
		path := filepath.Join(assetDir, filepath.Base(url))
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("no staged asset for %s", url)
		}
		return path, nil
	}
	return e
}

func TestInstallReleaseStable(t *testing.T) {
	assetDir := t.TempDir()
	archive := writeBinaryTarGz(t, assetDir, "lazygit_0.44.1_Linux_x86_64.tar.gz", "lazygit")

	sum, err := verify.SHA256File(archive)
	if err != nil {
		t.Fatalf("hash archive: %v", err)
	}
	sums := sum + "  lazygit_0.44.1_Linux_x86_64.tar.gz\n"
	if err := os.WriteFile(filepath.Join(assetDir, "checksums.txt"), []byte(sums), 0644); err != nil {
		t.Fatalf("write checksums: %v", err)
	}

	rel := &fetch.Release{
		TagName: "v0.44.1",
		Assets: []fetch.Asset{
			{Name: "lazygit_0.44.1_Linux_x86_64.tar.gz", DownloadURL: "https://example.com/lazygit_0.44.1_Linux_x86_64.tar.gz"},
			{Name: "checksums.txt", DownloadURL: "https://example.com/checksums.txt"},
		},
	}
	e := releaseEngine(t, assetDir, rel)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "lazygit", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	rec := records[0]
	if rec.Outcome != journal.OutcomeInstalled {
		t.Fatalf("outcome = %s, want installed (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.Version != "0.44.1" {
		t.Errorf("version = %q, want 0.44.1", rec.Version)
	}
	if _, err := os.Stat(filepath.Join(e.pfx.BinDir(), "lazygit")); err != nil {
		t.Errorf("binary not installed: %v", err)
	}

	// A second run resolves the same release and stops at the currency
	// check without touching the network edges again.
	records, err = e.Install(context.Background(), []conf.Tool{
		{Name: "lazygit", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("second Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeCurrent {
		t.Errorf("second outcome = %s, want current", records[0].Outcome)
	}
}

func TestInstallReleaseChecksumMismatch(t *testing.T) {
	assetDir := t.TempDir()
	writeBinaryTarGz(t, assetDir, "lazygit_0.44.1_Linux_x86_64.tar.gz", "lazygit")

	sums := strings.Repeat("0", 64) + "  lazygit_0.44.1_Linux_x86_64.tar.gz\n"
	if err := os.WriteFile(filepath.Join(assetDir, "checksums.txt"), []byte(sums), 0644); err != nil {
		t.Fatalf("write checksums: %v", err)
	}

	rel := &fetch.Release{
		TagName: "v0.44.1",
		Assets: []fetch.Asset{
			{Name: "lazygit_0.44.1_Linux_x86_64.tar.gz", DownloadURL: "https://example.com/lazygit_0.44.1_Linux_x86_64.tar.gz"},
			{Name: "checksums.txt", DownloadURL: "https://example.com/checksums.txt"},
		},
	}
	e := releaseEngine(t, assetDir, rel)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "lazygit", Mode: conf.ModeStable},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	rec := records[0]
	if rec.Outcome != journal.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", rec.Outcome)
	}
	if !strings.Contains(rec.Error, "checksum") {
		t.Errorf("error = %q, want a checksum mismatch", rec.Error)
	}
	if _, err := os.Stat(filepath.Join(e.pfx.BinDir(), "lazygit")); !os.IsNotExist(err) {
		t.Error("failed verification must not install the binary")
	}
}

func TestInstallReleaseGPGNeedsKey(t *testing.T) {
	assetDir := t.TempDir()
	writeBinaryTarGz(t, assetDir, "tool_1.0_Linux_x86_64.tar.gz", "tool")

	rel := &fetch.Release{
		TagName: "v1.0",
		Assets: []fetch.Asset{
			{Name: "tool_1.0_Linux_x86_64.tar.gz", DownloadURL: "https://example.com/tool_1.0_Linux_x86_64.tar.gz"},
		},
	}
	e := releaseEngine(t, assetDir, rel)

	recipe := &Recipe{
		Name: "tool",
		Release: &ReleaseSpec{
			Owner:  "example",
			Repo:   "tool",
			Asset:  []string{"tool", "{os}", "{arch}", ".tar.gz"},
			Verify: verify.MethodGPG,
		},
		VersionArgs: []string{"--version"},
	}
	rec := e.installRelease(context.Background(), conf.Tool{Name: "tool", Mode: conf.ModeStable}, recipe, Options{})
	if rec.Outcome != journal.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", rec.Outcome)
	}
	if !strings.Contains(rec.Error, "no keyring") {
		t.Errorf("error = %q, want a missing-keyring failure", rec.Error)
	}
}

func TestAssetPatterns(t *testing.T) {
	e := testEngine(t, nil)

	got := e.assetPatterns([]string{"lazygit", "{os}", "{arch}", ".tar.gz"})
	want := []string{"lazygit", "linux", "x86_64", ".tar.gz"}
	if len(got) != len(want) {
		t.Fatalf("patterns = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("patterns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInstallManagedFallsBackToSource(t *testing.T) {
	e := testEngine(t, nil) // no package manager

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "zoxide", Mode: conf.ModeManaged},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeInstalled {
		t.Errorf("outcome = %s, want installed via source fallback (error: %s)",
			records[0].Outcome, records[0].Error)
	}
	if _, err := os.Stat(filepath.Join(e.pfx.BinDir(), "zoxide")); err != nil {
		t.Errorf("fallback should install binary: %v", err)
	}
}

func TestInstallRunsPostCommand(t *testing.T) {
	e := testEngine(t, nil)

	var ranPost string
	e.runPost = func(ctx context.Context, dir, command string) error {
		ranPost = command
		return nil
	}

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "fzf", Mode: conf.ModeStable, Post: "fzf --install-keybindings"},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	if records[0].Outcome != journal.OutcomeInstalled {
		t.Errorf("outcome = %s", records[0].Outcome)
	}
	if ranPost != "fzf --install-keybindings" {
		t.Errorf("post command = %q", ranPost)
	}
}

func TestInstallHeadMode(t *testing.T) {
	e := testEngine(t, nil)

	records, err := e.Install(context.Background(), []conf.Tool{
		{Name: "lazygit", Mode: conf.ModeHead},
	}, Options{})
	if err != nil {
		t.Fatalf("Install(): %v", err)
	}
	rec := records[0]
	if rec.Outcome != journal.OutcomeInstalled {
		t.Errorf("outcome = %s (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.Commit == "" {
		t.Error("head install should record a commit")
	}
}

func TestLookupRecipe(t *testing.T) {
	rec, err := LookupRecipe("ripgrep")
	if err != nil {
		t.Fatalf("LookupRecipe(ripgrep): %v", err)
	}
	if rec.BinaryName() != "rg" {
		t.Errorf("BinaryName() = %q, want rg", rec.BinaryName())
	}
	if rec.System != buildsrc.SystemCargo {
		t.Errorf("System = %v, want cargo", rec.System)
	}

	if _, err := LookupRecipe("unheard-of"); err == nil {
		t.Error("expected error for unknown recipe")
	}

	names := RecipeNames()
	if len(names) < 10 {
		t.Errorf("RecipeNames() = %d entries, expected the full roster", len(names))
	}
}

func TestRecipeArtifactPath(t *testing.T) {
	neovim, err := LookupRecipe("neovim")
	if err != nil {
		t.Fatal(err)
	}
	// cmake drops nvim under build/bin, not build.
	if got := neovim.ArtifactPath(filepath.Join("build", "nvim")); got != "build/bin/nvim" {
		t.Errorf("neovim artifact = %q", got)
	}

	btop, err := LookupRecipe("btop")
	if err != nil {
		t.Fatal(err)
	}
	// btop's Makefile writes into bin/.
	if got := btop.ArtifactPath("btop"); got != "bin/btop" {
		t.Errorf("btop artifact = %q", got)
	}

	ripgrep, err := LookupRecipe("ripgrep")
	if err != nil {
		t.Fatal(err)
	}
	def := filepath.Join("target", "release", "rg")
	if got := ripgrep.ArtifactPath(def); got != def {
		t.Errorf("recipes without an override must keep the build system default, got %q", got)
	}
}

func TestShellInitLine(t *testing.T) {
	zoxide, err := LookupRecipe("zoxide")
	if err != nil {
		t.Fatal(err)
	}

	if got := zoxide.ShellInitLine("bash"); got != `eval "$(zoxide init bash)"` {
		t.Errorf("bash line = %q", got)
	}
	if got := zoxide.ShellInitLine("fish"); got != "zoxide init fish | source" {
		t.Errorf("fish line = %q", got)
	}

	neovim, err := LookupRecipe("neovim")
	if err != nil {
		t.Fatal(err)
	}
	if got := neovim.ShellInitLine("bash"); got != "" {
		t.Errorf("recipes without init should render empty, got %q", got)
	}
}

func TestFormatSummary(t *testing.T) {
	records := []journal.Record{
		{Tool: "ripgrep", Mode: "stable", Outcome: journal.OutcomeInstalled, Version: "v14.1.1"},
		{Tool: "fzf", Mode: "head", Outcome: journal.OutcomeUpdated, Version: "head", Commit: "abcdef1234567890"},
		{Tool: "neovim", Mode: "stable", Outcome: journal.OutcomeFailed, Error: "cmake: exit status 2"},
	}

	out := FormatSummary(records)
	for _, want := range []string{"TOOL", "ripgrep", "installed", "abcdef12", "cmake: exit status 2", "1 of 3 tools failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
