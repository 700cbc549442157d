// Package toolchain installs language runtimes under the prefix
// toolchains directory and links their entry points into the prefix
// bin directory. Each runtime is independent: one failing does not
// stop the others.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/devup-sh/devup/internal/fetch"
	"github.com/devup-sh/devup/internal/pkgmgr"
	"github.com/devup-sh/devup/internal/platform"
	"github.com/devup-sh/devup/internal/prefix"
	"github.com/devup-sh/devup/internal/verify"
)

// Options controls an install run.
type Options struct {
	Force bool
}

// Toolchain is a single language runtime installer.
type Toolchain interface {
	Name() string
	// Detect reports whether the runtime is already installed through
	// the prefix, and its version string when known.
	Detect(ctx context.Context) (bool, string)
	Install(ctx context.Context, opts Options) error
}

// Manager wires the shared plumbing into the individual installers.
type Manager struct {
	info     *platform.Info
	pfx      *prefix.Prefix
	dl       *fetch.Downloader
	extract  *fetch.Extractor
	verifier *verify.Verifier
	pm       pkgmgr.Manager

	// swappable for tests
	runCommand func(ctx context.Context, env []string, name string, args ...string) error
	runOutput  func(ctx context.Context, name string, args ...string) (string, error)
	lookPath   func(file string) (string, error)
}

// NewManager creates a toolchain manager. pm may be nil when the host
// has no supported package manager.
func NewManager(info *platform.Info, pfx *prefix.Prefix, pm pkgmgr.Manager) *Manager {
	m := &Manager{
		info:     info,
		pfx:      pfx,
		dl:       fetch.NewDownloader(pfx.DownloadCacheDir()),
		extract:  fetch.NewExtractor(),
		verifier: verify.NewVerifier(pfx.KeyringDir()),
		pm:       pm,
	}
	m.runCommand = m.execCommand
	m.runOutput = m.execOutput
	m.lookPath = exec.LookPath
	return m
}

// SetMirrors forwards download mirror rewrites to the manager's
// downloader.
func (m *Manager) SetMirrors(mirrors map[string]string) {
	m.dl.SetMirrors(mirrors)
}

// All returns every supported toolchain in install order.
func (m *Manager) All() []Toolchain {
	return []Toolchain{
		&rustToolchain{m},
		&goToolchain{m},
		&zigToolchain{m},
		&condaToolchain{m},
		&perlToolchain{m},
		&rubyToolchain{m},
	}
}

// Get returns the toolchain with the given name.
func (m *Manager) Get(name string) (Toolchain, error) {
	for _, tc := range m.All() {
		if tc.Name() == name {
			return tc, nil
		}
	}
	return nil, fmt.Errorf("unknown toolchain %q", name)
}

// root returns the install directory for a toolchain.
func (m *Manager) root(name string) string {
	return filepath.Join(m.pfx.ToolchainDir(), name)
}

// link points <bin>/<name> at target, replacing whatever was there.
func (m *Manager) link(target, name string) error {
	linkPath := filepath.Join(m.pfx.BinDir(), name)
	if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
		return fmt.Errorf("create bin dir: %w", err)
	}
	if _, err := os.Lstat(linkPath); err == nil {
		if err := os.Remove(linkPath); err != nil {
			return fmt.Errorf("remove existing link: %w", err)
		}
	}
	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("symlink %s: %w", name, err)
	}
	return nil
}

// prefixBinVersion runs <bin>/<name> with args and returns the first
// line of output, or ("", false) when the binary is not linked yet.
func (m *Manager) prefixBinVersion(ctx context.Context, name string, args ...string) (string, bool) {
	binPath := filepath.Join(m.pfx.BinDir(), name)
	if _, err := os.Stat(binPath); err != nil {
		return "", false
	}
	out, err := m.runOutput(ctx, binPath, args...)
	if err != nil {
		return "", false
	}
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	return strings.TrimSpace(out), true
}

func (m *Manager) execCommand(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(out)))
	}
	return nil
}

func (m *Manager) execOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

func tail(out string) string {
	const maxLen = 300
	out = strings.TrimSpace(out)
	if out == "" {
		return "no output"
	}
	if len(out) > maxLen {
		out = "..." + out[len(out)-maxLen:]
	}
	return out
}
