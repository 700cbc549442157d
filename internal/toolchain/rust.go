package toolchain

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/devup-sh/devup/internal/fetch"
)

// rustToolchain installs Rust through rustup-init, keeping RUSTUP_HOME
// and CARGO_HOME inside the prefix so nothing lands in the user's home.
type rustToolchain struct {
	m *Manager
}

func (r *rustToolchain) Name() string { return "rust" }

func (r *rustToolchain) Detect(ctx context.Context) (bool, string) {
	version, ok := r.m.prefixBinVersion(ctx, "rustc", "--version")
	return ok, version
}

func (r *rustToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := r.Detect(ctx); installed && !opts.Force {
		return nil
	}

	target := rustupTarget(r.m.info.OS, r.m.info.Arch)
	url := fmt.Sprintf("https://static.rust-lang.org/rustup/dist/%s/rustup-init", target)

	// The installer is cached under a floating version; a forced run
	// must fetch the current one.
	if opts.Force {
		if err := r.m.dl.Invalidate("rustup", "latest"); err != nil {
			return err
		}
	}
	initPath, err := r.m.dl.Fetch(ctx, "rustup", "latest", url)
	if err != nil {
		return err
	}
	if err := fetch.SetExecutable(initPath); err != nil {
		return err
	}

	root := r.m.root("rust")
	env := []string{
		"RUSTUP_HOME=" + filepath.Join(root, "rustup"),
		"CARGO_HOME=" + filepath.Join(root, "cargo"),
	}
	if err := r.m.runCommand(ctx, env, initPath, "-y", "--no-modify-path", "--default-toolchain", "stable"); err != nil {
		return fmt.Errorf("rustup-init: %w", err)
	}

	cargoBin := filepath.Join(root, "cargo", "bin")
	for _, bin := range []string{"cargo", "rustc", "rustup"} {
		if err := r.m.link(filepath.Join(cargoBin, bin), bin); err != nil {
			return err
		}
	}
	return nil
}

// rustupTarget maps a platform to a rust target triple.
func rustupTarget(osName, arch string) string {
	cpu := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[arch]
	if cpu == "" {
		cpu = arch
	}
	if osName == "darwin" {
		return cpu + "-apple-darwin"
	}
	return cpu + "-unknown-linux-gnu"
}
