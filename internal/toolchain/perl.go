package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devup-sh/devup/internal/fetch"
)

const cpanmURL = "https://cpanmin.us"

// perlToolchain sets up a local::lib layout for the system perl and
// bootstraps cpanm into the prefix. Perl itself comes from the package
// manager; only its module tree is kept under the toolchains directory.
type perlToolchain struct {
	m *Manager
}

func (p *perlToolchain) Name() string { return "perl" }

func (p *perlToolchain) Detect(ctx context.Context) (bool, string) {
	if _, err := os.Stat(filepath.Join(p.m.root("perl"), "lib", "perl5")); err != nil {
		return false, ""
	}
	version, _ := p.m.prefixBinVersion(ctx, "cpanm", "--version")
	return true, version
}

func (p *perlToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := p.Detect(ctx); installed && !opts.Force {
		return nil
	}

	perlBin, err := p.m.lookPath("perl")
	if err != nil {
		if p.m.pm == nil {
			return fmt.Errorf("perl not found and no package manager available")
		}
		if err := p.m.pm.Install(ctx, "perl"); err != nil {
			return fmt.Errorf("install perl: %w", err)
		}
		perlBin, err = p.m.lookPath("perl")
		if err != nil {
			return fmt.Errorf("perl still missing after install: %w", err)
		}
	}

	root := p.m.root("perl")
	if err := os.MkdirAll(filepath.Join(root, "lib", "perl5"), 0755); err != nil {
		return fmt.Errorf("create local::lib tree: %w", err)
	}

	if opts.Force {
		if err := p.m.dl.Invalidate("cpanm", "latest"); err != nil {
			return fmt.Errorf("invalidate cpanm cache: %w", err)
		}
	}
	cpanmPath, err := p.m.dl.Fetch(ctx, "cpanm", "latest", cpanmURL)
	if err != nil {
		return fmt.Errorf("fetch cpanm: %w", err)
	}
	if err := fetch.SetExecutable(cpanmPath); err != nil {
		return err
	}

	// Install cpanm into the local::lib tree via itself so later runs
	// use the managed copy.
	env := []string{
		"PERL_LOCAL_LIB_ROOT=" + root,
		"PERL5LIB=" + filepath.Join(root, "lib", "perl5"),
	}
	if err := p.m.runCommand(ctx, env, perlBin, cpanmPath, "--local-lib", root, "App::cpanminus"); err != nil {
		return fmt.Errorf("bootstrap cpanm: %w", err)
	}

	return p.m.link(filepath.Join(root, "bin", "cpanm"), "cpanm")
}
