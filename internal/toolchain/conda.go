package toolchain

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/devup-sh/devup/internal/fetch"
)

// condaToolchain installs Miniforge, the conda-forge flavored conda
// distribution, in batch mode under the toolchains directory.
type condaToolchain struct {
	m *Manager
}

func (c *condaToolchain) Name() string { return "conda" }

func (c *condaToolchain) Detect(ctx context.Context) (bool, string) {
	version, ok := c.m.prefixBinVersion(ctx, "conda", "--version")
	return ok, version
}

func (c *condaToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := c.Detect(ctx); installed && !opts.Force {
		return nil
	}

	url := fmt.Sprintf(
		"https://github.com/conda-forge/miniforge/releases/latest/download/Miniforge3-%s-%s.sh",
		miniforgeOS(c.m.info.OS), miniforgeArch(c.m.info.OS, c.m.info.Arch),
	)
	if opts.Force {
		if err := c.m.dl.Invalidate("miniforge", "latest"); err != nil {
			return err
		}
	}
	installerPath, err := c.m.dl.Fetch(ctx, "miniforge", "latest", url)
	if err != nil {
		return err
	}
	if err := fetch.SetExecutable(installerPath); err != nil {
		return err
	}

	root := c.m.root("conda")
	args := []string{installerPath, "-b", "-p", root}
	if opts.Force {
		args = append(args, "-u")
	}
	if err := c.m.runCommand(ctx, nil, "bash", args...); err != nil {
		return fmt.Errorf("miniforge installer: %w", err)
	}

	for _, bin := range []string{"conda", "mamba"} {
		if err := c.m.link(filepath.Join(root, "bin", bin), bin); err != nil {
			return err
		}
	}
	return nil
}

func miniforgeOS(osName string) string {
	if osName == "darwin" {
		return "MacOSX"
	}
	return "Linux"
}

// miniforgeArch maps to the upstream asset naming, which uses arm64 on
// macOS but aarch64 on Linux.
func miniforgeArch(osName, arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		if osName == "darwin" {
			return "arm64"
		}
		return "aarch64"
	default:
		return arch
	}
}
