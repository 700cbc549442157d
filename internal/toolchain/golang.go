package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const goDownloadBase = "https://go.dev/dl/"

// goRelease mirrors the go.dev/dl/?mode=json document.
type goRelease struct {
	Version string   `json:"version"`
	Stable  bool     `json:"stable"`
	Files   []goFile `json:"files"`
}

type goFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Kind     string `json:"kind"`
	SHA256   string `json:"sha256"`
}

// goToolchain installs the official Go distribution from go.dev,
// verified against the sha256 the download index publishes.
type goToolchain struct {
	m *Manager
}

func (g *goToolchain) Name() string { return "go" }

func (g *goToolchain) Detect(ctx context.Context) (bool, string) {
	version, ok := g.m.prefixBinVersion(ctx, "go", "version")
	return ok, version
}

func (g *goToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := g.Detect(ctx); installed && !opts.Force {
		return nil
	}

	release, file, err := g.resolve(ctx)
	if err != nil {
		return err
	}

	archivePath, err := g.m.dl.Fetch(ctx, "go", release.Version, goDownloadBase+file.Filename)
	if err != nil {
		return err
	}
	if _, err := g.m.verifier.SHA256Hex(archivePath, file.SHA256); err != nil {
		return fmt.Errorf("verify go tarball: %w", err)
	}

	// The tarball root is "go/", so extract into a versioned dir and
	// swap the stable path underneath the symlinks.
	root := g.m.root("go")
	staging := root + ".next"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clean staging dir: %w", err)
	}
	if err := g.m.extract.Extract(ctx, archivePath, staging); err != nil {
		return fmt.Errorf("extract go tarball: %w", err)
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.Rename(filepath.Join(staging, "go"), root); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	os.RemoveAll(staging)

	for _, bin := range []string{"go", "gofmt"} {
		if err := g.m.link(filepath.Join(root, "bin", bin), bin); err != nil {
			return err
		}
	}
	return nil
}

// resolve picks the newest stable release and the archive matching the
// host platform.
func (g *goToolchain) resolve(ctx context.Context) (*goRelease, *goFile, error) {
	doc, err := g.m.dl.FetchString(ctx, goDownloadBase+"?mode=json")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch go release index: %w", err)
	}

	var releases []goRelease
	if err := json.Unmarshal([]byte(doc), &releases); err != nil {
		return nil, nil, fmt.Errorf("decode go release index: %w", err)
	}
	return selectGoArchive(releases, g.m.info.OS, g.m.info.Arch)
}

// selectGoArchive finds the newest stable release's archive for a
// platform. The index lists releases newest first.
func selectGoArchive(releases []goRelease, osName, arch string) (*goRelease, *goFile, error) {
	for i := range releases {
		if !releases[i].Stable {
			continue
		}
		for j := range releases[i].Files {
			file := &releases[i].Files[j]
			if file.Kind == "archive" && file.OS == osName && file.Arch == arch {
				return &releases[i], file, nil
			}
		}
		return nil, nil, fmt.Errorf("no go archive for %s/%s in %s", osName, arch, releases[i].Version)
	}
	return nil, nil, fmt.Errorf("no stable go release in index")
}
