package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	zigIndexURL = "https://ziglang.org/download/index.json"
	// zigPublicKey is the minisign key ziglang.org signs tarballs with.
	zigPublicKey = "RWSGOq2NVecA2UPNdBUZykf1CCb147pkmdtYxgb3Ti+JO/wCYvhbAb/U"
)

// zigArtifact is one platform entry in the ziglang.org download index.
type zigArtifact struct {
	Tarball string `json:"tarball"`
	Shasum  string `json:"shasum"`
	Size    string `json:"size"`
}

// zigToolchain installs Zig from the official tarballs, which are
// minisign-signed rather than GPG-signed.
type zigToolchain struct {
	m *Manager
}

func (z *zigToolchain) Name() string { return "zig" }

func (z *zigToolchain) Detect(ctx context.Context) (bool, string) {
	version, ok := z.m.prefixBinVersion(ctx, "zig", "version")
	return ok, version
}

func (z *zigToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := z.Detect(ctx); installed && !opts.Force {
		return nil
	}

	version, artifact, err := z.resolve(ctx)
	if err != nil {
		return err
	}

	archivePath, err := z.m.dl.Fetch(ctx, "zig", version, artifact.Tarball)
	if err != nil {
		return err
	}
	sigPath, err := z.m.dl.Fetch(ctx, "zig", version, artifact.Tarball+".minisig")
	if err != nil {
		return fmt.Errorf("fetch signature: %w", err)
	}
	if _, err := z.m.verifier.Minisign(archivePath, sigPath, zigPublicKey); err != nil {
		return fmt.Errorf("verify zig tarball: %w", err)
	}
	if artifact.Shasum != "" {
		if _, err := z.m.verifier.SHA256Hex(archivePath, artifact.Shasum); err != nil {
			return fmt.Errorf("verify zig tarball: %w", err)
		}
	}

	root := z.m.root("zig")
	staging := root + ".next"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clean staging dir: %w", err)
	}
	if err := z.m.extract.Extract(ctx, archivePath, staging); err != nil {
		return fmt.Errorf("extract zig tarball: %w", err)
	}

	// The tarball unpacks to a single zig-<platform>-<version> dir.
	inner, err := singleSubdir(staging)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.Rename(inner, root); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	os.RemoveAll(staging)

	return z.m.link(filepath.Join(root, "zig"), "zig")
}

// resolve finds the newest stable version in the download index and the
// artifact for the host platform (keys look like "x86_64-linux").
func (z *zigToolchain) resolve(ctx context.Context) (string, *zigArtifact, error) {
	doc, err := z.m.dl.FetchString(ctx, zigIndexURL)
	if err != nil {
		return "", nil, fmt.Errorf("fetch zig index: %w", err)
	}

	var index map[string]map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &index); err != nil {
		return "", nil, fmt.Errorf("decode zig index: %w", err)
	}

	version, err := latestZigVersion(index)
	if err != nil {
		return "", nil, err
	}

	platformKey := zigPlatformKey(z.m.info.OS, z.m.info.Arch)
	raw, ok := index[version][platformKey]
	if !ok {
		return "", nil, fmt.Errorf("no zig artifact for %s in %s", platformKey, version)
	}

	var artifact zigArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return "", nil, fmt.Errorf("decode zig artifact: %w", err)
	}
	if artifact.Tarball == "" {
		return "", nil, fmt.Errorf("zig index entry %s/%s has no tarball", version, platformKey)
	}
	return version, &artifact, nil
}

// latestZigVersion picks the highest release key, skipping "master".
func latestZigVersion(index map[string]map[string]json.RawMessage) (string, error) {
	var versions []string
	for key := range index {
		if key == "master" || !semver.IsValid("v"+key) {
			continue
		}
		versions = append(versions, key)
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no stable versions in zig index")
	}
	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare("v"+versions[i], "v"+versions[j]) > 0
	})
	return versions[0], nil
}

func zigPlatformKey(osName, arch string) string {
	cpu := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[arch]
	if cpu == "" {
		cpu = arch
	}
	name := osName
	if name == "darwin" {
		name = "macos"
	}
	return cpu + "-" + name
}

// singleSubdir returns the only directory inside dir.
func singleSubdir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging dir: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) != 1 {
		return "", fmt.Errorf("expected one directory in %s, found %s", dir, strings.Join(dirs, ", "))
	}
	return filepath.Join(dir, dirs[0]), nil
}
