// Package prefix manages the shared install prefix: the directory tree
// devup provisions tools into, its ownership, and its permission bits.
//
// The layout contract is
//
//	<prefix>/bin                   installed binaries and symlinks
//	<prefix>/etc/dev               tools.conf, overlay, keyrings, lock
//	<prefix>/share/dev/cache       download and source build caches
//	<prefix>/share/dev/toolchains  language runtimes
//	<prefix>/lib                   support libraries
//
// Shared prefixes are root:<admin-group> with setgid 2775 so every admin
// can update tools; the unprivileged fallback under the user's home uses
// plain 0755.
package prefix

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Candidate system prefixes, in preference order.
var systemPrefixes = []string{"/opt/local", "/usr/local"}

// Prefix describes a resolved install prefix.
type Prefix struct {
	// Root is the prefix directory itself.
	Root string
	// Shared is true for system prefixes that use group ownership.
	Shared bool
	// AdminGroup is the owning group for shared prefixes.
	AdminGroup string
}

// Subdirectories relative to the prefix root.
var layout = []string{
	"bin",
	"etc/dev",
	"etc/dev/journal",
	"share/dev/cache",
	"share/dev/cache/downloads",
	"share/dev/cache/src",
	"share/dev/toolchains",
	"lib",
}

// Resolve picks the install prefix. An explicit override wins; otherwise
// the first writable (or root-creatable) system prefix is used, falling
// back to ~/.local/devup for unprivileged runs.
func Resolve(override string) (*Prefix, error) {
	if override != "" {
		return &Prefix{Root: override, Shared: isSystemPath(override)}, nil
	}

	for _, p := range systemPrefixes {
		if dirWritable(p) || (os.Geteuid() == 0 && parentWritable(p)) {
			return &Prefix{Root: p, Shared: true}, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve prefix: no system prefix writable and no home directory: %w", err)
	}
	return &Prefix{Root: filepath.Join(home, ".local", "devup"), Shared: false}, nil
}

// BinDir returns <prefix>/bin.
func (p *Prefix) BinDir() string { return filepath.Join(p.Root, "bin") }

// EtcDir returns <prefix>/etc/dev.
func (p *Prefix) EtcDir() string { return filepath.Join(p.Root, "etc", "dev") }

// KeyringDir returns the keyring directory under etc.
func (p *Prefix) KeyringDir() string { return filepath.Join(p.EtcDir(), "keyrings") }

// JournalDir returns <prefix>/etc/dev/journal.
func (p *Prefix) JournalDir() string { return filepath.Join(p.EtcDir(), "journal") }

// CacheDir returns <prefix>/share/dev/cache.
func (p *Prefix) CacheDir() string { return filepath.Join(p.Root, "share", "dev", "cache") }

// DownloadCacheDir returns the download cache.
func (p *Prefix) DownloadCacheDir() string { return filepath.Join(p.CacheDir(), "downloads") }

// SrcCacheDir returns the source checkout cache.
func (p *Prefix) SrcCacheDir() string { return filepath.Join(p.CacheDir(), "src") }

// ToolchainDir returns <prefix>/share/dev/toolchains.
func (p *Prefix) ToolchainDir() string { return filepath.Join(p.Root, "share", "dev", "toolchains") }

// LibDir returns <prefix>/lib.
func (p *Prefix) LibDir() string { return filepath.Join(p.Root, "lib") }

// ToolsConfPath returns the tools.conf location.
func (p *Prefix) ToolsConfPath() string { return filepath.Join(p.EtcDir(), "tools.conf") }

// BootstrapResult reports what Bootstrap did and what it could not do.
type BootstrapResult struct {
	Created  []string
	Warnings []string
}

// Bootstrap creates the full directory layout. It is idempotent. Missing
// privileges for ownership changes degrade to warnings: a prefix that is
// usable but not group-shared beats a failed run.
func (p *Prefix) Bootstrap() (*BootstrapResult, error) {
	res := &BootstrapResult{}

	mode := os.FileMode(0755)
	if p.Shared {
		mode = 0775
	}

	for _, rel := range append([]string{""}, layout...) {
		dir := filepath.Join(p.Root, rel)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, mode); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		res.Created = append(res.Created, dir)
	}

	if p.Shared {
		if err := p.applySharedOwnership(res); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// applySharedOwnership sets root:<admin-group> ownership and setgid 2775
// on the tree. Failures are recorded as warnings.
func (p *Prefix) applySharedOwnership(res *BootstrapResult) error {
	gid, err := lookupGroupID(p.AdminGroup)
	if err != nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("admin group %q not found; prefix stays owner-writable only", p.AdminGroup))
		return nil
	}

	for _, rel := range append([]string{""}, layout...) {
		dir := filepath.Join(p.Root, rel)
		if err := os.Chown(dir, 0, gid); err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("chown %s: %v (run with sudo to share the prefix)", dir, err))
			return nil
		}
		if err := os.Chmod(dir, 0775|os.ModeSetgid); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("chmod %s: %v", dir, err))
			return nil
		}
	}
	return nil
}

// Verify checks that the layout exists and is writable, returning one
// message per problem. An empty slice means the prefix is healthy.
func (p *Prefix) Verify() []string {
	var problems []string
	for _, rel := range append([]string{""}, layout...) {
		dir := filepath.Join(p.Root, rel)
		info, err := os.Stat(dir)
		if err != nil {
			problems = append(problems, fmt.Sprintf("missing: %s", dir))
			continue
		}
		if !info.IsDir() {
			problems = append(problems, fmt.Sprintf("not a directory: %s", dir))
			continue
		}
		if !dirWritable(dir) {
			problems = append(problems, fmt.Sprintf("not writable: %s", dir))
		}
	}
	return problems
}

// lookupGroupID resolves a group name to its numeric gid.
func lookupGroupID(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("no admin group configured")
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("non-numeric gid %q for group %s", g.Gid, name)
	}
	return gid, nil
}

// dirWritable reports whether the directory exists and the current user
// can create entries in it.
func dirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe, err := os.CreateTemp(dir, ".devup-probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}

// parentWritable reports whether the parent of a missing directory can be
// written, i.e. the directory could be created.
func parentWritable(dir string) bool {
	return dirWritable(filepath.Dir(dir))
}

// isSystemPath reports whether an override path is a shared system
// location (and therefore gets group ownership) rather than a per-user
// directory.
func isSystemPath(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range []string{"/opt", "/usr", "/srv"} {
		if clean == root || (len(clean) > len(root) && clean[:len(root)+1] == root+"/") {
			return true
		}
	}
	return false
}
