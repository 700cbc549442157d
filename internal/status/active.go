package status

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// versionCacheEntry stores a cached version with timestamp.
type versionCacheEntry struct {
	version   string
	timestamp time.Time
}

var versionCache = struct {
	sync.RWMutex
	entries map[string]versionCacheEntry
}{
	entries: make(map[string]versionCacheEntry),
}

// versionCacheTTL is the time-to-live for cached version entries.
const versionCacheTTL = 5 * time.Minute

var versionRegex = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// QueryActive probes PATH for each binary name. Binaries that are not
// found are simply absent from the result.
func QueryActive(binaryNames []string, forceRefresh bool) []ActiveTool {
	var tools []ActiveTool

	for _, name := range binaryNames {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}

		// Resolve symlinks so prefix detection sees the real location.
		resolvedPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			resolvedPath = path
		}

		version, err := DetectVersionCached(path, forceRefresh)
		if err != nil {
			version = "unknown"
		}

		tools = append(tools, ActiveTool{
			Name:    name,
			Version: version,
			Path:    resolvedPath,
		})
	}

	return tools
}

// DetectVersionCached detects a binary's version with a short-lived
// cache so repeated status runs don't fork the same probes again.
func DetectVersionCached(binaryPath string, forceRefresh bool) (string, error) {
	if !forceRefresh {
		versionCache.RLock()
		if entry, exists := versionCache.entries[binaryPath]; exists {
			if time.Since(entry.timestamp) < versionCacheTTL {
				versionCache.RUnlock()
				return entry.version, nil
			}
		}
		versionCache.RUnlock()
	}

	version, err := DetectVersion(binaryPath)
	if err != nil {
		return "", err
	}

	versionCache.Lock()
	versionCache.entries[binaryPath] = versionCacheEntry{
		version:   version,
		timestamp: time.Now(),
	}
	versionCache.Unlock()

	return version, nil
}

// DetectVersion executes a binary to read its version, trying the
// common flags in order.
func DetectVersion(binaryPath string) (string, error) {
	for _, flag := range []string{"--version", "-V", "-v", "version"} {
		out, err := exec.Command(binaryPath, flag).Output()
		if err != nil {
			continue
		}
		if version, err := ExtractVersion(string(out)); err == nil {
			return version, nil
		}
	}
	return "", fmt.Errorf("could not detect version of %s", binaryPath)
}

// ExtractVersion pulls the first version-shaped number out of command
// output. "ripgrep 14.1.1 (rev ...)" and "tmux 3.5a" both yield their
// leading numeric part.
func ExtractVersion(output string) (string, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return "", fmt.Errorf("no version found in output")
	}
	return match, nil
}
