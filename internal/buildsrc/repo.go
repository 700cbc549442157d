// Package buildsrc maintains the shared source cache and runs builds
// out of it. Each tool built from source gets one clone under the cache
// directory, kept across runs so head-tracking tools only fetch deltas.
package buildsrc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/mod/semver"

	"github.com/devup-sh/devup/internal/logging"
)

// Cache manages clones under a shared source directory.
type Cache struct {
	srcDir string
}

// NewCache creates a cache rooted at srcDir.
func NewCache(srcDir string) *Cache {
	return &Cache{srcDir: srcDir}
}

// RepoPath returns the clone directory for a tool.
func (c *Cache) RepoPath(name string) string {
	return filepath.Join(c.srcDir, name)
}

// EnsureRepo clones url into the cache, or fetches updates when a clone
// already exists. It returns the opened repository and its path.
func (c *Cache) EnsureRepo(ctx context.Context, name, url string) (*git.Repository, string, error) {
	repoPath := c.RepoPath(name)

	logger := logging.GetLogger("buildsrc")

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		repo, err := c.fetchExisting(ctx, repoPath)
		if err != nil {
			// A broken cache entry is not worth diagnosing, reclone.
			logger.Warn().Str("tool", name).Err(err).Msg("source cache entry unusable, recloning")
			if rmErr := os.RemoveAll(repoPath); rmErr != nil {
				return nil, "", fmt.Errorf("remove broken clone: %w", rmErr)
			}
		} else {
			return repo, repoPath, nil
		}
	}

	logger.Debug().Str("tool", name).Str("url", url).Msg("cloning source repository")

	repo, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:  url,
		Tags: git.AllTags,
	})
	if err != nil {
		return nil, "", fmt.Errorf("clone %s: %w", url, err)
	}

	if ref, err := repo.Head(); err == nil {
		logger.Debug().Str("tool", name).Str("commit", shortHash(ref.Hash().String())).Msg("source repository cloned")
	}
	return repo, repoPath, nil
}

func (c *Cache) fetchExisting(ctx context.Context, repoPath string) (*git.Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("fetch origin: %w", err)
	}
	return repo, nil
}

// ResolveStable picks the newest release tag of a repository. Tags that
// parse as semantic versions win, ordered by semver precedence;
// prerelease tags (rc, beta, alpha, dev) are skipped. When no tag is
// semver-shaped the lexically greatest tag is used, which matches the
// date-like and suffix-letter schemes of the remaining upstreams.
func ResolveStable(repo *git.Repository) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("list tags: %w", err)
	}

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("iterate tags: %w", err)
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("repository has no tags")
	}

	best := ""
	for _, tag := range tags {
		if isPrerelease(tag) {
			continue
		}
		v := canonicalVersion(tag)
		if !semver.IsValid(v) {
			continue
		}
		if best == "" || semver.Compare(v, canonicalVersion(best)) > 0 {
			best = tag
		}
	}
	if best != "" {
		return best, nil
	}

	// No semver tags at all, fall back to lexical order.
	var plain []string
	for _, tag := range tags {
		if !isPrerelease(tag) {
			plain = append(plain, tag)
		}
	}
	if len(plain) == 0 {
		plain = tags
	}
	sort.Strings(plain)
	return plain[len(plain)-1], nil
}

// ResolveHead returns the hash the remote default branch points at.
func ResolveHead(repo *git.Repository) (string, error) {
	remoteRef, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), true)
	if err == nil {
		return remoteRef.Hash().String(), nil
	}

	// Older clones lack origin/HEAD, try the usual branch names.
	for _, branch := range []string{"main", "master"} {
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
		if err == nil {
			return ref.Hash().String(), nil
		}
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve head: %w", err)
	}
	return ref.Hash().String(), nil
}

// Checkout moves the worktree to a tag or commit hash, discarding any
// local modifications left behind by a previous build.
func Checkout(repo *git.Repository, rev string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	opts := &git.CheckoutOptions{Force: true}
	if plumbing.IsHash(rev) {
		opts.Hash = plumbing.NewHash(rev)
	} else {
		opts.Branch = plumbing.NewTagReferenceName(rev)
	}

	if err := worktree.Checkout(opts); err != nil {
		return fmt.Errorf("checkout %s: %w", rev, err)
	}
	return nil
}

// HeadCommit returns the short hash of the current worktree HEAD.
func HeadCommit(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve head: %w", err)
	}
	return shortHash(ref.Hash().String()), nil
}

// canonicalVersion shapes a tag for x/mod/semver: "3.5" and "v3.5" both
// become "v3.5".
func canonicalVersion(tag string) string {
	v := strings.TrimPrefix(tag, "v")
	// Upstreams like jq tag "jq-1.7.1".
	if i := strings.LastIndex(v, "-"); i >= 0 && !semver.IsValid("v"+v) {
		v = v[i+1:]
	}
	return "v" + v
}

func isPrerelease(tag string) bool {
	lower := strings.ToLower(tag)
	for _, marker := range []string{"rc", "alpha", "beta", "dev", "pre", "nightly"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
