package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/devup-sh/devup/internal/buildsrc"
	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/fetch"
	"github.com/devup-sh/devup/internal/journal"
	"github.com/devup-sh/devup/internal/logging"
	"github.com/devup-sh/devup/internal/pkgmgr"
	"github.com/devup-sh/devup/internal/platform"
	"github.com/devup-sh/devup/internal/prefix"
	"github.com/devup-sh/devup/internal/verify"
)

// Options controls an install run.
type Options struct {
	Force bool
}

// Engine runs the install/update state machine for each configured
// tool. Failures warn and continue: one broken build never aborts the
// rest of the batch, and a failed update leaves the previous
// installation untouched.
type Engine struct {
	pfx       *prefix.Prefix
	pm        pkgmgr.Manager // nil when the host has no supported manager
	info      *platform.Info
	cache     *buildsrc.Cache
	builder   *buildsrc.Builder
	jnl       *journal.Journal
	dl        *fetch.Downloader
	gh        *fetch.GitHubClient
	extractor *fetch.Extractor
	verifier  *verify.Verifier

	// swappable for tests
	buildFromSource func(ctx context.Context, rec *Recipe, rev string) (string, error)
	runVersion      func(ctx context.Context, bin string, args ...string) (string, error)
	resolveTarget   func(ctx context.Context, rec *Recipe, mode conf.Mode) (target, error)
	resolveRelease  func(ctx context.Context, spec *ReleaseSpec) (*fetch.Release, error)
	fetchAsset      func(ctx context.Context, tool, version, url string) (string, error)
	fetchKey        func(ctx context.Context, url string) (string, error)
	runPost         func(ctx context.Context, dir, command string) error
	lookPath        func(file string) (string, error)
}

// target is a resolved version to install: a tag for stable mode, a
// commit hash for head mode.
type target struct {
	version string
	commit  string
}

// NewEngine creates an engine. pm may be nil; settings may be nil for
// defaults.
func NewEngine(pfx *prefix.Prefix, pm pkgmgr.Manager, info *platform.Info, settings *conf.Settings, jobs int) *Engine {
	if settings == nil {
		settings = conf.DefaultSettings()
	}
	dl := fetch.NewDownloader(pfx.DownloadCacheDir())
	dl.SetMirrors(settings.Mirrors)
	e := &Engine{
		pfx:       pfx,
		pm:        pm,
		info:      info,
		cache:     buildsrc.NewCache(pfx.SrcCacheDir()),
		builder:   buildsrc.NewBuilder(jobs, pfx.BinDir()),
		jnl:       journal.New(pfx.JournalDir()),
		dl:        dl,
		gh:        fetch.NewGitHubClient(settings.GitHubTokenEnv),
		extractor: fetch.NewExtractor(),
		verifier:  verify.NewVerifier(pfx.KeyringDir()),
	}
	e.buildFromSource = e.realBuildFromSource
	e.runVersion = e.realRunVersion
	e.resolveTarget = e.realResolveTarget
	e.resolveRelease = e.realResolveRelease
	e.fetchAsset = dl.Fetch
	e.fetchKey = dl.FetchString
	e.runPost = e.realRunPost
	e.lookPath = exec.LookPath
	return e
}

// Journal exposes the engine's journal for status reporting.
func (e *Engine) Journal() *journal.Journal {
	return e.jnl
}

// Install runs the state machine for each tool in order and records
// the whole batch as one journal run.
func (e *Engine) Install(ctx context.Context, tools []conf.Tool, opts Options) ([]journal.Record, error) {
	logger := logging.GetLogger("installer")

	lock, err := journal.AcquireLock(e.pfx.EtcDir())
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	run := journal.NewRun()
	for _, tool := range tools {
		if ctx.Err() != nil {
			return run.Records, ctx.Err()
		}

		rec := e.installOne(ctx, tool, opts)
		run.Add(rec)

		switch rec.Outcome {
		case journal.OutcomeFailed:
			logger.Warn().Str("tool", tool.Name).Str("error", rec.Error).Msg("tool failed, continuing")
		case journal.OutcomeCurrent:
			logger.Debug().Str("tool", tool.Name).Str("version", rec.Version).Msg("tool already current")
		default:
			logger.Info().Str("tool", tool.Name).Str("outcome", string(rec.Outcome)).Str("version", rec.Version).Msg("tool done")
		}
	}

	if err := e.jnl.Save(run); err != nil {
		return run.Records, fmt.Errorf("save journal: %w", err)
	}
	return run.Records, nil
}

// installOne is the per-tool state machine: mode → target resolution →
// currency check → fetch/build/install → verify → post command.
func (e *Engine) installOne(ctx context.Context, tool conf.Tool, opts Options) journal.Record {
	rec := journal.Record{Tool: tool.Name, Mode: string(tool.Mode)}

	if tool.Mode == conf.ModeNone {
		rec.Outcome = journal.OutcomeSkipped
		return rec
	}

	recipe, err := LookupRecipe(tool.Name)
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if tool.Mode == conf.ModeManaged {
		return e.installManaged(ctx, tool, recipe, opts)
	}
	if tool.Mode == conf.ModeStable && recipe.Release != nil {
		return e.installRelease(ctx, tool, recipe, opts)
	}
	return e.installSource(ctx, tool, recipe, opts)
}

// installManaged delegates to the package manager, falling back to a
// source build when the host has none.
func (e *Engine) installManaged(ctx context.Context, tool conf.Tool, recipe *Recipe, opts Options) journal.Record {
	rec := journal.Record{Tool: tool.Name, Mode: string(tool.Mode)}

	if e.pm == nil {
		logger := logging.GetLogger("installer")
		logger.Warn().Str("tool", tool.Name).
			Msg("no package manager available, building from source instead")
		return e.installSource(ctx, tool, recipe, opts)
	}

	pkg := pkgmgr.Translate(e.pm.Name(), recipe.PackageName())

	installed, err := e.pm.IsInstalled(ctx, pkg)
	upgraded := false
	if err == nil && installed {
		if !opts.Force {
			rec.Outcome = journal.OutcomeCurrent
			rec.Version = e.installedVersion(ctx, recipe)
			return rec
		}
		// Force on an installed package means pull the manager's newest
		// version, not reinstall the same one.
		if err := e.pm.Upgrade(ctx, pkg); err != nil {
			rec.Outcome = journal.OutcomeFailed
			rec.Error = err.Error()
			return rec
		}
		upgraded = true
	} else if err := e.pm.Install(ctx, pkg); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if _, err := e.lookPath(recipe.BinaryName()); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = fmt.Sprintf("%s installed but %s not on PATH", pkg, recipe.BinaryName())
		return rec
	}

	if err := e.post(ctx, tool); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if upgraded {
		rec.Outcome = journal.OutcomeUpdated
	} else {
		rec.Outcome = journal.OutcomeInstalled
	}
	rec.Version = e.installedVersion(ctx, recipe)
	return rec
}

// installSource resolves the target version, checks currency against
// the journal and the installed binary, and rebuilds when stale.
func (e *Engine) installSource(ctx context.Context, tool conf.Tool, recipe *Recipe, opts Options) journal.Record {
	rec := journal.Record{Tool: tool.Name, Mode: string(tool.Mode)}

	tgt, err := e.resolveTarget(ctx, recipe, tool.Mode)
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Version = tgt.version
	rec.Commit = tgt.commit

	if !opts.Force && e.isCurrent(recipe, tgt) {
		rec.Outcome = journal.OutcomeCurrent
		return rec
	}

	prev, hadPrev, _ := e.jnl.LatestFor(tool.Name)

	builtPath, err := e.buildFromSource(ctx, recipe, tgt.rev())
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	installedPath, err := buildsrc.InstallBinary(builtPath, e.pfx.BinDir(), recipe.BinaryName())
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if len(recipe.VersionArgs) > 0 {
		if _, err := e.runVersion(ctx, installedPath, recipe.VersionArgs...); err != nil {
			rec.Outcome = journal.OutcomeFailed
			rec.Error = fmt.Sprintf("installed binary failed verification: %v", err)
			return rec
		}
	}

	if err := e.post(ctx, tool); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if hadPrev && (prev.Version != tgt.version || prev.Commit != tgt.commit) {
		rec.Outcome = journal.OutcomeUpdated
	} else {
		rec.Outcome = journal.OutcomeInstalled
	}
	return rec
}

// installRelease installs a prebuilt GitHub release asset: resolve the
// latest release, download the matching asset, verify it per the recipe
// policy, and unpack the binary into the prefix.
func (e *Engine) installRelease(ctx context.Context, tool conf.Tool, recipe *Recipe, opts Options) journal.Record {
	rec := journal.Record{Tool: tool.Name, Mode: string(tool.Mode)}

	rel, err := e.resolveRelease(ctx, recipe.Release)
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Version = rel.Version()

	if !opts.Force && e.isCurrent(recipe, target{version: rel.Version()}) {
		rec.Outcome = journal.OutcomeCurrent
		return rec
	}

	prev, hadPrev, _ := e.jnl.LatestFor(tool.Name)

	asset, ok := rel.FindAsset(e.assetPatterns(recipe.Release.Asset)...)
	if !ok {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = fmt.Sprintf("release %s has no asset matching %v", rel.TagName, recipe.Release.Asset)
		return rec
	}

	archivePath, err := e.fetchAsset(ctx, recipe.Name, rel.Version(), asset.DownloadURL)
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if err := e.verifyAsset(ctx, recipe, rel, asset, archivePath); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	builtPath := filepath.Join(filepath.Dir(archivePath), recipe.BinaryName())
	if err := e.extractor.ExtractBinary(archivePath, builtPath, recipe.BinaryName()); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	installedPath, err := buildsrc.InstallBinary(builtPath, e.pfx.BinDir(), recipe.BinaryName())
	if err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if len(recipe.VersionArgs) > 0 {
		if _, err := e.runVersion(ctx, installedPath, recipe.VersionArgs...); err != nil {
			rec.Outcome = journal.OutcomeFailed
			rec.Error = fmt.Sprintf("installed binary failed verification: %v", err)
			return rec
		}
	}

	if err := e.post(ctx, tool); err != nil {
		rec.Outcome = journal.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	if hadPrev && prev.Version != rel.Version() {
		rec.Outcome = journal.OutcomeUpdated
	} else {
		rec.Outcome = journal.OutcomeInstalled
	}
	return rec
}

// verifyAsset enforces the recipe's verification policy on a downloaded
// release asset before it is unpacked.
func (e *Engine) verifyAsset(ctx context.Context, recipe *Recipe, rel *fetch.Release, asset *fetch.Asset, archivePath string) error {
	spec := recipe.Release
	switch spec.Verify {
	case verify.MethodNone:
		return nil

	case verify.MethodSHA256:
		sums, ok := rel.FindAsset(spec.Checksum...)
		if !ok {
			return fmt.Errorf("release %s has no checksum asset matching %v", rel.TagName, spec.Checksum)
		}
		sumsPath, err := e.fetchAsset(ctx, recipe.Name, rel.Version(), sums.DownloadURL)
		if err != nil {
			return err
		}
		if _, err := e.verifier.SHA256(archivePath, sumsPath); err != nil {
			return fmt.Errorf("verify %s: %w", asset.Name, err)
		}
		return nil

	case verify.MethodGPG:
		if !verify.KeyringExists(e.pfx.KeyringDir(), recipe.Name) {
			if spec.KeyURL == "" {
				return fmt.Errorf("no keyring for %s and no key URL in the recipe", recipe.Name)
			}
			keyData, err := e.fetchKey(ctx, spec.KeyURL)
			if err != nil {
				return fmt.Errorf("fetch signing key: %w", err)
			}
			if err := verify.ImportKeyring(e.pfx.KeyringDir(), recipe.Name, []byte(keyData)); err != nil {
				return err
			}
		}
		sig, ok := rel.FindAsset(asset.Name + ".asc")
		if !ok {
			return fmt.Errorf("release %s has no signature for %s", rel.TagName, asset.Name)
		}
		sigPath, err := e.fetchAsset(ctx, recipe.Name, rel.Version(), sig.DownloadURL)
		if err != nil {
			return err
		}
		if _, err := e.verifier.GPG(archivePath, sigPath, recipe.Name); err != nil {
			return fmt.Errorf("verify %s: %w", asset.Name, err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported verification method %s", spec.Verify)
	}
}

// assetPatterns expands {os} and {arch} placeholders to the host
// platform for asset matching.
func (e *Engine) assetPatterns(patterns []string) []string {
	osName, archName := runtime.GOOS, runtime.GOARCH
	if e.info != nil {
		osName, archName = e.info.OS, e.info.Arch
	}
	// Release assets overwhelmingly use the uname machine name for x86.
	if archName == "amd64" {
		archName = "x86_64"
	}
	out := make([]string, len(patterns))
	for i, p := range patterns {
		p = strings.ReplaceAll(p, "{os}", osName)
		p = strings.ReplaceAll(p, "{arch}", archName)
		out[i] = p
	}
	return out
}

func (e *Engine) realResolveRelease(ctx context.Context, spec *ReleaseSpec) (*fetch.Release, error) {
	return e.gh.LatestRelease(ctx, spec.Owner, spec.Repo)
}

// isCurrent reports whether the journal already records this target and
// the binary is present in the prefix.
func (e *Engine) isCurrent(recipe *Recipe, tgt target) bool {
	prev, ok, err := e.jnl.LatestFor(recipe.Name)
	if err != nil || !ok {
		return false
	}
	if prev.Version != tgt.version || prev.Commit != tgt.commit {
		return false
	}
	_, err = os.Stat(filepath.Join(e.pfx.BinDir(), recipe.BinaryName()))
	return err == nil
}

func (e *Engine) post(ctx context.Context, tool conf.Tool) error {
	if tool.Post == "" {
		return nil
	}
	if err := e.runPost(ctx, e.pfx.Root, tool.Post); err != nil {
		return fmt.Errorf("post command: %w", err)
	}
	return nil
}

// installedVersion probes the installed binary for its version line.
func (e *Engine) installedVersion(ctx context.Context, recipe *Recipe) string {
	if len(recipe.VersionArgs) == 0 {
		return ""
	}
	binPath, err := e.lookPath(recipe.BinaryName())
	if err != nil {
		return ""
	}
	out, err := e.runVersion(ctx, binPath, recipe.VersionArgs...)
	if err != nil {
		return ""
	}
	return firstLine(out)
}

func (t target) rev() string {
	if t.commit != "" {
		return t.commit
	}
	return t.version
}

func (e *Engine) realResolveTarget(ctx context.Context, rec *Recipe, mode conf.Mode) (target, error) {
	repo, _, err := e.cache.EnsureRepo(ctx, rec.Name, rec.Repo)
	if err != nil {
		return target{}, err
	}

	if mode == conf.ModeHead {
		hash, err := buildsrc.ResolveHead(repo)
		if err != nil {
			return target{}, err
		}
		return target{version: "head", commit: hash}, nil
	}

	tag, err := buildsrc.ResolveStable(repo)
	if err != nil {
		return target{}, err
	}
	return target{version: tag}, nil
}

func (e *Engine) realBuildFromSource(ctx context.Context, rec *Recipe, rev string) (string, error) {
	repo, repoPath, err := e.cache.EnsureRepo(ctx, rec.Name, rec.Repo)
	if err != nil {
		return "", err
	}
	if err := buildsrc.Checkout(repo, rev); err != nil {
		return "", err
	}
	relPath, err := e.builder.Build(ctx, repoPath, rec.BinaryName(), rec.System)
	if err != nil {
		return "", err
	}
	return filepath.Join(repoPath, rec.ArtifactPath(relPath)), nil
}

func (e *Engine) realRunVersion(ctx context.Context, bin string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (e *Engine) realRunPost(ctx context.Context, dir, command string) error {
	return e.builder.RunCustom(ctx, dir, command)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
