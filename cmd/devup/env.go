package main

import (
	"context"
	"fmt"
	"os"

	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/pkgmgr"
	"github.com/devup-sh/devup/internal/platform"
	"github.com/devup-sh/devup/internal/prefix"
)

// environment bundles the pieces almost every command needs.
type environment struct {
	Settings *conf.Settings
	Prefix   *prefix.Prefix
	Platform *platform.Info
	// PackageManager is nil when the host has no supported manager.
	PackageManager pkgmgr.Manager
}

// setupEnvironment loads settings, resolves the prefix, and detects the
// platform. prefixOverride (from a --prefix flag) wins over settings.
func setupEnvironment(ctx context.Context, prefixOverride string) (*environment, error) {
	settings, err := conf.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	detector := platform.NewDetector()
	info, err := detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	override := prefixOverride
	if override == "" {
		override = settings.Prefix
	}
	pfx, err := prefix.Resolve(override)
	if err != nil {
		return nil, fmt.Errorf("resolve prefix: %w", err)
	}
	// Shared-prefix ownership needs the platform's admin group.
	pfx.AdminGroup = info.AdminGroup

	env := &environment{
		Settings: settings,
		Prefix:   pfx,
		Platform: info,
	}

	pm, err := pkgmgr.For(info)
	if err == nil {
		env.PackageManager = pm
	}

	return env, nil
}

// loadTools parses tools.conf (with the Lua overlay) for the prefix.
func (e *environment) loadTools(ctx context.Context) (*conf.Config, error) {
	cfg, err := conf.Load(ctx, e.Prefix.EtcDir(), e.Platform)
	if err != nil {
		return nil, fmt.Errorf("load tools.conf: %w", err)
	}
	for _, w := range cfg.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return cfg, nil
}

// selectTools filters cfg down to the named tools, or returns all of
// them when names is empty. Unknown names are an error so typos don't
// silently no-op.
func selectTools(cfg *conf.Config, names []string) ([]conf.Tool, error) {
	if len(names) == 0 {
		return cfg.Tools, nil
	}

	var tools []conf.Tool
	for _, name := range names {
		tool := cfg.Lookup(name)
		if tool == nil {
			return nil, fmt.Errorf("tool %q is not in tools.conf", name)
		}
		tools = append(tools, *tool)
	}
	return tools, nil
}
