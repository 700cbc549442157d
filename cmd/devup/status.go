package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/devup-sh/devup/internal/installer"
	"github.com/devup-sh/devup/internal/journal"
	"github.com/devup-sh/devup/internal/status"
)

// runStatus handles `devup status`. Exit code 1 means at least one tool
// needs attention.
func runStatus(args []string) (int, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "show every tool with versions and paths, not just problems")
	refresh := fs.Bool("refresh", false, "ignore the version probe cache")
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return 1, err
	}
	if err := requireInit(env); err != nil {
		return 1, err
	}

	cfg, err := env.loadTools(ctx)
	if err != nil {
		return 1, err
	}
	if len(cfg.Tools) == 0 {
		fmt.Println("No tools configured.")
		return 0, nil
	}

	jnl := journal.New(env.Prefix.JournalDir())
	recorded, err := jnl.Latest()
	if err != nil {
		return 1, fmt.Errorf("read journal: %w", err)
	}

	binaryName := func(tool string) string {
		if rec, err := installer.LookupRecipe(tool); err == nil {
			return rec.BinaryName()
		}
		return tool
	}

	var binaries []string
	for _, tool := range cfg.Tools {
		binaries = append(binaries, binaryName(tool.Name))
	}
	active := status.QueryActive(binaries, *refresh)

	results := status.Detect(cfg, recorded, active, env.Prefix.BinDir(), binaryName)
	if *verbose {
		fmt.Print(status.FormatDetailedReport(results))
	} else {
		fmt.Print(status.FormatReport(results))
	}

	for _, r := range results {
		if r.Kind != status.KindOK && r.Kind != status.KindDisabled {
			return 1, nil
		}
	}
	return 0, nil
}
