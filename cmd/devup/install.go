package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devup-sh/devup/internal/installer"
	"github.com/devup-sh/devup/internal/journal"
)

// runInstall handles `devup install [TOOL...]`. The returned exit code
// is nonzero only when every selected tool failed.
func runInstall(args []string) (int, error) {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	force := fs.Bool("force", false, "reinstall even when the recorded version is current")
	jobs := fs.Int("jobs", 0, "parallel build jobs (default: number of CPUs minus one)")
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	tools, err := selectTools(cfg, fs.Args())
	if err != nil {
		return 1, err
	}
	if len(tools) == 0 {
		fmt.Println("Nothing to install: tools.conf is empty.")
		return 0, nil
	}

	buildJobs := env.Settings.BuildJobs()
	if *jobs > 0 {
		buildJobs = *jobs
	}

	engine := installer.NewEngine(env.Prefix, env.PackageManager, env.Platform, env.Settings, buildJobs)
	records, err := engine.Install(ctx, tools, installer.Options{Force: *force})
	if err != nil {
		return 1, err
	}

	fmt.Print(installer.FormatSummary(records))

	failed := 0
	for _, rec := range records {
		if rec.Outcome == journal.OutcomeFailed {
			failed++
		}
	}
	if failed == len(records) && failed > 0 {
		return 1, nil
	}
	return 0, nil
}

// requireInit refuses to run against a prefix that was never bootstrapped.
func requireInit(env *environment) error {
	if problems := env.Prefix.Verify(); len(problems) > 0 {
		return fmt.Errorf("prefix %s is not initialized (run 'devup init' first): %s",
			env.Prefix.Root, problems[0])
	}
	return nil
}
