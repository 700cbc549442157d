package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devup-sh/devup/internal/toolchain"
)

// runToolchains handles `devup toolchains [NAME...]`
func runToolchains(args []string) error {
	fs := flag.NewFlagSet("toolchains", flag.ContinueOnError)
	force := fs.Bool("force", false, "reinstall even when already present")
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}
	if err := requireInit(env); err != nil {
		return err
	}

	mgr := toolchain.NewManager(env.Platform, env.Prefix, env.PackageManager)
	mgr.SetMirrors(env.Settings.Mirrors)

	var selected []toolchain.Toolchain
	if names := fs.Args(); len(names) > 0 {
		for _, name := range names {
			tc, err := mgr.Get(name)
			if err != nil {
				return err
			}
			selected = append(selected, tc)
		}
	} else {
		selected = mgr.All()
	}

	failures := 0
	for _, tc := range selected {
		if installed, version := tc.Detect(ctx); installed && !*force {
			if version != "" {
				fmt.Printf("%-8s already installed (%s)\n", tc.Name(), version)
			} else {
				fmt.Printf("%-8s already installed\n", tc.Name())
			}
			continue
		}

		fmt.Printf("%-8s installing...\n", tc.Name())
		if err := tc.Install(ctx, toolchain.Options{Force: *force}); err != nil {
			// One broken toolchain shouldn't block the rest.
			fmt.Fprintf(os.Stderr, "Warning: %s install failed: %v\n", tc.Name(), err)
			failures++
			continue
		}
		fmt.Printf("%-8s installed\n", tc.Name())
	}

	if failures == len(selected) && failures > 0 {
		return fmt.Errorf("all %d toolchain installs failed", failures)
	}
	return nil
}
