package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devup-sh/devup/internal/installer"
	"github.com/devup-sh/devup/internal/logging"
	"github.com/devup-sh/devup/internal/pkgmgr"
)

// initMarkerName is written to the prefix etc dir after a successful init.
const initMarkerName = "initialized"

// runInit handles `devup init`
func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	prefixFlag := fs.String("prefix", "", "install prefix (default: /opt/local, /usr/local, or ~/.local/devup)")
	dryRun := fs.Bool("dry-run", false, "show what would be done without making changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Platform: %s/%s", env.Platform.OS, env.Platform.Arch)
	if env.Platform.Platform != "" {
		fmt.Printf(" (%s %s)", env.Platform.Platform, env.Platform.Version)
	}
	fmt.Println()
	if env.PackageManager != nil {
		fmt.Printf("Package manager: %s\n", env.PackageManager.Name())
	} else {
		fmt.Println("Package manager: none detected (managed mode will fall back to source builds)")
	}
	fmt.Printf("Prefix: %s\n", env.Prefix.Root)

	if *dryRun {
		fmt.Println()
		fmt.Println("Dry run: no changes made.")
		return nil
	}

	result, err := env.Prefix.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap prefix: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if len(result.Created) > 0 {
		fmt.Printf("Created %d directories under %s\n", len(result.Created), env.Prefix.Root)
	}

	if env.PackageManager != nil {
		fmt.Println("Installing baseline build packages...")
		if err := env.PackageManager.Install(ctx, pkgmgr.Baseline...); err != nil {
			// Build prerequisites may already exist from another source.
			fmt.Fprintf(os.Stderr, "Warning: baseline package install failed: %v\n", err)
		}
	}

	confPath := env.Prefix.ToolsConfPath()
	if _, err := os.Stat(confPath); os.IsNotExist(err) {
		if err := writeDefaultToolsConf(confPath); err != nil {
			return fmt.Errorf("write default tools.conf: %w", err)
		}
		fmt.Printf("Wrote starter configuration to %s\n", confPath)
	} else {
		fmt.Printf("Keeping existing configuration at %s\n", confPath)
	}

	marker := filepath.Join(env.Prefix.EtcDir(), initMarkerName)
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(marker, []byte(stamp), 0644); err != nil {
		return fmt.Errorf("write init marker: %w", err)
	}

	logger := logging.GetLogger("init")
	logger.Info().Str("prefix", env.Prefix.Root).Msg("initialized")
	fmt.Println()
	fmt.Println("Done. Next steps:")
	fmt.Println("  devup toolchains      Install language toolchains")
	fmt.Println("  devup install         Install the configured tools")
	fmt.Println("  devup shell install   Add activation to your shell rc file")
	return nil
}

// writeDefaultToolsConf lays down a starter tools.conf covering the
// built-in recipe roster, everything in stable mode.
func writeDefaultToolsConf(path string) error {
	var sb strings.Builder
	sb.WriteString("# devup tool configuration\n")
	sb.WriteString("#\n")
	sb.WriteString("# NAME=MODE[, FLAG...][, post=\"CMD\"]\n")
	sb.WriteString("#   stable  - build the latest tagged release from source\n")
	sb.WriteString("#   head    - build the tip of the default branch\n")
	sb.WriteString("#   managed - install via the OS package manager\n")
	sb.WriteString("#   none    - skip this tool\n")
	sb.WriteString("\n")
	for _, name := range installer.RecipeNames() {
		sb.WriteString(name + "=stable\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
