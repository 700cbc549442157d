package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/installer"
	"github.com/devup-sh/devup/internal/shell"
)

// runShell handles `devup shell [SHELL]` and `devup shell install`.
func runShell(args []string) error {
	if len(args) > 0 && args[0] == "install" {
		return runShellInstall(args[1:])
	}
	return runShellPrint(args)
}

// runShellPrint prints the activation snippet for eval in an rc file.
func runShellPrint(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sh, err := resolveShell(fs.Args())
	if err != nil {
		return err
	}

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}

	var opts shell.SnippetOptions
	if cfg, err := env.loadTools(ctx); err == nil {
		opts.ToolInit = toolInitLines(cfg, sh)
	}

	snippet, err := shell.GenerateActivationSnippet(sh, env.Prefix, opts)
	if err != nil {
		return err
	}
	fmt.Print(snippet)
	return nil
}

// runShellInstall appends the activation line to the user's rc file.
func runShellInstall(args []string) error {
	fs := flag.NewFlagSet("shell install", flag.ContinueOnError)
	force := fs.Bool("force", false, "add the line even when one is already present")
	backup := fs.Bool("backup", false, "back up the rc file before modifying it")
	dryRun := fs.Bool("dry-run", false, "show what would be done without making changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := shell.SetupOptions{Force: *force, Backup: *backup, DryRun: *dryRun}
	mgr := shell.NewManager()

	var result *shell.SetupResult
	var err error
	if rest := fs.Args(); len(rest) > 0 {
		sh, shellErr := resolveShell(rest)
		if shellErr != nil {
			return shellErr
		}
		result, err = mgr.SetupIntegration(sh, opts)
	} else {
		result, err = mgr.DetectAndSetup(opts)
	}
	if err != nil {
		return err
	}

	switch {
	case result.AlreadyPresent && !result.Added:
		fmt.Printf("Activation already present in %s\n", result.RCFile)
	case *dryRun:
		fmt.Printf("Would add to %s:\n  %s\n", result.RCFile, result.ActivationCommand)
	default:
		fmt.Printf("Added to %s:\n  %s\n", result.RCFile, result.ActivationCommand)
		if result.BackupPath != "" {
			fmt.Printf("Backup: %s\n", result.BackupPath)
		}
		fmt.Println("Restart your shell or source the file to activate.")
	}
	return nil
}

// resolveShell picks the shell from args, falling back to detection.
func resolveShell(args []string) (shell.ShellType, error) {
	if len(args) > 0 {
		sh := shell.ShellType(args[0])
		if err := shell.ValidateShell(sh); err != nil {
			return shell.ShellUnknown, err
		}
		return sh, nil
	}

	detection, err := shell.DetectShell()
	if err != nil {
		return shell.ShellUnknown, err
	}
	if !detection.Shell.IsValid() {
		return shell.ShellUnknown, fmt.Errorf("could not detect your shell; pass one of: bash, zsh, fish")
	}
	return detection.Shell, nil
}

// toolInitLines collects per-tool shell init commands for configured
// tools that carry the "shell" flag.
func toolInitLines(cfg *conf.Config, sh shell.ShellType) []string {
	var lines []string
	for i := range cfg.Tools {
		tool := &cfg.Tools[i]
		if tool.Mode == conf.ModeNone || !tool.HasFlag("shell") {
			continue
		}
		rec, err := installer.LookupRecipe(tool.Name)
		if err != nil {
			continue
		}
		if line := rec.ShellInitLine(sh.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
