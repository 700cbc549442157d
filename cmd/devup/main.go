package main

import (
	"fmt"
	"os"

	"github.com/devup-sh/devup/internal/logging"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	args := os.Args[1:]

	// Global verbosity flags may precede the subcommand.
	verbosity := 0
	for len(args) > 0 && (args[0] == "-v" || args[0] == "-vv") {
		if args[0] == "-v" {
			verbosity++
		} else {
			verbosity += 2
		}
		args = args[1:]
	}
	logging.SetupLogger(verbosity)

	if len(args) == 0 {
		printUsage()
		return
	}

	var err error
	exitCode := 0

	switch args[0] {
	case "--version", "version":
		fmt.Printf("devup %s\n", Version)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	case "init":
		err = runInit(args[1:])
	case "install":
		exitCode, err = runInstall(args[1:])
	case "toolchains":
		err = runToolchains(args[1:])
	case "status":
		exitCode, err = runStatus(args[1:])
	case "shell":
		err = runShell(args[1:])
	case "tools":
		err = runTools(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func printUsage() {
	fmt.Println("devup - development environment provisioner")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  devup init [--prefix DIR] [--dry-run]    Bootstrap the install prefix")
	fmt.Println("  devup install [TOOL...] [--force]        Install or update configured tools")
	fmt.Println("  devup toolchains [NAME...] [--force]     Install language toolchains")
	fmt.Println("  devup status [--verbose] [--refresh]     Report configured vs installed vs active")
	fmt.Println("  devup shell [bash|zsh|fish]              Print the shell activation snippet")
	fmt.Println("  devup shell install [--force] [--backup] Add activation to the shell rc file")
	fmt.Println("  devup tools list [--json]                Show configured tools")
	fmt.Println("  devup tools set NAME MODE                Change a tool's mode in tools.conf")
	fmt.Println("  devup --version                          Show version information")
	fmt.Println()
	fmt.Println("Global flags (before the command): -v, -vv for verbose logging")
}
