package shell

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DetectShell detects the user's shell using multiple methods
func DetectShell() (*DetectionResult, error) {
	// Method 1: Try $SHELL environment variable (most reliable)
	if sh := os.Getenv("SHELL"); sh != "" {
		shellType := parseShellFromPath(sh)
		if shellType.IsValid() {
			return &DetectionResult{
				Shell:     shellType,
				Method:    "$SHELL environment variable",
				ShellPath: sh,
			}, nil
		}
	}

	// Method 2: Try parent process (fallback)
	if shellType, shellPath := detectFromParentProcess(); shellType.IsValid() {
		return &DetectionResult{
			Shell:     shellType,
			Method:    "parent process",
			ShellPath: shellPath,
		}, nil
	}

	return &DetectionResult{
		Shell:  ShellUnknown,
		Method: "detection failed",
	}, nil
}

// parseShellFromPath extracts the shell type from a shell binary path
// Examples:
//   - /bin/bash -> bash
//   - /usr/bin/zsh -> zsh
//   - /usr/local/bin/fish -> fish
func parseShellFromPath(shellPath string) ShellType {
	baseName := strings.ToLower(filepath.Base(shellPath))

	// Login shells show up as "-bash" in the process table.
	baseName = strings.TrimPrefix(baseName, "-")

	switch baseName {
	case "bash":
		return ShellBash
	case "zsh":
		return ShellZsh
	case "fish":
		return ShellFish
	default:
		return ShellUnknown
	}
}

// detectFromParentProcess walks up the process tree looking for a known
// shell. Covers the case where $SHELL is unset or points at something
// other than the interactive shell actually in use.
func detectFromParentProcess() (ShellType, string) {
	proc, err := process.NewProcess(int32(os.Getppid()))
	if err != nil {
		return ShellUnknown, ""
	}

	// A few levels is enough: devup -> shell, or devup -> sudo -> shell.
	for depth := 0; depth < 4 && proc != nil; depth++ {
		name, err := proc.Name()
		if err != nil {
			return ShellUnknown, ""
		}
		if shellType := parseShellFromPath(name); shellType.IsValid() {
			exe, _ := proc.Exe()
			return shellType, exe
		}
		proc, err = proc.Parent()
		if err != nil {
			return ShellUnknown, ""
		}
	}

	return ShellUnknown, ""
}

// ValidateShell validates that a shell type is supported
func ValidateShell(sh ShellType) error {
	if !sh.IsValid() {
		return &UnsupportedShellError{Shell: sh.String()}
	}
	return nil
}

// SupportedShells returns the list of supported shells
func SupportedShells() []ShellType {
	return []ShellType{ShellBash, ShellZsh, ShellFish}
}
