// Package shell handles shell integration: detecting the user's shell,
// generating the activation snippet that puts the managed prefix on
// PATH, and safely appending the activation line to rc files.
package shell

import "fmt"

// Manager orchestrates shell integration setup
type Manager struct{}

// NewManager creates a new shell manager
func NewManager() *Manager {
	return &Manager{}
}

// SetupIntegration sets up shell integration for the given shell
func (m *Manager) SetupIntegration(sh ShellType, opts SetupOptions) (*SetupResult, error) {
	if err := ValidateShell(sh); err != nil {
		return nil, err
	}

	rcPath, err := GetRCFilePath(sh)
	if err != nil {
		return nil, fmt.Errorf("get RC file path: %w", err)
	}

	exists, err := RCFileExists(rcPath)
	if err != nil {
		return nil, fmt.Errorf("check RC file: %w", err)
	}

	if !exists && !opts.DryRun {
		if err := CreateRCFile(rcPath); err != nil {
			return nil, fmt.Errorf("create RC file: %w", err)
		}
	}

	hasActivation, err := HasActivationLine(rcPath)
	if err != nil {
		return nil, fmt.Errorf("check activation line: %w", err)
	}

	activationCmd, err := GenerateActivationCommand(sh)
	if err != nil {
		return nil, fmt.Errorf("generate activation command: %w", err)
	}

	if hasActivation && !opts.Force {
		return &SetupResult{
			Shell:             sh,
			RCFile:            rcPath,
			Added:             false,
			AlreadyPresent:    true,
			ActivationCommand: activationCmd,
		}, nil
	}

	var backupPath string
	if opts.Backup && exists && !opts.DryRun {
		backupPath, err = BackupRCFile(rcPath)
		if err != nil {
			return nil, fmt.Errorf("backup RC file: %w", err)
		}
	}

	if !opts.DryRun {
		if err := AddActivationLine(rcPath, activationCmd); err != nil {
			return nil, fmt.Errorf("add activation line: %w", err)
		}
	}

	return &SetupResult{
		Shell:             sh,
		RCFile:            rcPath,
		Added:             !opts.DryRun,
		AlreadyPresent:    hasActivation,
		BackupPath:        backupPath,
		ActivationCommand: activationCmd,
	}, nil
}

// DetectAndSetup detects the user's shell and sets up integration
func (m *Manager) DetectAndSetup(opts SetupOptions) (*SetupResult, error) {
	detection, err := DetectShell()
	if err != nil {
		return nil, fmt.Errorf("detect shell: %w", err)
	}

	if !detection.Shell.IsValid() {
		return nil, &UnsupportedShellError{Shell: detection.ShellPath}
	}

	return m.SetupIntegration(detection.Shell, opts)
}
