package shell

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GetRCFilePath returns the path to the shell's RC file
func GetRCFilePath(sh ShellType) (string, error) {
	if err := ValidateShell(sh); err != nil {
		return "", err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	switch sh {
	case ShellBash:
		return filepath.Join(homeDir, ".bashrc"), nil
	case ShellZsh:
		return filepath.Join(homeDir, ".zshrc"), nil
	case ShellFish:
		return filepath.Join(homeDir, ".config", "fish", "config.fish"), nil
	default:
		return "", &UnsupportedShellError{Shell: sh.String()}
	}
}

// RCFileExists checks if the RC file exists
func RCFileExists(rcPath string) (bool, error) {
	info, err := os.Stat(rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &RCFileError{
			Path:    rcPath,
			Message: "failed to stat file",
			Cause:   err,
		}
	}

	if !info.Mode().IsRegular() {
		return false, &RCFileError{
			Path:    rcPath,
			Message: "not a regular file",
		}
	}

	return true, nil
}

// CreateRCFile creates a new RC file with appropriate directory structure
func CreateRCFile(rcPath string) error {
	dir := filepath.Dir(rcPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to create parent directory",
			Cause:   err,
		}
	}

	if err := os.WriteFile(rcPath, []byte("# Shell configuration\n"), 0644); err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to create file",
			Cause:   err,
		}
	}

	return nil
}

// HasActivationLine checks if the RC file already contains an activation line
func HasActivationLine(rcPath string) (bool, error) {
	file, err := os.Open(rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &RCFileError{
			Path:    rcPath,
			Message: "failed to open file",
			Cause:   err,
		}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, ActivationMarker) {
			return true, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return false, &RCFileError{
			Path:    rcPath,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	return false, nil
}

// BackupRCFile creates a timestamped backup of the RC file
func BackupRCFile(rcPath string) (string, error) {
	content, err := os.ReadFile(rcPath)
	if err != nil {
		return "", &RCFileError{
			Path:    rcPath,
			Message: "failed to read file for backup",
			Cause:   err,
		}
	}

	backupPath := rcPath + BackupSuffix + "." + time.Now().Format("20060102-150405")

	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return "", &RCFileError{
			Path:    backupPath,
			Message: "failed to write backup file",
			Cause:   err,
		}
	}

	return backupPath, nil
}

// AddActivationLine adds the activation line to the RC file.
// This is an atomic operation using a temporary file.
func AddActivationLine(rcPath string, activationCommand string) error {
	var existingContent []byte
	var err error

	if exists, _ := RCFileExists(rcPath); exists {
		existingContent, err = os.ReadFile(rcPath)
		if err != nil {
			return &RCFileError{
				Path:    rcPath,
				Message: "failed to read existing file",
				Cause:   err,
			}
		}
	}

	// Temp file in the same directory so the rename stays atomic.
	dir := filepath.Dir(rcPath)
	tmpFile, err := os.CreateTemp(dir, ".devup-tmp-*")
	if err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to create temporary file",
			Cause:   err,
		}
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if len(existingContent) > 0 {
		if _, err := tmpFile.Write(existingContent); err != nil {
			tmpFile.Close()
			return &RCFileError{
				Path:    rcPath,
				Message: "failed to write existing content",
				Cause:   err,
			}
		}

		if !strings.HasSuffix(string(existingContent), "\n") {
			if _, err := tmpFile.WriteString("\n"); err != nil {
				tmpFile.Close()
				return &RCFileError{
					Path:    rcPath,
					Message: "failed to write newline",
					Cause:   err,
				}
			}
		}
	}

	section := fmt.Sprintf("\n# devup - development environment\n%s\n", activationCommand)
	if _, err := tmpFile.WriteString(section); err != nil {
		tmpFile.Close()
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to write activation line",
			Cause:   err,
		}
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to sync file",
			Cause:   err,
		}
	}

	tmpFile.Close()

	if err := os.Rename(tmpPath, rcPath); err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to rename temp file",
			Cause:   err,
		}
	}

	return nil
}
