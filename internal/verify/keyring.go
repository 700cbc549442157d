package verify

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeyringPath returns the filesystem path to a tool's GPG keyring.
func KeyringPath(keyringDir, tool string) string {
	return filepath.Join(keyringDir, fmt.Sprintf("%s.gpg", tool))
}

// ImportKeyring installs key material for a tool into the keyring
// directory. Existing keyrings are overwritten, so re-importing a
// rotated key is just another import.
func ImportKeyring(keyringDir, tool string, keyData []byte) error {
	if len(keyData) == 0 {
		return fmt.Errorf("keyring for %s is empty", tool)
	}
	if err := os.MkdirAll(keyringDir, 0755); err != nil {
		return fmt.Errorf("create keyring dir: %w", err)
	}
	if err := os.WriteFile(KeyringPath(keyringDir, tool), keyData, 0644); err != nil {
		return fmt.Errorf("write keyring file: %w", err)
	}
	return nil
}

// KeyringExists reports whether a non-empty keyring is installed for a tool.
func KeyringExists(keyringDir, tool string) bool {
	info, err := os.Stat(KeyringPath(keyringDir, tool))
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
