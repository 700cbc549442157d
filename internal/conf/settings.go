package conf

import (
	"fmt"
	"os"
	"runtime"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
)

// Settings are ambient, machine-local options. They live outside the
// prefix (in the XDG config directory) because they describe this user's
// preferences, not the shared environment.
type Settings struct {
	// Prefix overrides the install prefix resolution.
	Prefix string `toml:"prefix"`

	// Jobs caps parallel build jobs. 0 means nproc-1 (minimum 1).
	Jobs int `toml:"jobs"`

	// GitHubTokenEnv names the environment variable consulted for a
	// GitHub API token. Defaults to GITHUB_TOKEN.
	GitHubTokenEnv string `toml:"github_token_env"`

	// Mirrors maps a download host to a replacement base URL.
	Mirrors map[string]string `toml:"mirrors"`
}

// SettingsRelPath is the settings location under the XDG config home.
const SettingsRelPath = "devup/settings.toml"

// DefaultSettings returns the zero configuration with defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		GitHubTokenEnv: "GITHUB_TOKEN",
	}
}

// LoadSettings reads settings.toml from the XDG config directory. A
// missing file returns defaults.
func LoadSettings() (*Settings, error) {
	path, err := xdg.SearchConfigFile(SettingsRelPath)
	if err != nil {
		// Not found anywhere in the XDG search path.
		return DefaultSettings(), nil
	}
	return LoadSettingsFile(path)
}

// LoadSettingsFile reads settings from an explicit path.
func LoadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := DefaultSettings()
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if s.Jobs < 0 {
		return nil, &ValidationError{Field: "jobs", Message: "must be >= 0"}
	}
	return s, nil
}

// BuildJobs resolves the parallel job count: the configured cap, or
// nproc-1 with a floor of one. Matches the behavior expected on
// constrained build hosts.
func (s *Settings) BuildJobs() int {
	if s.Jobs > 0 {
		return s.Jobs
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// GitHubToken returns the configured token, if any.
func (s *Settings) GitHubToken() string {
	env := s.GitHubTokenEnv
	if env == "" {
		env = "GITHUB_TOKEN"
	}
	return os.Getenv(env)
}
