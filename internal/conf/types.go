// Package conf loads and edits the devup tool configuration.
//
// The primary format is tools.conf: one line per tool,
//
//	NAME=MODE[, FLAG...][, post="CMD"]
//
// where MODE selects how the tool is installed (stable, head, managed,
// none). An optional tools.lua overlay is evaluated in a sandboxed Lua VM
// with a read-only platform table, so a single configuration can vary by
// OS, architecture, and distro family. Ambient settings (prefix override,
// build jobs) live in a TOML file under the XDG config directory.
package conf

import (
	"fmt"
	"regexp"
)

// Mode selects how a tool's version is chosen and installed.
type Mode string

const (
	// ModeStable installs the latest tagged release, built from source.
	ModeStable Mode = "stable"
	// ModeHead installs the tip of the default branch.
	ModeHead Mode = "head"
	// ModeManaged installs via the OS package manager.
	ModeManaged Mode = "managed"
	// ModeNone skips the tool entirely.
	ModeNone Mode = "none"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid returns true for a recognized mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeStable, ModeHead, ModeManaged, ModeNone:
		return true
	default:
		return false
	}
}

// ParseMode parses a mode string. Unknown values fall back to stable and
// report ok=false so callers can warn without aborting the whole file.
func ParseMode(s string) (mode Mode, ok bool) {
	m := Mode(s)
	if m.IsValid() {
		return m, true
	}
	return ModeStable, false
}

// Tool is a single entry from tools.conf.
type Tool struct {
	// Name is the tool name, matching a recipe name.
	Name string
	// Mode selects the installation strategy.
	Mode Mode
	// Flags are free-form tokens passed through to the recipe
	// (e.g. "shell" to enable shell integration).
	Flags []string
	// Post is a shell command run after a successful install.
	Post string
	// Line is the 1-based source line, for diagnostics.
	Line int
}

// HasFlag reports whether the tool carries the given flag token.
func (t *Tool) HasFlag(flag string) bool {
	for _, f := range t.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Config is the parsed tool configuration.
type Config struct {
	Tools []Tool
	// Warnings collects non-fatal parse issues (unknown modes, ignored
	// lines) for the caller to surface.
	Warnings []string
}

// Lookup returns the entry for a tool name, or nil.
func (c *Config) Lookup(name string) *Tool {
	for i := range c.Tools {
		if c.Tools[i].Name == name {
			return &c.Tools[i]
		}
	}
	return nil
}

// Names returns tool names in file order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Tools))
	for _, t := range c.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if len(c.Tools) > MaxToolCount {
		return &ValidationError{
			Field:   "tools",
			Message: fmt.Sprintf("too many tools (%d), maximum is %d", len(c.Tools), MaxToolCount),
		}
	}

	seen := make(map[string]int, len(c.Tools))
	for i, tool := range c.Tools {
		if err := validateToolName(tool.Name); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("tools[%d]", i),
				Message: err.Error(),
			}
		}
		if prev, dup := seen[tool.Name]; dup {
			return &ValidationError{
				Field:   fmt.Sprintf("tools[%d]", i),
				Message: fmt.Sprintf("duplicate entry for %q (first on line %d)", tool.Name, prev),
			}
		}
		seen[tool.Name] = tool.Line
		if len(tool.Post) > MaxPostLength {
			return &ValidationError{
				Field:   fmt.Sprintf("tools[%d].post", i),
				Message: fmt.Sprintf("post command too long (%d chars, max %d)", len(tool.Post), MaxPostLength),
			}
		}
	}

	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// toolNamePattern matches valid tool names.
var toolNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// validateToolName validates a tool name.
func validateToolName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("tool name too long (%d chars, max %d)", len(name), MaxNameLength)
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name: %q (lowercase letters, digits, '.', '_', '-')", name)
	}
	return nil
}
