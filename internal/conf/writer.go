package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileHeader = `# devup tool configuration.
# One tool per line: NAME=MODE[, FLAG...][, post="CMD"]
# Modes: stable (latest release), head (default branch tip),
#        managed (OS package manager), none (skip).
`

// FormatTool renders a single tools.conf line.
func FormatTool(t Tool) string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteString("=")
	b.WriteString(t.Mode.String())
	for _, flag := range t.Flags {
		b.WriteString(", ")
		b.WriteString(flag)
	}
	if t.Post != "" {
		fmt.Fprintf(&b, `, post=%q`, t.Post)
	}
	return b.String()
}

// Format renders a full tools.conf file from a Config.
func Format(cfg *Config) string {
	var b strings.Builder
	b.WriteString(fileHeader)
	b.WriteString("\n")
	for _, t := range cfg.Tools {
		b.WriteString(FormatTool(t))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteFile writes tools.conf content atomically via tmp-file rename.
func WriteFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ToolsFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// SetTool updates or appends a tool entry in tools.conf, preserving
// comments and the order of unrelated lines. A missing file is created
// with the standard header.
func SetTool(path string, tool Tool) error {
	if err := validateToolName(tool.Name); err != nil {
		return err
	}
	if !tool.Mode.IsValid() {
		return fmt.Errorf("invalid mode %q", tool.Mode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		data = []byte(fileHeader + "\n")
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	replaced := false
	for i, line := range lines {
		if entryName(line) == tool.Name {
			lines[i] = FormatTool(tool)
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, FormatTool(tool))
	}

	return WriteFile(path, strings.Join(lines, "\n")+"\n")
}

// RemoveTool removes a tool entry from tools.conf. Returns false when no
// entry matched.
func RemoveTool(path, name string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if entryName(line) == name {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}

	return true, WriteFile(path, strings.Join(kept, "\n")+"\n")
}

// entryName extracts the tool name from a tools.conf line, or "" for
// comments, blanks, and malformed lines.
func entryName(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	eq := strings.Index(trimmed, "=")
	if eq < 0 {
		return ""
	}
	return strings.TrimSpace(trimmed[:eq])
}
