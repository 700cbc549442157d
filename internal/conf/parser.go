package conf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseError represents a tools.conf parsing error with position info.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tools.conf line %d: %s", e.Line, e.Message)
}

// ParseFile parses a tools.conf file from disk.
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses tools.conf content.
//
// Comment lines (#) and blank lines are ignored. An unknown mode falls
// back to stable and is recorded as a warning rather than failing the
// whole file, so one bad entry cannot block provisioning of the rest.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, MaxLineLength), MaxLineLength)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		// Credential-shaped content is warned about wherever it appears,
		// comments included: the file may be group-readable.
		for _, f := range DetectSensitiveData(scanner.Text()) {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("line %d looks like a %s (%s); move it to an environment variable", lineNo, f.Pattern, f.Excerpt))
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tool, warns, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		cfg.Warnings = append(cfg.Warnings, warns...)
		cfg.Tools = append(cfg.Tools, tool)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tools.conf: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseLine parses a single NAME=MODE[, FLAG...][, post="CMD"] entry.
func parseLine(line string, lineNo int) (Tool, []string, error) {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return Tool{}, nil, &ParseError{Line: lineNo, Message: "expected NAME=MODE"}
	}

	name := strings.TrimSpace(line[:eq])
	if err := validateToolName(name); err != nil {
		return Tool{}, nil, &ParseError{Line: lineNo, Message: err.Error()}
	}

	fields := splitFields(line[eq+1:])
	if len(fields) == 0 || fields[0] == "" {
		return Tool{}, nil, &ParseError{Line: lineNo, Message: "missing mode"}
	}

	var warnings []string
	mode, ok := ParseMode(fields[0])
	if !ok {
		warnings = append(warnings, fmt.Sprintf(
			"line %d: unknown mode %q for %s, using %s", lineNo, fields[0], name, ModeStable))
	}

	tool := Tool{Name: name, Mode: mode, Line: lineNo}
	for _, field := range fields[1:] {
		if field == "" {
			continue
		}
		if value, isPost := strings.CutPrefix(field, "post="); isPost {
			post, err := unquote(value)
			if err != nil {
				return Tool{}, nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("bad post command: %v", err)}
			}
			tool.Post = post
			continue
		}
		if strings.ContainsAny(field, `"=`) {
			return Tool{}, nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("bad flag %q", field)}
		}
		tool.Flags = append(tool.Flags, field)
	}

	return tool, warnings, nil
}

// splitFields splits a comma-separated field list, honoring double quotes
// so post="a, b" stays a single field. Fields come back trimmed.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ',' && !inQuote:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, strings.TrimSpace(cur.String()))
	}
	return fields
}

// unquote strips the surrounding double quotes from a post="..." value.
func unquote(s string) (string, error) {
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", fmt.Errorf("value must be double-quoted, got %q", s)
	}
	inner := s[1 : len(s)-1]
	if strings.Contains(inner, `"`) {
		return "", fmt.Errorf("embedded quotes are not supported")
	}
	return inner, nil
}
