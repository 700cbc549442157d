package conf

import (
	"fmt"
	"regexp"
	"strings"
)

// SensitiveDataFinding describes a possible credential found in
// configuration content.
type SensitiveDataFinding struct {
	Line    int
	Pattern string
	Excerpt string
}

// sensitivePatterns are checked against configuration content before it is
// written or displayed. Tokens belong in the environment, not in files the
// prefix shares between users.
var sensitivePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"github token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`)},
	{"private key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"aws access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"bearer token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{20,}`)},
	{"password assignment", regexp.MustCompile(`(?i)(password|passwd|secret)\s*=\s*"[^"]{4,}"`)},
}

// DetectSensitiveData scans configuration content for credential-shaped
// strings and returns a finding per hit.
func DetectSensitiveData(content string) []SensitiveDataFinding {
	var findings []SensitiveDataFinding
	for i, line := range strings.Split(content, "\n") {
		for _, p := range sensitivePatterns {
			if p.re.MatchString(line) {
				findings = append(findings, SensitiveDataFinding{
					Line:    i + 1,
					Pattern: p.name,
					Excerpt: redactValue(line),
				})
			}
		}
	}
	return findings
}

// redactValue masks everything after an assignment so findings can be
// shown without echoing the credential.
func redactValue(line string) string {
	if eq := strings.Index(line, "="); eq >= 0 {
		return strings.TrimSpace(line[:eq]) + "=<redacted>"
	}
	return "<redacted>"
}

// FormatSensitiveDataWarning renders findings for terminal display.
func FormatSensitiveDataWarning(findings []SensitiveDataFinding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Warning: possible credentials in configuration:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "  line %d: %s (%s)\n", f.Line, f.Pattern, f.Excerpt)
	}
	b.WriteString("Move secrets to environment variables; prefix config files may be group-readable.\n")
	return b.String()
}
