package status

import (
	"fmt"
	"strings"
)

const reportRule = "─────────────────────────────────────────────────────"

// FormatReport renders status results for user display.
func FormatReport(results []Result) string {
	var sb strings.Builder
	sb.Grow(512 + len(results)*128)

	sb.WriteString(reportRule + "\n")
	sb.WriteString("TOOL STATUS\n")
	sb.WriteString(reportRule + "\n\n")

	counts := make(map[Kind]int)
	for _, r := range results {
		counts[r.Kind]++
	}

	for _, r := range results {
		if r.Kind == KindOK || r.Kind == KindDisabled {
			continue
		}
		sb.WriteString(formatEntry(r))
		sb.WriteString("\n")
	}

	if counts[KindOK] > 0 {
		sb.WriteString(fmt.Sprintf("[OK]\n  %d tools as configured\n\n", counts[KindOK]))
	}
	if counts[KindDisabled] > 0 {
		sb.WriteString(fmt.Sprintf("[DISABLED]\n  %d tools set to none\n\n", counts[KindDisabled]))
	}

	sb.WriteString(reportRule + "\n")

	problems := len(results) - counts[KindOK] - counts[KindDisabled]
	if problems == 0 {
		sb.WriteString("SUMMARY: everything as configured\n")
	} else {
		sb.WriteString(fmt.Sprintf("SUMMARY: %d tools need attention\n", problems))
		sb.WriteString("  " + summaryParts(counts) + "\n")
	}
	sb.WriteString(reportRule + "\n")

	return sb.String()
}

// FormatDetailedReport renders every result, healthy tools included,
// with the recorded and active versions and paths.
func FormatDetailedReport(results []Result) string {
	var sb strings.Builder
	sb.Grow(512 + len(results)*192)

	sb.WriteString(reportRule + "\n")
	sb.WriteString("TOOL STATUS\n")
	sb.WriteString(reportRule + "\n\n")

	counts := make(map[Kind]int)
	for _, r := range results {
		counts[r.Kind]++

		sb.WriteString(fmt.Sprintf("[%s] %s (%s)\n", r.Kind, r.Tool, r.Mode))
		if r.RecordedVersion != "" {
			sb.WriteString(fmt.Sprintf("  recorded: %s\n", r.RecordedVersion))
		}
		if r.ActiveVersion != "" {
			sb.WriteString(fmt.Sprintf("  active:   %s\n", r.ActiveVersion))
		}
		if r.ActivePath != "" {
			sb.WriteString(fmt.Sprintf("  path:     %s\n", r.ActivePath))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(reportRule + "\n")
	problems := len(results) - counts[KindOK] - counts[KindDisabled]
	if problems == 0 {
		sb.WriteString("SUMMARY: everything as configured\n")
	} else {
		sb.WriteString(fmt.Sprintf("SUMMARY: %d tools need attention\n", problems))
		sb.WriteString("  " + summaryParts(counts) + "\n")
	}
	sb.WriteString(reportRule + "\n")

	return sb.String()
}

func summaryParts(counts map[Kind]int) string {
	order := []Kind{KindMissing, KindNotOnPath, KindExternalOverride, KindVersionMismatch, KindVersionUnknown, KindExtra}
	labels := map[Kind]string{
		KindMissing:          "missing",
		KindNotOnPath:        "not on PATH",
		KindExternalOverride: "external override",
		KindVersionMismatch:  "version mismatch",
		KindVersionUnknown:   "version unknown",
		KindExtra:            "no longer configured",
	}

	var parts []string
	for _, kind := range order {
		if counts[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[kind], labels[kind]))
		}
	}
	return strings.Join(parts, ", ")
}

func formatEntry(r Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s\n", r.Kind, r.Tool))

	switch r.Kind {
	case KindMissing:
		sb.WriteString(fmt.Sprintf("  configured %s but never installed\n", r.Mode))
	case KindNotOnPath:
		sb.WriteString(fmt.Sprintf("  journal has %s but the binary is not on PATH\n", r.RecordedVersion))
	case KindExternalOverride:
		sb.WriteString(fmt.Sprintf("  PATH resolves to %s, outside the managed prefix\n", r.ActivePath))
	case KindVersionMismatch:
		sb.WriteString(fmt.Sprintf("  journal: %s, active: %s\n", r.RecordedVersion, r.ActiveVersion))
	case KindVersionUnknown:
		sb.WriteString(fmt.Sprintf("  %s did not report a parseable version\n", r.ActivePath))
	case KindExtra:
		sb.WriteString(fmt.Sprintf("  installed as %s but no longer in tools.conf\n", r.RecordedVersion))
	}
	return sb.String()
}
