package installer

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/devup-sh/devup/internal/journal"
)

// FormatSummary renders the per-tool outcomes as an aligned table.
func FormatSummary(records []journal.Record) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 2, 4, 2, ' ', 0)

	fmt.Fprintln(w, "TOOL\tMODE\tOUTCOME\tVERSION")
	for _, rec := range records {
		detail := rec.Version
		if rec.Outcome == journal.OutcomeFailed {
			detail = rec.Error
		} else if rec.Commit != "" {
			detail = fmt.Sprintf("%s (%s)", rec.Version, shortCommit(rec.Commit))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Tool, rec.Mode, rec.Outcome, detail)
	}
	w.Flush()

	failed := 0
	for _, rec := range records {
		if rec.Outcome == journal.OutcomeFailed {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(&sb, "\n%d of %d tools failed\n", failed, len(records))
	}
	return sb.String()
}

func shortCommit(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
