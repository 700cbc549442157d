package status

import (
	"strings"

	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/journal"
)

// Detect performs the three-way comparison.
//
// The algorithm mirrors a drift check: build lookup maps, walk the
// configured tools classifying each, then report journal entries for
// tools that are no longer configured as extras.
//
//   - cfg: tools.conf content (with overlay applied)
//   - recorded: latest successful journal record per tool
//   - active: binaries found on PATH
//   - binDir: the prefix bin directory, for override detection
//   - binaryName: maps a tool name to its executable name
func Detect(cfg *conf.Config, recorded map[string]journal.Record, active []ActiveTool, binDir string, binaryName func(string) string) []Result {
	activeMap := make(map[string]ActiveTool)
	for _, t := range active {
		activeMap[t.Name] = t
	}

	recordedLeft := make(map[string]journal.Record, len(recorded))
	for name, rec := range recorded {
		recordedLeft[name] = rec
	}

	var results []Result
	for _, tool := range cfg.Tools {
		result := Result{Tool: tool.Name, Mode: string(tool.Mode)}

		rec, hasRecord := recorded[tool.Name]
		if hasRecord {
			result.RecordedVersion = rec.Version
		}
		delete(recordedLeft, tool.Name)

		activeTool, hasActive := activeMap[binaryName(tool.Name)]
		if hasActive {
			result.ActiveVersion = activeTool.Version
			result.ActivePath = activeTool.Path
		}

		result.Kind = classify(tool, rec, hasRecord, activeTool, hasActive, binDir)
		results = append(results, result)
	}

	// Journal entries for tools no longer configured.
	for name, rec := range recordedLeft {
		results = append(results, Result{
			Tool:            name,
			Kind:            KindExtra,
			RecordedVersion: rec.Version,
			Mode:            rec.Mode,
		})
	}

	return results
}

// classify picks the status kind, first match wins.
func classify(tool conf.Tool, rec journal.Record, hasRecord bool, active ActiveTool, hasActive bool, binDir string) Kind {
	if tool.Mode == conf.ModeNone {
		return KindDisabled
	}
	if !hasRecord && !hasActive {
		return KindMissing
	}
	if hasRecord && !hasActive {
		return KindNotOnPath
	}

	// Managed tools legitimately live outside the prefix.
	if tool.Mode != conf.ModeManaged && !strings.HasPrefix(active.Path, binDir) {
		return KindExternalOverride
	}

	if active.Version == "unknown" {
		return KindVersionUnknown
	}

	if hasRecord && rec.Version != "" && rec.Version != "head" {
		want, errWant := ExtractVersion(rec.Version)
		got, errGot := ExtractVersion(active.Version)
		if errWant == nil && errGot == nil && want != got {
			return KindVersionMismatch
		}
	}

	return KindOK
}
