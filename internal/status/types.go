// Package status compares three sources of truth: the configured tool
// set, what the journal says was installed, and what is actually
// reachable on PATH.
package status

// Kind classifies one tool's status.
type Kind int

const (
	KindOK Kind = iota
	KindMissing
	KindNotOnPath
	KindExternalOverride
	KindVersionMismatch
	KindVersionUnknown
	KindDisabled
	KindExtra
)

// String returns a human-readable status name.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindMissing:
		return "MISSING"
	case KindNotOnPath:
		return "NOT_ON_PATH"
	case KindExternalOverride:
		return "EXTERNAL_OVERRIDE"
	case KindVersionMismatch:
		return "VERSION_MISMATCH"
	case KindVersionUnknown:
		return "VERSION_UNKNOWN"
	case KindDisabled:
		return "DISABLED"
	case KindExtra:
		return "EXTRA"
	default:
		return "UNKNOWN"
	}
}

// ActiveTool is a binary found on PATH.
type ActiveTool struct {
	Name    string
	Version string
	Path    string
}

// Result is the status of a single tool.
type Result struct {
	Tool            string
	Kind            Kind
	Mode            string
	RecordedVersion string
	ActiveVersion   string
	ActivePath      string
}
