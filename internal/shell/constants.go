package shell

// Environment variable names exported by the activation snippet
const (
	// EnvDevupPrefix points at the managed prefix root
	EnvDevupPrefix = "DEVUP_PREFIX"
)

// Activation and backup markers
const (
	// ActivationMarker is the string that must appear in activation commands
	ActivationMarker = "devup shell"

	// BackupSuffix is the marker in timestamped backup file names
	BackupSuffix = ".devup-backup"
)
