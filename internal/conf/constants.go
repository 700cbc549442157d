package conf

import "time"

// Filenames inside <prefix>/etc/dev.
const (
	// ToolsFileName is the primary tool configuration file.
	ToolsFileName = "tools.conf"

	// OverlayFileName is the optional platform-conditional overlay.
	OverlayFileName = "tools.lua"
)

// Validation limits. Generous for real configs, tight enough to reject
// garbage input.
const (
	MaxToolCount   = 128
	MaxNameLength  = 64
	MaxPostLength  = 512
	MaxLineLength  = 1024
	MaxOverlaySize = 64 * 1024
)

// OverlayTimeout bounds tools.lua evaluation. Overlays are declarative;
// anything that runs this long is looping.
const OverlayTimeout = 5 * time.Second
