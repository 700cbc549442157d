package conf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devup-sh/devup/internal/platform"
)

// Load reads tools.conf from etcDir and applies the tools.lua overlay when
// present. This is the entry point the CLI uses.
func Load(ctx context.Context, etcDir string, info *platform.Info) (*Config, error) {
	cfg, err := ParseFile(filepath.Join(etcDir, ToolsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no %s in %s (run 'devup init' first)", ToolsFileName, etcDir)
		}
		return nil, err
	}

	overlay, err := LoadOverlay(ctx, filepath.Join(etcDir, OverlayFileName), info)
	if err != nil {
		return nil, err
	}
	return overlay.Apply(cfg)
}
