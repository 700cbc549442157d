package conf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/devup-sh/devup/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Overlay is the platform-conditional adjustment produced by tools.lua.
// It is merged over the tools.conf baseline at load time.
type Overlay struct {
	// Add holds extra entries, in tools.conf line syntax.
	Add []Tool
	// Remove lists tool names to drop from the baseline.
	Remove []string
	// Override maps tool names to a replacement mode.
	Override map[string]Mode
}

// overlayTimeout is OverlayTimeout, overridable in tests.
var overlayTimeout = OverlayTimeout

// OverlayError represents an overlay evaluation error.
type OverlayError struct {
	Message string
	Detail  string
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// LoadOverlay evaluates a tools.lua file against the detected platform.
// A missing file yields a nil overlay and no error.
func LoadOverlay(ctx context.Context, path string, info *platform.Info) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxOverlaySize {
		return nil, &OverlayError{
			Message: "overlay too large",
			Detail:  fmt.Sprintf("%d bytes, max %d", len(data), MaxOverlaySize),
		}
	}
	return EvalOverlay(ctx, string(data), info)
}

// EvalOverlay evaluates overlay code in a sandboxed VM with the platform
// table injected. The overlay declares a global "devup" table:
//
//	devup = {
//	    add = { "zoxide=stable", platform.when(platform.is_linux, "valgrind=managed") },
//	    remove = { "conda" },
//	    override = { ripgrep = "managed" },
//	}
func EvalOverlay(ctx context.Context, code string, info *platform.Info) (*Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("overlay evaluation cancelled: %w", err)
	}

	// The caller's context may carry no deadline (install runs until
	// interrupted), so evaluation gets its own budget. gopher-lua checks
	// the context between instructions, which turns a `while true do end`
	// overlay into an error instead of a hang.
	ctx, cancel := context.WithTimeout(ctx, overlayTimeout)
	defer cancel()

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if info != nil {
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(code); err != nil {
		return nil, &OverlayError{Message: "Lua error in tools.lua", Detail: err.Error()}
	}

	return extractOverlay(L)
}

// extractOverlay pulls the devup table out of the Lua state.
func extractOverlay(L *lua.LState) (*Overlay, error) {
	top := L.GetGlobal("devup")
	if top.Type() != lua.LTTable {
		return nil, &OverlayError{
			Message: "missing or invalid 'devup' table",
			Detail:  fmt.Sprintf("expected table, got %s", top.Type()),
		}
	}
	table := top.(*lua.LTable)
	overlay := &Overlay{}

	if addVal := table.RawGetString("add"); addVal.Type() == lua.LTTable {
		var parseErr error
		addVal.(*lua.LTable).ForEach(func(_, value lua.LValue) {
			// Nil entries come from platform.when conditionals.
			if parseErr != nil || value.Type() != lua.LTString {
				return
			}
			tool, _, err := parseLine(value.String(), 0)
			if err != nil {
				parseErr = &OverlayError{Message: "bad add entry", Detail: err.Error()}
				return
			}
			overlay.Add = append(overlay.Add, tool)
		})
		if parseErr != nil {
			return nil, parseErr
		}
	}

	if remVal := table.RawGetString("remove"); remVal.Type() == lua.LTTable {
		remVal.(*lua.LTable).ForEach(func(_, value lua.LValue) {
			if value.Type() != lua.LTString {
				return
			}
			name := strings.TrimSpace(value.String())
			if name != "" {
				overlay.Remove = append(overlay.Remove, name)
			}
		})
	}

	if ovVal := table.RawGetString("override"); ovVal.Type() == lua.LTTable {
		var badMode error
		ovVal.(*lua.LTable).ForEach(func(key, value lua.LValue) {
			if badMode != nil || key.Type() != lua.LTString || value.Type() != lua.LTString {
				return
			}
			mode, ok := ParseMode(value.String())
			if !ok {
				badMode = &OverlayError{
					Message: "bad override",
					Detail:  fmt.Sprintf("unknown mode %q for %s", value.String(), key.String()),
				}
				return
			}
			if overlay.Override == nil {
				overlay.Override = make(map[string]Mode)
			}
			overlay.Override[key.String()] = mode
		})
		if badMode != nil {
			return nil, badMode
		}
	}

	return overlay, nil
}

// Apply merges the overlay into a baseline configuration and re-validates
// the result. Removes run first, then adds (replacing any baseline entry
// of the same name), then mode overrides.
func (o *Overlay) Apply(cfg *Config) (*Config, error) {
	if o == nil {
		return cfg, nil
	}

	merged := &Config{Warnings: cfg.Warnings}

	removed := make(map[string]bool, len(o.Remove))
	for _, name := range o.Remove {
		removed[name] = true
	}
	added := make(map[string]bool, len(o.Add))
	for _, t := range o.Add {
		added[t.Name] = true
	}

	for _, t := range cfg.Tools {
		if removed[t.Name] || added[t.Name] {
			continue
		}
		merged.Tools = append(merged.Tools, t)
	}
	for _, t := range o.Add {
		if removed[t.Name] {
			continue
		}
		merged.Tools = append(merged.Tools, t)
	}

	for i := range merged.Tools {
		if mode, ok := o.Override[merged.Tools[i].Name]; ok {
			merged.Tools[i].Mode = mode
		}
	}

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("overlay produced invalid config: %w", err)
	}
	return merged, nil
}
