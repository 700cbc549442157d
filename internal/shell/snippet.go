package shell

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devup-sh/devup/internal/prefix"
)

// GenerateActivationCommand generates the one-liner users add to their
// rc file. The line evals `devup shell <shell>` so the exported snippet
// can change without touching the rc file again.
func GenerateActivationCommand(sh ShellType) (string, error) {
	if err := ValidateShell(sh); err != nil {
		return "", err
	}

	switch sh {
	case ShellBash, ShellZsh:
		return fmt.Sprintf(`eval "$(devup shell %s)"`, sh), nil
	case ShellFish:
		// Fish uses pipe to source
		return fmt.Sprintf("devup shell %s | source", sh), nil
	default:
		return "", &UnsupportedShellError{Shell: sh.String()}
	}
}

// SnippetOptions configures the generated activation snippet.
type SnippetOptions struct {
	// ToolInit holds extra per-tool init lines (zoxide, starship, ...),
	// already formatted for the target shell.
	ToolInit []string
}

// GenerateActivationSnippet emits the shell code that `devup shell`
// prints: DEVUP_PREFIX export, PATH prepend, and toolchain environment
// hooks, each guarded so the snippet stays safe before anything is
// installed.
func GenerateActivationSnippet(sh ShellType, pfx *prefix.Prefix, opts SnippetOptions) (string, error) {
	if err := ValidateShell(sh); err != nil {
		return "", err
	}

	binDir := pfx.BinDir()
	tcDir := pfx.ToolchainDir()

	var sb strings.Builder
	switch sh {
	case ShellBash, ShellZsh:
		fmt.Fprintf(&sb, "export %s=%q\n", EnvDevupPrefix, pfx.Root)
		fmt.Fprintf(&sb, "case \":$PATH:\" in\n  *\":%s:\"*) ;;\n  *) export PATH=%q:\"$PATH\" ;;\nesac\n", binDir, binDir)

		cargoEnv := filepath.Join(tcDir, "rust", "cargo", "env")
		fmt.Fprintf(&sb, "[ -f %q ] && . %q\n", cargoEnv, cargoEnv)

		rubyBindir := filepath.Join(tcDir, "ruby", "bindir")
		fmt.Fprintf(&sb, "[ -f %q ] && export PATH=\"$(cat %q):$PATH\"\n", rubyBindir, rubyBindir)

		conda := filepath.Join(tcDir, "conda", "bin", "conda")
		fmt.Fprintf(&sb, "[ -x %q ] && eval \"$(%q shell.%s hook)\"\n", conda, conda, sh)
	case ShellFish:
		fmt.Fprintf(&sb, "set -gx %s %q\n", EnvDevupPrefix, pfx.Root)
		fmt.Fprintf(&sb, "fish_add_path --prepend --move %q\n", binDir)

		cargoEnv := filepath.Join(tcDir, "rust", "cargo", "env.fish")
		fmt.Fprintf(&sb, "test -f %q; and source %q\n", cargoEnv, cargoEnv)

		rubyBindir := filepath.Join(tcDir, "ruby", "bindir")
		fmt.Fprintf(&sb, "test -f %q; and fish_add_path (cat %q)\n", rubyBindir, rubyBindir)

		conda := filepath.Join(tcDir, "conda", "bin", "conda")
		fmt.Fprintf(&sb, "test -x %q; and %q shell.fish hook | source\n", conda, conda)
	}

	for _, line := range opts.ToolInit {
		if line == "" {
			continue
		}
		sb.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}
