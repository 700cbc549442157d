package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rubyToolchain relies on the package manager for the interpreter and
// records where gems put their executables so shell activation can add
// it to PATH.
type rubyToolchain struct {
	m *Manager
}

func (r *rubyToolchain) Name() string { return "ruby" }

func (r *rubyToolchain) Detect(ctx context.Context) (bool, string) {
	if _, err := os.Stat(r.bindirFile()); err != nil {
		return false, ""
	}
	out, err := r.m.runOutput(ctx, "ruby", "--version")
	if err != nil {
		return true, ""
	}
	return true, strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
}

func (r *rubyToolchain) Install(ctx context.Context, opts Options) error {
	if installed, _ := r.Detect(ctx); installed && !opts.Force {
		return nil
	}

	if _, err := r.m.lookPath("ruby"); err != nil {
		if r.m.pm == nil {
			return fmt.Errorf("ruby not found and no package manager available")
		}
		if err := r.m.pm.Install(ctx, "ruby"); err != nil {
			return fmt.Errorf("install ruby: %w", err)
		}
	}

	bindir, err := r.gemBindir(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.m.root("ruby"), 0755); err != nil {
		return fmt.Errorf("create toolchain dir: %w", err)
	}
	if err := os.WriteFile(r.bindirFile(), []byte(bindir+"\n"), 0644); err != nil {
		return fmt.Errorf("record gem bindir: %w", err)
	}
	return nil
}

// bindirFile holds the gem executable directory for shell activation.
func (r *rubyToolchain) bindirFile() string {
	return filepath.Join(r.m.root("ruby"), "bindir")
}

// gemBindir parses `gem environment` for the executable directory.
func (r *rubyToolchain) gemBindir(ctx context.Context) (string, error) {
	out, err := r.m.runOutput(ctx, "gem", "environment")
	if err != nil {
		return "", fmt.Errorf("gem environment: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "- ")
		if rest, ok := strings.CutPrefix(line, "EXECUTABLE DIRECTORY: "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", fmt.Errorf("gem environment output has no executable directory")
}
