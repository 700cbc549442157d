package buildsrc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/devup-sh/devup/internal/logging"
)

// System identifies how a source tree is built.
type System int

const (
	// SystemUnknown means no recognized build files were found.
	SystemUnknown System = iota
	// SystemCargo builds with cargo (Cargo.toml present).
	SystemCargo
	// SystemGo builds with the go tool (go.mod present).
	SystemGo
	// SystemCMake builds with cmake (CMakeLists.txt present).
	SystemCMake
	// SystemAutotools builds with autogen/configure then make.
	SystemAutotools
	// SystemMake builds with a plain Makefile.
	SystemMake
)

// String returns the build system name.
func (s System) String() string {
	switch s {
	case SystemCargo:
		return "cargo"
	case SystemGo:
		return "go"
	case SystemCMake:
		return "cmake"
	case SystemAutotools:
		return "autotools"
	case SystemMake:
		return "make"
	default:
		return "unknown"
	}
}

// DetectSystem inspects a source tree and picks its build system.
// Cargo and Go manifests win over a Makefile the project also ships.
func DetectSystem(dir string) System {
	checks := []struct {
		file   string
		system System
	}{
		{"Cargo.toml", SystemCargo},
		{"go.mod", SystemGo},
		{"CMakeLists.txt", SystemCMake},
		{"autogen.sh", SystemAutotools},
		{"configure", SystemAutotools},
		{"Makefile", SystemMake},
		{"GNUmakefile", SystemMake},
	}
	for _, check := range checks {
		if _, err := os.Stat(filepath.Join(dir, check.file)); err == nil {
			return check.system
		}
	}
	return SystemUnknown
}

// Builder runs builds inside source cache checkouts.
type Builder struct {
	jobs   int
	binDir string
	// runCommand is swappable for tests.
	runCommand func(ctx context.Context, dir string, env []string, name string, args ...string) error
}

// NewBuilder creates a builder using the given parallelism. binDir is
// put on PATH for build and post commands so tools installed earlier in
// a run (cargo, go) are visible to later builds; empty leaves PATH
// alone.
func NewBuilder(jobs int, binDir string) *Builder {
	if jobs < 1 {
		jobs = 1
	}
	b := &Builder{jobs: jobs, binDir: binDir}
	b.runCommand = b.execCommand
	return b
}

// Build compiles the source tree at dir with the detected (or given)
// build system. It returns the path the built binary is expected at,
// relative to dir.
func (b *Builder) Build(ctx context.Context, dir, binName string, system System) (string, error) {
	logger := logging.GetLogger("buildsrc")
	if system == SystemUnknown {
		system = DetectSystem(dir)
	}
	logger.Info().Str("dir", dir).Str("system", system.String()).Int("jobs", b.jobs).Msg("building from source")

	env := b.buildEnv()

	switch system {
	case SystemCargo:
		if err := b.runCommand(ctx, dir, env, "cargo", "build", "--release", "--locked"); err != nil {
			return "", fmt.Errorf("cargo build: %w", err)
		}
		return filepath.Join("target", "release", binName), nil

	case SystemGo:
		if err := os.MkdirAll(filepath.Join(dir, "out"), 0755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
		out := filepath.Join("out", binName)
		if err := b.runCommand(ctx, dir, env, "go", "build", "-trimpath", "-o", out, "."); err != nil {
			return "", fmt.Errorf("go build: %w", err)
		}
		return out, nil

	case SystemCMake:
		buildDir := filepath.Join(dir, "build")
		if err := os.MkdirAll(buildDir, 0755); err != nil {
			return "", fmt.Errorf("create build dir: %w", err)
		}
		if err := b.runCommand(ctx, dir, env, "cmake", "-S", ".", "-B", "build", "-DCMAKE_BUILD_TYPE=Release"); err != nil {
			return "", fmt.Errorf("cmake configure: %w", err)
		}
		if err := b.runCommand(ctx, dir, env, "cmake", "--build", "build", fmt.Sprintf("-j%d", b.jobs)); err != nil {
			return "", fmt.Errorf("cmake build: %w", err)
		}
		return filepath.Join("build", binName), nil

	case SystemAutotools:
		if _, err := os.Stat(filepath.Join(dir, "configure")); err != nil {
			if err := b.runCommand(ctx, dir, env, "sh", "autogen.sh"); err != nil {
				return "", fmt.Errorf("autogen: %w", err)
			}
		}
		if err := b.runCommand(ctx, dir, env, "sh", "configure"); err != nil {
			return "", fmt.Errorf("configure: %w", err)
		}
		if err := b.runCommand(ctx, dir, env, "make", fmt.Sprintf("-j%d", b.jobs)); err != nil {
			return "", fmt.Errorf("make: %w", err)
		}
		return binName, nil

	case SystemMake:
		if err := b.runCommand(ctx, dir, env, "make", fmt.Sprintf("-j%d", b.jobs)); err != nil {
			return "", fmt.Errorf("make: %w", err)
		}
		return binName, nil

	default:
		return "", fmt.Errorf("no recognized build system in %s", dir)
	}
}

// RunCustom executes an arbitrary build or post-install command line
// through the shell inside dir.
func (b *Builder) RunCustom(ctx context.Context, dir, commandLine string) error {
	if strings.TrimSpace(commandLine) == "" {
		return nil
	}
	if err := b.runCommand(ctx, dir, b.buildEnv(), "sh", "-c", commandLine); err != nil {
		return fmt.Errorf("run %q: %w", commandLine, err)
	}
	return nil
}

// buildEnv extends the process environment with the prefix bin
// directory on PATH and parallelism knobs the common build tools
// understand.
func (b *Builder) buildEnv() []string {
	env := os.Environ()
	if b.binDir != "" {
		env = append(env, "PATH="+b.binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	env = append(env,
		fmt.Sprintf("MAKEFLAGS=-j%d", b.jobs),
		fmt.Sprintf("CARGO_BUILD_JOBS=%d", b.jobs),
	)
	return env
}

func (b *Builder) execCommand(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, outputTail(string(out)))
	}
	return nil
}

// InstallBinary copies a built binary into destDir under its final
// name, writing through a temp file so a crash never leaves a half
// binary on PATH.
func InstallBinary(builtPath, destDir, name string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}

	destPath := filepath.Join(destDir, name)
	tmpPath := destPath + ".tmp"

	data, err := os.ReadFile(builtPath)
	if err != nil {
		return "", fmt.Errorf("read built binary: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0755); err != nil {
		return "", fmt.Errorf("write binary: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename binary: %w", err)
	}
	return destPath, nil
}

// outputTail keeps the last part of a build log for error messages.
func outputTail(out string) string {
	const maxLen = 400
	out = strings.TrimSpace(out)
	if out == "" {
		return "no output"
	}
	if len(out) > maxLen {
		out = "..." + out[len(out)-maxLen:]
	}
	return out
}
