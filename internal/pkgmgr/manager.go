// Package pkgmgr wraps the host OS package manager behind one interface.
// It backs the "managed" tool mode and the baseline package set installed
// during init. Dispatch follows the detected platform family; every
// invocation is an external command, run with sudo when the manager needs
// root and the process does not have it.
package pkgmgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/devup-sh/devup/internal/platform"
)

// Manager is the interface to a system package manager.
type Manager interface {
	// Name returns the manager binary name ("apt-get", "brew", ...).
	Name() string
	// Install installs packages. Already-installed packages are fine.
	Install(ctx context.Context, pkgs ...string) error
	// Upgrade upgrades the named packages to the repo's latest version.
	Upgrade(ctx context.Context, pkgs ...string) error
	// IsInstalled reports whether a package is present.
	IsInstalled(ctx context.Context, pkg string) (bool, error)
}

// ErrNoManager is returned when the platform has no usable package manager.
var ErrNoManager = fmt.Errorf("no supported package manager found")

// spec describes one package manager's command shapes.
type spec struct {
	name       string
	needsRoot  bool
	installCmd []string
	upgradeCmd []string
	queryCmd   []string
	env        []string
}

var specs = map[string]spec{
	platform.PkgApt: {
		name:       platform.PkgApt,
		needsRoot:  true,
		installCmd: []string{"apt-get", "install", "-y", "--no-install-recommends"},
		upgradeCmd: []string{"apt-get", "install", "-y", "--only-upgrade"},
		queryCmd:   []string{"dpkg", "-s"},
		env:        []string{"DEBIAN_FRONTEND=noninteractive"},
	},
	platform.PkgDnf: {
		name:       platform.PkgDnf,
		needsRoot:  true,
		installCmd: []string{"dnf", "install", "-y"},
		upgradeCmd: []string{"dnf", "upgrade", "-y"},
		queryCmd:   []string{"rpm", "-q"},
	},
	platform.PkgPacman: {
		name:       platform.PkgPacman,
		needsRoot:  true,
		installCmd: []string{"pacman", "-S", "--noconfirm", "--needed"},
		upgradeCmd: []string{"pacman", "-S", "--noconfirm"},
		queryCmd:   []string{"pacman", "-Qi"},
	},
	platform.PkgZypper: {
		name:       platform.PkgZypper,
		needsRoot:  true,
		installCmd: []string{"zypper", "--non-interactive", "install"},
		upgradeCmd: []string{"zypper", "--non-interactive", "update"},
		queryCmd:   []string{"rpm", "-q"},
	},
	platform.PkgApk: {
		name:       platform.PkgApk,
		needsRoot:  true,
		installCmd: []string{"apk", "add"},
		upgradeCmd: []string{"apk", "upgrade"},
		queryCmd:   []string{"apk", "info", "-e"},
	},
	platform.PkgBrew: {
		name:       platform.PkgBrew,
		needsRoot:  false,
		installCmd: []string{"brew", "install"},
		upgradeCmd: []string{"brew", "upgrade"},
		queryCmd:   []string{"brew", "list", "--versions"},
	},
	platform.PkgMacPorts: {
		name:       platform.PkgMacPorts,
		needsRoot:  true,
		installCmd: []string{"port", "-N", "install"},
		upgradeCmd: []string{"port", "-N", "upgrade"},
		queryCmd:   []string{"port", "installed"},
	},
}

// For returns the Manager for the detected platform.
func For(info *platform.Info) (Manager, error) {
	if info == nil || !info.HasPackageManager() {
		return nil, ErrNoManager
	}
	s, ok := specs[info.PackageManager]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoManager, info.PackageManager)
	}
	return &cmdManager{spec: s, run: runCommand}, nil
}

// runFunc executes a command and returns its combined output.
// Swappable for tests.
type runFunc func(ctx context.Context, env []string, argv ...string) ([]byte, error)

// cmdManager implements Manager by shelling out.
type cmdManager struct {
	spec spec
	run  runFunc
}

func (m *cmdManager) Name() string { return m.spec.name }

func (m *cmdManager) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	argv := m.privileged(append(append([]string{}, m.spec.installCmd...), m.translateAll(pkgs)...))
	if _, err := m.run(ctx, m.spec.env, argv...); err != nil {
		return fmt.Errorf("%s install %s: %w", m.spec.name, strings.Join(pkgs, " "), err)
	}
	return nil
}

func (m *cmdManager) Upgrade(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	argv := m.privileged(append(append([]string{}, m.spec.upgradeCmd...), m.translateAll(pkgs)...))
	if _, err := m.run(ctx, m.spec.env, argv...); err != nil {
		return fmt.Errorf("%s upgrade %s: %w", m.spec.name, strings.Join(pkgs, " "), err)
	}
	return nil
}

func (m *cmdManager) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	argv := append(append([]string{}, m.spec.queryCmd...), Translate(m.spec.name, pkg))
	if _, err := m.run(ctx, nil, argv...); err != nil {
		// Query commands exit nonzero for missing packages.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// privileged prepends sudo when the manager needs root and we are not
// root. When sudo is missing the bare command is returned; the failure
// surfaces from the manager itself and the orchestrator downgrades it to
// a warning.
func (m *cmdManager) privileged(argv []string) []string {
	if !m.spec.needsRoot || os.Geteuid() == 0 {
		return argv
	}
	if _, err := exec.LookPath("sudo"); err != nil {
		return argv
	}
	return append([]string{"sudo", "-n"}, argv...)
}

func (m *cmdManager) translateAll(pkgs []string) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = Translate(m.spec.name, p)
	}
	return out
}

// runCommand is the production runFunc. The error carries a tail of the
// command output so failures are diagnosable without rerunning.
func runCommand(ctx context.Context, env []string, argv ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.Bytes(), fmt.Errorf("%s: %w (%s)", argv[0], err, outputTail(buf.Bytes()))
	}
	return buf.Bytes(), nil
}

// outputTail returns the last few lines of command output for error
// messages.
func outputTail(out []byte) string {
	const maxTail = 400
	s := strings.TrimSpace(string(out))
	if len(s) > maxTail {
		s = "..." + s[len(s)-maxTail:]
	}
	if s == "" {
		return "no output"
	}
	return s
}
