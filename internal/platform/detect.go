package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform inspection.
type RealDetector struct {
	// lookPath is swappable for tests; defaults to exec.LookPath.
	lookPath func(file string) (string, error)
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{lookPath: defaultLookPath}
}

// Detect performs platform detection and returns platform information.
// It uses runtime.GOOS and runtime.GOARCH for OS and architecture,
// gopsutil for Linux distribution details, and PATH probing for the
// package manager.
//
// On Linux, if gopsutil fails to detect the distribution, distro fields
// stay empty and detection continues: OS/arch and a PATH-probed package
// manager are enough for most operations.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", err)
	}

	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
	}

	arch, err := normalizeArch(runtime.GOARCH)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}
	info.Arch = arch

	if runtime.GOOS == "linux" {
		plat, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			// Distro detection failed; fall through to PATH probing.
		} else {
			plat = normalizePlatform(plat)
			if plat != "" {
				info.Platform = plat
				info.Family = mapFamily(family, plat)
				info.Version = normalizePlatform(version)
			}
		}
	}

	info.PackageManager = d.resolvePackageManager(info)
	info.AdminGroup = resolveAdminGroup(info)

	return info, nil
}

// resolvePackageManager maps the distro family to its package manager and
// confirms the binary is actually present in PATH. When the family is
// unknown (or detection failed) every known manager is probed in order.
func (d *RealDetector) resolvePackageManager(info *Info) string {
	look := d.lookPath
	if look == nil {
		look = defaultLookPath
	}

	if info.OS == "darwin" {
		for _, pm := range []string{PkgBrew, PkgMacPorts} {
			if _, err := look(pm); err == nil {
				return pm
			}
		}
		return PkgNone
	}

	if info.OS != "linux" {
		return PkgNone
	}

	if preferred := managerForFamily(info.Family); preferred != PkgNone {
		if _, err := look(preferred); err == nil {
			return preferred
		}
	}

	// Family unknown or preferred manager missing: probe the full set.
	for _, pm := range []string{PkgApt, PkgDnf, PkgPacman, PkgZypper, PkgApk, PkgEmerge} {
		if _, err := look(pm); err == nil {
			return pm
		}
	}

	return PkgNone
}

// managerForFamily returns the canonical package manager for a distro family.
func managerForFamily(family string) string {
	switch family {
	case FamilyDebian:
		return PkgApt
	case FamilyRHEL, FamilyFedora:
		return PkgDnf
	case FamilyArch:
		return PkgPacman
	case FamilySUSE:
		return PkgZypper
	case FamilyAlpine:
		return PkgApk
	case FamilyGentoo:
		return PkgEmerge
	default:
		return PkgNone
	}
}

// resolveAdminGroup returns the group used for shared prefix ownership.
func resolveAdminGroup(info *Info) string {
	switch {
	case info.OS == "darwin":
		return "admin"
	case info.Family == FamilyDebian:
		return "sudo"
	default:
		return "wheel"
	}
}
