// Package platform provides host platform detection for devup: operating
// system, architecture, Linux distribution family, and the package manager
// and admin group that provisioning should use.
//
// Distribution details come from gopsutil. Detection degrades gracefully:
// when distro detection fails, OS/arch information is still returned, since
// most recipes only need distro data for package-manager dispatch.
package platform

import "context"

// Linux distribution family constants.
// These represent canonical family names for grouping related distributions.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Package manager identifiers resolved from the platform.
const (
	PkgApt      = "apt-get"
	PkgDnf      = "dnf"
	PkgPacman   = "pacman"
	PkgZypper   = "zypper"
	PkgApk      = "apk"
	PkgEmerge   = "emerge"
	PkgBrew     = "brew"
	PkgMacPorts = "port"
	PkgNone     = ""
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // "amd64", "arm64" (normalized)
	ArchRaw  string // original GOARCH value
	Platform string // distro ID (Linux only, e.g. "ubuntu", "arch")
	Family   string // canonical family (e.g. "debian", "rhel", "arch")
	Version  string // distro version (Linux only, e.g. "22.04")

	// PackageManager is the resolved package manager binary ("apt-get",
	// "dnf", "brew", ...) or empty when none was found.
	PackageManager string

	// AdminGroup is the group that owns shared prefix directories
	// ("sudo" on Debian-family systems, "wheel" elsewhere, "admin" on
	// macOS).
	AdminGroup string
}

// Distro contains Linux distribution information.
// This is nil on non-Linux platforms.
type Distro struct {
	ID      string // distro ID (e.g. "ubuntu")
	Family  string // canonical family (e.g. "debian")
	Version string // version (e.g. "22.04")
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != "linux" || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// IsDebianFamily returns true if the Linux distribution is Debian-based.
func (i *Info) IsDebianFamily() bool {
	return i.OS == "linux" && i.Family == FamilyDebian
}

// IsRHELFamily returns true if the Linux distribution is RHEL-based.
func (i *Info) IsRHELFamily() bool {
	return i.OS == "linux" && i.Family == FamilyRHEL
}

// IsFedoraFamily returns true if the Linux distribution is Fedora-based.
func (i *Info) IsFedoraFamily() bool {
	return i.OS == "linux" && i.Family == FamilyFedora
}

// IsSUSEFamily returns true if the Linux distribution is SUSE-based.
func (i *Info) IsSUSEFamily() bool {
	return i.OS == "linux" && i.Family == FamilySUSE
}

// IsArchFamily returns true if the Linux distribution is Arch-based.
func (i *Info) IsArchFamily() bool {
	return i.OS == "linux" && i.Family == FamilyArch
}

// IsAlpine returns true if the Linux distribution is Alpine.
func (i *Info) IsAlpine() bool {
	return i.OS == "linux" && i.Family == FamilyAlpine
}

// HasPackageManager returns true if a usable package manager was found.
func (i *Info) HasPackageManager() bool {
	return i.PackageManager != PkgNone
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
