package platform

import (
	"fmt"
	"os/exec"
	"strings"
)

// defaultLookPath is the production PATH probe.
func defaultLookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// familyMap maps distribution identifiers to their canonical family names.
// Both gopsutil family strings and distro IDs appear here, because some
// distros report themselves as their own family.
var familyMap = map[string]string{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"mint":      FamilyDebian,
	"raspbian":  FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"fedora":    FamilyFedora,
	"suse":      FamilySUSE,
	"opensuse":  FamilySUSE,
	"sles":      FamilySUSE,
	"arch":      FamilyArch,
	"manjaro":   FamilyArch,
	"alpine":    FamilyAlpine,
	"gentoo":    FamilyGentoo,
}

// normalizeArch converts GOARCH values to normalized architecture names.
// Only amd64 and arm64 hosts are supported.
func normalizeArch(arch string) (string, error) {
	switch arch {
	case "amd64", "x86_64":
		return "amd64", nil
	case "arm64", "aarch64":
		return "arm64", nil
	default:
		return "", fmt.Errorf("unsupported architecture: %s (supported: amd64, arm64)", arch)
	}
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps a distribution family string to a canonical family name.
// The distro ID is consulted as a fallback when the family string is not
// recognized.
func mapFamily(family, distroID string) string {
	if canonical, ok := familyMap[normalizePlatform(family)]; ok {
		return canonical
	}
	if canonical, ok := familyMap[normalizePlatform(distroID)]; ok {
		return canonical
	}
	return FamilyUnknown
}
