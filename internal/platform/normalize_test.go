package platform

import "testing"

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		name    string
		arch    string
		want    string
		wantErr bool
	}{
		{name: "amd64", arch: "amd64", want: "amd64"},
		{name: "x86_64 alias", arch: "x86_64", want: "amd64"},
		{name: "arm64", arch: "arm64", want: "arm64"},
		{name: "aarch64 alias", arch: "aarch64", want: "arm64"},
		{name: "unsupported 386", arch: "386", wantErr: true},
		{name: "unsupported riscv64", arch: "riscv64", wantErr: true},
		{name: "empty", arch: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeArch(tt.arch)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeArch(%q) expected error, got %q", tt.arch, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeArch(%q) unexpected error: %v", tt.arch, err)
			}
			if got != tt.want {
				t.Errorf("normalizeArch(%q) = %q, want %q", tt.arch, got, tt.want)
			}
		})
	}
}

func TestMapFamily(t *testing.T) {
	tests := []struct {
		name     string
		family   string
		distroID string
		want     string
	}{
		{name: "debian family", family: "debian", distroID: "debian", want: FamilyDebian},
		{name: "ubuntu reports itself as family", family: "ubuntu", distroID: "ubuntu", want: FamilyDebian},
		{name: "rhel", family: "rhel", distroID: "rocky", want: FamilyRHEL},
		{name: "fedora", family: "fedora", distroID: "fedora", want: FamilyFedora},
		{name: "suse variants", family: "opensuse", distroID: "opensuse-tumbleweed", want: FamilySUSE},
		{name: "arch via distro id fallback", family: "", distroID: "arch", want: FamilyArch},
		{name: "manjaro maps to arch", family: "manjaro", distroID: "manjaro", want: FamilyArch},
		{name: "alpine", family: "alpine", distroID: "alpine", want: FamilyAlpine},
		{name: "whitespace and case", family: "  Debian  ", distroID: "debian", want: FamilyDebian},
		{name: "unknown", family: "haiku", distroID: "haiku", want: FamilyUnknown},
		{name: "empty", family: "", distroID: "", want: FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapFamily(tt.family, tt.distroID); got != tt.want {
				t.Errorf("mapFamily(%q, %q) = %q, want %q", tt.family, tt.distroID, got, tt.want)
			}
		})
	}
}

func TestNormalizePlatform(t *testing.T) {
	if got := normalizePlatform("  Ubuntu "); got != "ubuntu" {
		t.Errorf("normalizePlatform = %q, want %q", got, "ubuntu")
	}
}
