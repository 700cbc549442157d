package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func testInfo() *Info {
	return &Info{
		OS:             "linux",
		Arch:           "amd64",
		ArchRaw:        "amd64",
		Platform:       "ubuntu",
		Family:         FamilyDebian,
		Version:        "24.04",
		PackageManager: PkgApt,
		AdminGroup:     "sudo",
	}
}

func TestInjectPlatformTableFields(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, testInfo()); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	script := `
		result = platform.os .. "/" .. platform.arch .. "/" .. platform.pkg_manager
		family = platform.distro.family
		deb = platform.is_debian_family
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("script failed: %v", err)
	}

	if got := L.GetGlobal("result").String(); got != "linux/amd64/apt-get" {
		t.Errorf("result = %q", got)
	}
	if got := L.GetGlobal("family").String(); got != FamilyDebian {
		t.Errorf("family = %q", got)
	}
	if L.GetGlobal("deb") != lua.LTrue {
		t.Error("is_debian_family should be true")
	}
}

func TestInjectPlatformTableNoDistro(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64", PackageManager: PkgBrew, AdminGroup: "admin"}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	if err := L.DoString(`is_nil = (platform.distro == nil)`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if L.GetGlobal("is_nil") != lua.LTrue {
		t.Error("distro should be nil on macOS")
	}
}

func TestPlatformTableIsReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, testInfo()); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	err := L.DoString(`platform.os = "hacked"`)
	if err == nil {
		t.Fatal("write to platform table should fail")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPlatformWhenHelper(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, testInfo()); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	script := `
		yes = platform.when(platform.is_linux, "tool-a")
		no = platform.when(platform.is_macos, "tool-b")
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if got := L.GetGlobal("yes").String(); got != "tool-a" {
		t.Errorf("when(true) = %q, want tool-a", got)
	}
	if L.GetGlobal("no") != lua.LNil {
		t.Error("when(false) should be nil")
	}
}
