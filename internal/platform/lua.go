package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable creates a read-only platform table and installs it
// into the Lua state as the global "platform". Overlay files consult it to
// select tools per OS, architecture, and distro family. Call this before
// loading any user code.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	t := L.NewTable()

	L.SetField(t, "os", lua.LString(info.OS))
	L.SetField(t, "arch", lua.LString(info.Arch))
	L.SetField(t, "arch_raw", lua.LString(info.ArchRaw))
	L.SetField(t, "pkg_manager", lua.LString(info.PackageManager))
	L.SetField(t, "admin_group", lua.LString(info.AdminGroup))

	L.SetField(t, "is_linux", lua.LBool(info.IsLinux()))
	L.SetField(t, "is_macos", lua.LBool(info.IsMacOS()))

	L.SetField(t, "is_amd64", lua.LBool(info.IsAMD64()))
	L.SetField(t, "is_arm64", lua.LBool(info.IsARM64()))
	L.SetField(t, "is_apple_silicon", lua.LBool(info.IsAppleSilicon()))

	distro := info.GetDistro()
	if distro != nil {
		dt := L.NewTable()
		L.SetField(dt, "id", lua.LString(distro.ID))
		L.SetField(dt, "family", lua.LString(distro.Family))
		L.SetField(dt, "version", lua.LString(distro.Version))
		L.SetField(t, "distro", dt)
	} else {
		L.SetField(t, "distro", lua.LNil)
	}

	L.SetField(t, "is_debian_family", lua.LBool(info.IsDebianFamily()))
	L.SetField(t, "is_rhel_family", lua.LBool(info.IsRHELFamily()))
	L.SetField(t, "is_fedora_family", lua.LBool(info.IsFedoraFamily()))
	L.SetField(t, "is_suse_family", lua.LBool(info.IsSUSEFamily()))
	L.SetField(t, "is_arch_family", lua.LBool(info.IsArchFamily()))
	L.SetField(t, "is_alpine", lua.LBool(info.IsAlpine()))

	// Helper: when(condition, value) returns value if condition holds,
	// nil otherwise. Lets overlays write terse conditional entries.
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(t, "when", whenFunc)

	L.SetGlobal("platform", makeReadOnly(L, t))
	return nil
}

// makeReadOnly wraps a table in a proxy whose metatable redirects reads to
// the original table and rejects every write, including metatable swaps.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
