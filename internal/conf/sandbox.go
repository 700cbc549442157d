package conf

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM strips a Lua VM down to a declarative subset. Overlays must
// not execute commands, touch the filesystem, or load external code, so
// os, io, module loading, and debug are all removed. string, table, math,
// and the basic utilities (type, pairs, tostring, ...) remain available.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)

	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	L.SetGlobal("debug", lua.LNil)
}

// newSandboxedVM creates a Lua VM with the sandbox applied. This is the
// only way overlay code gets a VM.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
