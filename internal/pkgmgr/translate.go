package pkgmgr

import "github.com/devup-sh/devup/internal/platform"

// translations maps canonical tool names to what each distro actually
// calls the package. Only divergent names are listed; everything else
// passes through unchanged.
var translations = map[string]map[string]string{
	platform.PkgApt: {
		"fd":         "fd-find",
		"bat":        "bat",
		"ripgrep":    "ripgrep",
		"neovim":     "neovim",
		"eza":        "eza",
		"gcc":        "build-essential",
		"pkg-config": "pkg-config",
	},
	platform.PkgDnf: {
		"fd":  "fd-find",
		"gcc": "gcc",
	},
	platform.PkgPacman: {
		"fd":  "fd",
		"gcc": "base-devel",
	},
	platform.PkgApk: {
		"gcc": "build-base",
	},
	platform.PkgBrew: {
		"gcc": "gcc",
	},
}

// Translate maps a canonical package name to the name the given manager
// uses. Unknown names pass through.
func Translate(manager, name string) string {
	if table, ok := translations[manager]; ok {
		if mapped, ok := table[name]; ok {
			return mapped
		}
	}
	return name
}

// Baseline is the build-prerequisite set installed during init. The
// canonical names run through Translate per manager.
var Baseline = []string{
	"git",
	"curl",
	"gcc",
	"make",
	"cmake",
	"pkg-config",
	"tar",
	"unzip",
}
