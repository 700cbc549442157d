// Package installer is the per-tool install/update engine. One engine
// drives every tool from a declarative recipe instead of a copy of the
// install logic per tool.
package installer

import (
	"fmt"
	"sort"

	"github.com/devup-sh/devup/internal/buildsrc"
	"github.com/devup-sh/devup/internal/verify"
)

// Recipe describes how one tool is obtained and built.
type Recipe struct {
	// Name is the tools.conf key and the installed binary name unless
	// Binary overrides it.
	Name string
	// Repo is the upstream git URL for source builds.
	Repo string
	// Binary is the executable name when it differs from Name.
	Binary string
	// System pins the build system; SystemUnknown means detect.
	System buildsrc.System
	// Package is the package-manager name when it differs from Name.
	// Per-manager quirks are handled by pkgmgr.Translate on top.
	Package string
	// Artifact overrides where the build system leaves the binary,
	// relative to the source tree, when the default for the build
	// system is wrong (cmake trees that nest bin/, Makefiles that
	// write into a subdirectory).
	Artifact string
	// Release selects a prebuilt GitHub release asset for stable mode
	// instead of a source build.
	Release *ReleaseSpec
	// VersionArgs invoke the installed binary for a version probe.
	VersionArgs []string
	// ShellInit is a command the shell profile should eval, with %s
	// substituted by the shell name (e.g. "zoxide init %s").
	ShellInit string
}

// ReleaseSpec names a GitHub release asset and how to verify it.
type ReleaseSpec struct {
	// Owner and Repo identify the GitHub project.
	Owner string
	Repo  string
	// Asset is a set of case-insensitive substrings the asset name must
	// contain. "{os}" and "{arch}" expand to the host platform in the
	// upstream's naming convention.
	Asset []string
	// Checksum selects the checksum-file asset for MethodSHA256.
	Checksum []string
	// Verify is the verification policy the engine enforces before the
	// asset is unpacked. MethodGPG requires a detached <asset>.asc and
	// a keyring, imported from KeyURL when missing.
	Verify verify.Method
	// KeyURL fetches the armored signing key on first use.
	KeyURL string
}

// ShellInitLine renders the profile line for a shell, wrapping the init
// command in the shell's own sourcing idiom.
func (r *Recipe) ShellInitLine(shell string) string {
	if r.ShellInit == "" {
		return ""
	}
	cmd := fmt.Sprintf(r.ShellInit, shell)
	if shell == "fish" {
		return cmd + " | source"
	}
	return fmt.Sprintf("eval \"$(%s)\"", cmd)
}

// BinaryName returns the executable name for a recipe.
func (r *Recipe) BinaryName() string {
	if r.Binary != "" {
		return r.Binary
	}
	return r.Name
}

// PackageName returns the package-manager name for a recipe.
func (r *Recipe) PackageName() string {
	if r.Package != "" {
		return r.Package
	}
	return r.Name
}

// ArtifactPath returns where a build left the binary relative to the
// source tree: the recipe override when set, otherwise the build
// system's default.
func (r *Recipe) ArtifactPath(defaultRel string) string {
	if r.Artifact != "" {
		return r.Artifact
	}
	return defaultRel
}

// builtinRecipes is the supported tool roster.
var builtinRecipes = map[string]Recipe{
	"neovim": {
		Name:        "neovim",
		Repo:        "https://github.com/neovim/neovim.git",
		Binary:      "nvim",
		System:      buildsrc.SystemCMake,
		Artifact:    "build/bin/nvim",
		VersionArgs: []string{"--version"},
	},
	"tmux": {
		Name:        "tmux",
		Repo:        "https://github.com/tmux/tmux.git",
		System:      buildsrc.SystemAutotools,
		VersionArgs: []string{"-V"},
	},
	"fzf": {
		Name:        "fzf",
		Repo:        "https://github.com/junegunn/fzf.git",
		System:      buildsrc.SystemGo,
		VersionArgs: []string{"--version"},
		ShellInit:   "fzf --%s",
	},
	"ripgrep": {
		Name:        "ripgrep",
		Repo:        "https://github.com/BurntSushi/ripgrep.git",
		Binary:      "rg",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
	},
	"fd": {
		Name:        "fd",
		Repo:        "https://github.com/sharkdp/fd.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
	},
	"bat": {
		Name:        "bat",
		Repo:        "https://github.com/sharkdp/bat.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
	},
	"eza": {
		Name:        "eza",
		Repo:        "https://github.com/eza-community/eza.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
	},
	"zoxide": {
		Name:        "zoxide",
		Repo:        "https://github.com/ajeetdsouza/zoxide.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
		ShellInit:   "zoxide init %s",
	},
	"lazygit": {
		Name:   "lazygit",
		Repo:   "https://github.com/jesseduffield/lazygit.git",
		System: buildsrc.SystemGo,
		Release: &ReleaseSpec{
			Owner:    "jesseduffield",
			Repo:     "lazygit",
			Asset:    []string{"lazygit", "{os}", "{arch}", ".tar.gz"},
			Checksum: []string{"checksums.txt"},
			Verify:   verify.MethodSHA256,
		},
		VersionArgs: []string{"--version"},
	},
	"starship": {
		Name:        "starship",
		Repo:        "https://github.com/starship/starship.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
		ShellInit:   "starship init %s",
	},
	"jq": {
		Name:        "jq",
		Repo:        "https://github.com/jqlang/jq.git",
		System:      buildsrc.SystemAutotools,
		VersionArgs: []string{"--version"},
	},
	"delta": {
		Name:        "delta",
		Repo:        "https://github.com/dandavison/delta.git",
		System:      buildsrc.SystemCargo,
		Package:     "git-delta",
		VersionArgs: []string{"--version"},
	},
	"btop": {
		Name:        "btop",
		Repo:        "https://github.com/aristocratos/btop.git",
		System:      buildsrc.SystemMake,
		Artifact:    "bin/btop",
		VersionArgs: []string{"--version"},
	},
	"yazi": {
		Name:        "yazi",
		Repo:        "https://github.com/sxyazi/yazi.git",
		System:      buildsrc.SystemCargo,
		VersionArgs: []string{"--version"},
	},
	"direnv": {
		Name:        "direnv",
		Repo:        "https://github.com/direnv/direnv.git",
		System:      buildsrc.SystemGo,
		VersionArgs: []string{"--version"},
		ShellInit:   "direnv hook %s",
	},
}

// LookupRecipe returns the recipe for a tool name.
func LookupRecipe(name string) (*Recipe, error) {
	rec, ok := builtinRecipes[name]
	if !ok {
		return nil, fmt.Errorf("no recipe for tool %q", name)
	}
	return &rec, nil
}

// RecipeNames returns the supported tool names sorted.
func RecipeNames() []string {
	names := make([]string, 0, len(builtinRecipes))
	for name := range builtinRecipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
