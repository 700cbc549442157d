package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/devup-sh/devup/internal/conf"
	"github.com/devup-sh/devup/internal/installer"
)

// runTools handles `devup tools list|set|remove`.
func runTools(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("tools requires an action: list, set, or remove")
	}

	switch args[0] {
	case "list":
		return runToolsList(args[1:])
	case "set":
		return runToolsSet(args[1:])
	case "remove":
		return runToolsRemove(args[1:])
	default:
		return fmt.Errorf("unknown tools action: %s (expected list, set, or remove)", args[0])
	}
}

// toolListing is the JSON shape for `tools list --json`.
type toolListing struct {
	Name  string   `json:"name"`
	Mode  string   `json:"mode"`
	Flags []string `json:"flags,omitempty"`
	Post  string   `json:"post,omitempty"`
	Known bool     `json:"known"`
}

func runToolsList(args []string) error {
	fs := flag.NewFlagSet("tools list", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON instead of a table")
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}
	cfg, err := env.loadTools(ctx)
	if err != nil {
		return err
	}

	listings := make([]toolListing, 0, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		_, lookupErr := installer.LookupRecipe(tool.Name)
		listings = append(listings, toolListing{
			Name:  tool.Name,
			Mode:  tool.Mode.String(),
			Flags: tool.Flags,
			Post:  tool.Post,
			Known: lookupErr == nil,
		})
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tMODE\tFLAGS\tNOTES")
	for _, l := range listings {
		notes := ""
		if !l.Known {
			notes = "no recipe"
		}
		flags := ""
		if len(l.Flags) > 0 {
			flags = fmt.Sprintf("%v", l.Flags)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Name, l.Mode, flags, notes)
	}
	return w.Flush()
}

func runToolsSet(args []string) error {
	fs := flag.NewFlagSet("tools set", flag.ContinueOnError)
	postCmd := fs.String("post", "", "shell command to run after a successful install")
	prefixFlag := fs.String("prefix", "", "install prefix override")
	var flagTokens multiFlag
	fs.Var(&flagTokens, "flag", "recipe flag token (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: devup tools set NAME MODE [--flag F] [--post CMD]")
	}
	name := rest[0]

	mode, ok := conf.ParseMode(rest[1])
	if !ok {
		return fmt.Errorf("unknown mode %q (expected stable, head, managed, or none)", rest[1])
	}

	if _, err := installer.LookupRecipe(name); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: no recipe for %q; install will skip it\n", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}

	tool := conf.Tool{Name: name, Mode: mode, Flags: flagTokens, Post: *postCmd}
	if findings := conf.DetectSensitiveData(conf.FormatTool(tool)); len(findings) > 0 {
		fmt.Fprint(os.Stderr, conf.FormatSensitiveDataWarning(findings))
	}
	if err := conf.SetTool(env.Prefix.ToolsConfPath(), tool); err != nil {
		return fmt.Errorf("update tools.conf: %w", err)
	}

	fmt.Printf("Set %s\n", conf.FormatTool(tool))
	return nil
}

func runToolsRemove(args []string) error {
	fs := flag.NewFlagSet("tools remove", flag.ContinueOnError)
	prefixFlag := fs.String("prefix", "", "install prefix override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: devup tools remove NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := setupEnvironment(ctx, *prefixFlag)
	if err != nil {
		return err
	}

	removed, err := conf.RemoveTool(env.Prefix.ToolsConfPath(), rest[0])
	if err != nil {
		return fmt.Errorf("update tools.conf: %w", err)
	}
	if !removed {
		return fmt.Errorf("tool %q is not in tools.conf", rest[0])
	}

	fmt.Printf("Removed %s\n", rest[0])
	return nil
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprintf("%v", []string(*m)) }

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
