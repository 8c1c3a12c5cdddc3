// ABOUTME: Entry point for the sealed-prefs command line tool
// ABOUTME: Opens encrypted preference stores and reads or edits their entries

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/config"
	"github.com/2389/sealed-prefs/internal/logging"
	"github.com/2389/sealed-prefs/internal/prefs"
	"github.com/2389/sealed-prefs/internal/sealedprefs"
	"github.com/2389/sealed-prefs/internal/tier"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the config file, or "" to use defaults.
// Priority: SEALED_PREFS_CONFIG env var > XDG_CONFIG_HOME/sealed-prefs/config.yaml > ~/.config/sealed-prefs/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SEALED_PREFS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	path := filepath.Join(configDir, "sealed-prefs", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func usage() {
	fmt.Println("Usage: sealed-prefs <command> [-shared] <store> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  get <store> <name>                  Print one preference")
	fmt.Println("  put <store> <type> <name> <value>   Write a preference (type: boolean, int, long, float, string, stringset)")
	fmt.Println("  remove <store> <name>...            Remove preferences")
	fmt.Println("  clear <store>                       Remove every preference")
	fmt.Println("  list <store>                        Print every preference")
	fmt.Println("  tier <store>                        Print the recorded encryption tier")
	fmt.Println("  version                             Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "get":
		err = withStore(ctx, os.Args[2:], 1, runGet)
	case "put":
		err = withStore(ctx, os.Args[2:], 3, runPut)
	case "remove":
		err = withStore(ctx, os.Args[2:], 1, runRemove)
	case "clear":
		err = withStore(ctx, os.Args[2:], 0, runClear)
	case "list":
		err = withStore(ctx, os.Args[2:], 0, runList)
	case "tier":
		err = runTier(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type storeArgs struct {
	shared bool
	store  string
	rest   []string
}

func parseStoreArgs(args []string, minRest int) (storeArgs, error) {
	fs := flag.NewFlagSet("sealed-prefs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	shared := fs.Bool("shared", false, "open the store with shared (0644) permissions")
	if err := fs.Parse(args); err != nil {
		return storeArgs{}, err
	}
	if fs.NArg() < 1+minRest {
		return storeArgs{}, fmt.Errorf("expected a store name and %d more argument(s)", minRest)
	}
	return storeArgs{shared: *shared, store: fs.Arg(0), rest: fs.Args()[1:]}, nil
}

func openHost(ctx context.Context) (*sealedprefs.Host, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(logging.New(cfg.Logging, os.Stderr))

	h, err := sealedprefs.New(ctx, cfg, sealedprefs.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return h, nil
}

func withStore(ctx context.Context, args []string, minRest int, run func(context.Context, prefs.Preferences, []string) error) error {
	sa, err := parseStoreArgs(args, minRest)
	if err != nil {
		return err
	}

	h, err := openHost(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	p, err := h.Open(ctx, sealedprefs.Namespace(sa.store, sa.shared))
	if err != nil {
		if p == nil || !errors.Is(err, tier.ErrPersist) {
			return fmt.Errorf("opening %s: %w", sa.store, err)
		}
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %v\n", err)
	}
	defer p.Close()

	return run(ctx, p, sa.rest)
}

func formatValue(tag codec.TypeTag, v any) string {
	if tag == codec.StringSet {
		if members, ok := v.([]string); ok {
			return "[" + strings.Join(members, ", ") + "]"
		}
	}
	return fmt.Sprint(v)
}

func printEntry(e prefs.Entry) {
	fmt.Printf("%s ", e.Name)
	color.New(color.FgHiBlack).Printf("(%s)", e.Tag)
	fmt.Printf(" = %s\n", formatValue(e.Tag, e.Value))
}

func runGet(ctx context.Context, p prefs.Preferences, args []string) error {
	ok, err := p.Contains(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	entries, err := p.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

// changePrinter reports every preference a command changed.
type changePrinter struct {
	out   io.Writer
	names []string
}

func (c *changePrinter) PreferenceChanged(name string) {
	c.names = append(c.names, name)
	color.New(color.FgHiBlack).Fprintf(c.out, "changed %s\n", name)
}

// commit commits ed while reporting the changed names to out.
func commit(ctx context.Context, p prefs.Preferences, ed prefs.Editor, out io.Writer) error {
	cp := &changePrinter{out: out}
	p.RegisterListener(cp)
	defer p.UnregisterListener(cp)
	return ed.Commit(ctx)
}

func runPut(ctx context.Context, p prefs.Preferences, args []string) error {
	tag, err := codec.ParseTag(args[0])
	if err != nil {
		return err
	}
	name, values := args[1], args[2:]

	ed := p.Edit()
	if tag == codec.StringSet {
		ed.PutStringSet(name, values)
	} else {
		if len(values) != 1 {
			return fmt.Errorf("%s takes exactly one value", tag)
		}
		v, err := codec.Parse(tag, values[0])
		if err != nil {
			return err
		}
		switch v := v.(type) {
		case bool:
			ed.PutBoolean(name, v)
		case int32:
			ed.PutInt(name, v)
		case int64:
			ed.PutLong(name, v)
		case float32:
			ed.PutFloat(name, v)
		case string:
			ed.PutString(name, v)
		}
	}
	return commit(ctx, p, ed, os.Stderr)
}

func runRemove(ctx context.Context, p prefs.Preferences, args []string) error {
	ed := p.Edit()
	for _, name := range args {
		ed.Remove(name)
	}
	return commit(ctx, p, ed, os.Stderr)
}

func runClear(ctx context.Context, p prefs.Preferences, _ []string) error {
	return p.Edit().Clear().Commit(ctx)
}

func runList(ctx context.Context, p prefs.Preferences, _ []string) error {
	entries, err := p.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func runTier(ctx context.Context, args []string) error {
	sa, err := parseStoreArgs(args, 0)
	if err != nil {
		return err
	}

	h, err := openHost(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	t, ok, err := h.Tier(ctx, sealedprefs.Namespace(sa.store, sa.shared))
	if err != nil {
		return err
	}
	if !ok {
		color.New(color.FgHiBlack).Println("not yet opened")
		return nil
	}
	green := color.New(color.FgGreen)
	green.Println(t)
	return nil
}
