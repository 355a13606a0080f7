// Package cmd implements the surfacekit CLI commands.
//
// A root command dispatches to subcommands (info, render, frames,
// fetch-skia).
package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/go-drift/surfacekit/pkg/config"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/logx"
	"github.com/go-drift/surfacekit/pkg/video"

	// Software backend is always available.
	_ "github.com/go-drift/surfacekit/pkg/gpu/soft"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Command represents a CLI command.
type Command struct {
	Name        string
	Short       string
	Long        string
	Usage       string
	Run         func(args []string) error
	SubCommands []*Command
}

var rootCmd = &Command{
	Name:  "surfacekit",
	Short: "surfacekit - GPU surfaces and video frames for the rendering library",
	Long: `surfacekit binds GPU contexts, window surfaces and decoded video frames
to the rendering library.

Use "surfacekit <command> --help" for more information about a command.`,
	Usage: "surfacekit <command> [flags]",
}

var commands = make(map[string]*Command)

// options holds global flags.
var options struct {
	configDir string
	backend   string
	logLevel  string
}

type globalFlag struct {
	name  string
	arg   string
	usage string
	dst   *string
}

var globalFlags = []globalFlag{
	{"--config", "DIR", "Directory holding surfacekit.yaml (default: .)", &options.configDir},
	{"--backend", "NAME", "Override the configured backend", &options.backend},
	{"--log-level", "LEVEL", "Log to stderr at LEVEL (debug, info, warn, error)", &options.logLevel},
}

func lookupGlobal(name string) *string {
	for _, f := range globalFlags {
		if f.name == name {
			return f.dst
		}
	}
	return nil
}

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
	rootCmd.SubCommands = append(rootCmd.SubCommands, cmd)
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return run(os.Args[1:])
}

func isHelp(arg string) bool { return arg == "-h" || arg == "--help" || arg == "help" }

// splitGlobals stores global flags wherever they appear and returns the
// remaining arguments in order.
func splitGlobals(args []string) ([]string, error) {
	options.configDir, options.backend, options.logLevel = ".", "", ""
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if dst := lookupGlobal(args[i]); dst != nil {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", args[i])
			}
			*dst = args[i+1]
			i++
			continue
		}
		if name, value, ok := strings.Cut(args[i], "="); ok {
			if dst := lookupGlobal(name); dst != nil {
				*dst = value
				continue
			}
		}
		rest = append(rest, args[i])
	}
	return rest, nil
}

func run(args []string) error {
	args, err := splitGlobals(args)
	if err != nil {
		return err
	}
	if len(args) == 0 || isHelp(args[0]) {
		printHelp(rootCmd)
		return nil
	}
	switch args[0] {
	case "-v", "--version", "version":
		fmt.Printf("surfacekit version %s (built %s)\n", Version, BuildTime)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp(rootCmd)
		return fmt.Errorf("unknown command: %s", args[0])
	}
	if slices.ContainsFunc(args[1:], isHelp) {
		printCommandHelp(cmd)
		return nil
	}
	return cmd.Run(args[1:])
}

// resolveConfig loads surfacekit.yaml, applies global flag overrides and
// installs the logger.
func resolveConfig() (*config.Resolved, error) {
	cfg, err := config.Resolve(options.configDir)
	if err != nil {
		return nil, err
	}
	if options.backend != "" {
		cfg.Backend = strings.ToLower(options.backend)
	}
	if options.logLevel != "" {
		level, err := logx.ParseLevel(options.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
		cfg.Verbose = true
	}
	if cfg.Verbose {
		logx.SetLogger(logx.NewTextLogger(os.Stderr, cfg.LogLevel))
	}
	video.SetPreferNV12(cfg.PreferNV12)
	return cfg, nil
}

func openRegistry() (*gpu.Registry, *config.Resolved, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, err
	}
	reg, err := gpu.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return reg, cfg, nil
}

func printHelp(cmd *Command) {
	fmt.Printf("%s\n\nUsage:\n  %s\n\n", cmd.Long, cmd.Usage)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Commands:")
	for _, sub := range cmd.SubCommands {
		fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Short)
	}
	fmt.Fprintln(tw, "\nFlags:")
	fmt.Fprintln(tw, "  -h, --help\tShow help for a command")
	fmt.Fprintln(tw, "  -v, --version\tShow version information")
	for _, f := range globalFlags {
		fmt.Fprintf(tw, "  %s %s\t%s\n", f.name, f.arg, f.usage)
	}
	fmt.Fprintln(tw, "\nExamples:")
	fmt.Fprintln(tw, "  surfacekit info\tShow backends and configuration")
	fmt.Fprintln(tw, "  surfacekit render --out frame.png\tRender a test pattern")
	fmt.Fprintln(tw, "  surfacekit frames clip.y4m --out dir\tExport decoded frames")
	fmt.Fprintln(tw, "  surfacekit fetch-skia --android\tInstall the prebuilt Skia shim")
	tw.Flush()
}

func printCommandHelp(cmd *Command) {
	fmt.Printf("%s\n\nUsage:\n  %s\n", cmd.Long, cmd.Usage)
}
