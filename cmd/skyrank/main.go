// Package main provides the skyrank CLI entry point.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abelbrown/skyrank/internal/backend"
	"github.com/abelbrown/skyrank/internal/config"
	"github.com/abelbrown/skyrank/internal/logging"
)

// version is set via ldflags at release time.
var version = "dev"

const defaultWidth = 100

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals holds persistent flag values and the loaded configuration.
type globals struct {
	configPath string
	logLevel   string
	jsonOut    bool

	cfg *config.Config
}

// newRootCmd creates the root command for the skyrank CLI.
func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "skyrank",
		Short: "Mix feeds, rank posts and cluster opinions",
		Long: "Skyrank blends several paginated feeds into one weighted timeline, " +
			"ranks posts by newest, trending, wilson_score, score or controversial, " +
			"and groups voters into opinion clusters.",
		Version:      resolveVersion(version, readBuildInfo()),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}

	rootCmd.SetVersionTemplate("skyrank version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default: $SKYRANK_CONFIG, ./skyrank.yaml, user config dir)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&g.jsonOut, "json", false, "write JSON instead of styled text")

	rootCmd.AddCommand(newMixCmd(g))
	rootCmd.AddCommand(newRankCmd(g))
	rootCmd.AddCommand(newConsensusCmd(g))
	rootCmd.AddCommand(newStrategiesCmd())

	return rootCmd
}

// setup loads configuration, starts logging and configures the backend.
func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	g.cfg = cfg

	if cfg.Log.Dir != "" {
		if err := logging.InitFile(cfg.Log.Dir, cfg.Log.Level); err != nil {
			return err
		}
	} else {
		logging.Init(logging.Options{Writer: cmd.ErrOrStderr(), Level: cfg.Log.Level})
	}

	backend.Configure(cfg.BackendConfig())
	logging.Debug("Configuration loaded",
		"mix", cfg.Mix.Name,
		"entries", len(cfg.Mix.Entries),
		"strategy", cfg.Strategy(),
		"wasm", cfg.Backend.WASMPath)
	return nil
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputWidth is the terminal width when w is a terminal.
func outputWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func readBuildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "" && ldflags != "dev" {
		return ldflags
	}
	if info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
