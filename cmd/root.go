package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	cfgpkg "github.com/KaramelBytes/propensity-cli/internal/config"
	"github.com/KaramelBytes/propensity-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "propensity",
	Short: "Propensity CLI: rank segment customers by purchase likelihood",
	Long: `Propensity joins click, sales and demographic tables, trains a random forest
that predicts whether a customer purchases, and ranks the customers of a target
segment by purchase probability. Every run writes plots, rankings, metrics and a
reusable model bundle into its own directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.propensity/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		logging.Init(logging.Config{Level: levelFor(""), Format: logFormat})
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c
	format := cfg.LogFormat
	if logFormat != "" {
		format = logFormat
	}
	logging.Init(logging.Config{Level: levelFor(cfg.LogLevel), Format: format})
	logging.Debug().Str("runs_dir", cfg.RunsDir).Msg("config loaded")
}

func levelFor(configured string) string {
	if debug {
		return "debug"
	}
	return configured
}

// requireConfig returns the loaded config or the load error, validated.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
