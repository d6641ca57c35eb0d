// appen-mapper fills a customer file (File 2) from a customer master
// (File 1), joining on a normalized customer identifier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/appenmapper/appenmapper/pkg/config"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/telemetry"
	"github.com/appenmapper/appenmapper/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

var (
	manager           = config.NewManager()
	shutdownTelemetry = func(context.Context) error { return nil }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		tui.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appenmapper",
	Short: "appen-mapper - fill customer data from a master file",
	Long: `appen-mapper fills empty cells in File 2 from the customer master in File 1.

Rows are joined on "Customer Number/ID" after normalizing the identifier, so
"100", "100.0", " 100 " and "100,0" all match. Existing values in File 2 are
never overwritten.

Inputs may be CSV or XLSX, local paths or s3://bucket/key URIs.`,
	Version:           fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTelemetry(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: .appenmapper.yaml, ~/.appenmapper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// setup loads .env files and configuration, then configures logging and
// tracing for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	// .env.local overrides .env; neither overrides the real environment.
	for _, envFile := range []string{".env.local", ".env"} {
		if err := godotenv.Load(envFile); err == nil && verbose {
			fmt.Fprintf(os.Stderr, "Loaded %s\n", envFile)
		}
	}

	if err := manager.Load(configFile); err != nil {
		return err
	}
	cfg := manager.Get()

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logging.Configure(cfg.Logging)

	cfg.Telemetry.ServiceVersion = version
	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		// Tracing is optional; a bad collector must not block mapping.
		logging.Default().Warn().Err(err).Msg("telemetry disabled")
		return nil
	}
	shutdownTelemetry = shutdown
	return nil
}
