package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/appenmapper/appenmapper/pkg/auth"
	"github.com/appenmapper/appenmapper/pkg/job"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/mapping"
	"github.com/appenmapper/appenmapper/pkg/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI server",
	Long: `Start the login-gated web UI.

The login is read from auth.username and auth.password in the config file or
from APPENMAPPER_AUTH_USERNAME and APPENMAPPER_AUTH_PASSWORD. The server
refuses to start without a password.

Examples:
  appenmapper serve                    # Start on the configured port (8501)
  appenmapper serve --port 3000        # Start on custom port
  appenmapper serve --host 0.0.0.0     # Listen on all interfaces`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	engine, err := mapping.New(cfg.MappingEngineConfig())
	if err != nil {
		return err
	}
	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return err
	}

	opts := server.DefaultOptions()
	opts.Version = version
	opts.PreviewRows = cfg.Server.PreviewRows
	opts.MaxUploadBytes = maxUpload
	opts.RunTTL = cfg.Server.RunTTL
	opts.FileName = cfg.Export.FileName
	opts.Writer = cfg.WriterConfig()

	gate := auth.NewGate(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.SessionTTL)
	srv, err := server.NewServer(job.NewRunner(engine), gate, opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	url := "http://" + addr
	if cfg.Server.Host == "0.0.0.0" || cfg.Server.Host == "" {
		url = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	fmt.Println()
	fmt.Println("  ╭─────────────────────────────────────╮")
	fmt.Println("  │         APPEN-MAPPER SERVER         │")
	fmt.Println("  ├─────────────────────────────────────┤")
	fmt.Printf("  │  Local:   %-25s │\n", url)
	fmt.Println("  │                                     │")
	fmt.Println("  │  Press Ctrl+C to stop               │")
	fmt.Println("  ╰─────────────────────────────────────╯")
	fmt.Println()

	ctx := cmd.Context()
	go server.Janitor(ctx, time.Minute, srv.Sweep)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	logging.Default().Info().Str("addr", addr).Msg("server started")

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
