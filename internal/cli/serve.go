package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API for the web UI",
	Long: `Start the local JSON API used by the browser UI.

The API listens on server.addr (default 127.0.0.1:8787) and shares history
and settings with the CLI. Prometheus metrics are served on /metrics.

Example:
  stackforge serve
  stackforge serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	srv := server.New(cfg, server.Deps{
		Generator: a.gen,
		Store:     a.store,
		Decoder:   a.decoder,
		Seed:      a.cfg.SeedSettings,
		Registry:  a.registry,
		Log:       a.log,
		Version:   buildVersion,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "stackforge API listening on http://%s (Ctrl+C to stop)\n", cfg.Addr)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}
