// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"trainctl/internal/logserver"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the control server",
		Long: `Run the loopback control server that owns the training session.

Clients authenticate with a bearer token printed on startup (and
exported via environment hints). The server exposes start/stop/status
and buffered or streamed logs. When an output directory is configured,
produced checkpoint artifacts are reported as they appear.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: serve_addr from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := currentConfig()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "trainctl",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	sup, err := buildSupervisor(ctx, c, logger)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = c.ServeAddr
	}
	srv, err := logserver.New(addr, sup, logger)
	if err != nil {
		return err
	}
	srv.Start()

	fmt.Println(TitleStyle.Render("Control server listening on ") + CmdStyle.Render(srv.URL()))
	fmt.Println(SubtitleStyle.Render("Clients authenticate with:"))
	fmt.Printf("  export %s=%s\n", logserver.EnvServerAddr, srv.Address())
	fmt.Printf("  export %s=%s\n", logserver.EnvServerToken, srv.Token())

	if c.OutputDir != "" {
		startArtifactWatcher(ctx, c.OutputDir, logger)
	}

	<-ctx.Done()

	logger.Info("shutting down")
	if _, _, err := sup.Stop(context.Background()); err != nil {
		logger.Error("stopping training process", "err", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
