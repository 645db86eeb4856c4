package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"connkit/internal/logger"
	"connkit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  serveAPI,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func serveAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}

	log := logger.Get()
	srv := server.NewAPIServer(svc, log)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.Int("connectors", len(svc.Registry.List())),
		zap.Int("connections", len(svc.Connections.Names())),
	)
	return srv.ListenAndServe(ctx, addr)
}
