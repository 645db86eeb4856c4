package cmd

import (
	"github.com/spf13/cobra"

	"connkit/internal/logger"
	"connkit/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP (Model Context Protocol) server on stdin/stdout",
	Long:  "Exposes all connectors as MCP tools. AI agents can discover and call connectors via the MCP protocol.",
	Args:  cobra.NoArgs,
	RunE:  serveMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func serveMCP(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	srv := server.NewMCPServer(svc, logger.Get(), version)
	return srv.ServeStdio(cmd.Context())
}
