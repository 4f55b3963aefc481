package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsage/internal/mcp"
	"github.com/dshills/eventsage/pkg/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server speaks JSON-RPC over stdio. Logs go to stderr.

Client configuration:
  {
    "mcpServers": {
      "eventsage": {
        "command": "/path/to/eventsage",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	mcp.ServerVersion = version
	server := mcp.NewServer(svc, logger.Get())
	errLog := log.New(os.Stderr, "mcp: ", log.LstdFlags)
	err = server.Serve(cmd.Context(), os.Stdin, os.Stdout, errLog)
	if cmd.Context().Err() != nil {
		logger.Get().Info(cmd.Context(), "mcp server stopped")
		return nil
	}
	return err
}
