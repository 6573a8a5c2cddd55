package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/magi/internal/mcp"
)

var mcpTransport string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server exposing the code_review tool",
	Long: `Start an MCP (Model Context Protocol) server exposing the code_review tool.

The stdio transport suits editor integrations:

  {
    "mcpServers": {
      "magi": { "command": "magi", "args": ["mcp"] }
    }
  }

The sse transport serves http://<addr>/sse for remote clients such as
'magi review --mcp-url'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
		defer stop()
		return mcpRun(ctx)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":8000", "Listen address for the sse transport")
	mcpCmd.Flags().String("base-url", "", "Public base URL advertised by the sse transport")
	_ = viper.BindPFlag("mcp.addr", mcpCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("mcp.base_url", mcpCmd.Flags().Lookup("base-url"))
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	srv := mcp.NewServer(newService(nil), buildVersion)

	switch mcpTransport {
	case "stdio":
		return srv.ServeStdio(ctx)
	case "sse":
		addr := viper.GetString("mcp.addr")
		slog.Info("mcp_sse_listening", "addr", addr)
		ui.Info("MCP server listening on %s/sse", addr)
		return srv.ServeSSE(ctx, addr, viper.GetString("mcp.base_url"))
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", mcpTransport)
	}
}
