package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/ziadkadry99/crm-agent/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio exposing the interaction tools: log_interaction, edit_interaction, search_hcp, sentiment_analyzer and followup_suggestor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		a.logger.Info("crmagent MCP server started on stdio", zap.String("database", a.db.Path()))

		srv := mcpserver.NewServer(a.pipeline, a.records)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
