package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ironsheep/tesseract-mcp/internal/server"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the MCP tool definitions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(server.GetToolDefinitions())
		},
	}
}
