package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/mcp"
)

// statusCmd reports index state for a root.
var statusCmd = &cobra.Command{
	Use:   "status <root>",
	Short: "Report index state and statistics for a repository root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcp.NewServer(currentConfig)
		if err != nil {
			return err
		}

		resp, err := srv.Dispatch(context.Background(), mcp.GetStatusOp{Root: args[0]})
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		bold.Printf("%v\n", resp["root"])
		if indexed, _ := resp["indexed"].(bool); !indexed {
			color.Yellow("  not indexed")
			return nil
		}

		stats := resp["statistics"].(map[string]interface{})
		color.Green("  files:       %v", stats["files"])
		color.Green("  chunks:      %v", stats["chunks"])
		color.Green("  vectors:     %v", stats["vectors"])
		color.White("  built at:    %v", stats["built_at"])
		color.White("  driver:      %v", resp["sqlite_driver"])
		if stale, _ := resp["stale"].(bool); stale {
			color.Yellow("  stale: filesystem may have drifted since the last build")
		}
		if emb, ok := resp["embedding"].(map[string]interface{}); ok {
			if avail, _ := emb["available"].(bool); avail {
				color.Green("  embeddings:  %v/%v", emb["provider"], emb["model"])
			} else {
				color.Yellow("  embeddings:  unavailable (semantic search disabled)")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
