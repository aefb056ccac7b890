package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/mcp"
)

var indexRefresh bool

// indexCmd builds or refreshes the index for a root.
var indexCmd = &cobra.Command{
	Use:   "index <root>",
	Short: "Build or refresh the search index for a repository root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcp.NewServer(currentConfig)
		if err != nil {
			return err
		}

		resp, err := srv.Dispatch(context.Background(), mcp.IndexRepoOp{
			Root:    args[0],
			Refresh: indexRefresh,
		})
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		bold.Printf("Indexed %v\n", resp["root"])
		color.Green("  files:    %v", resp["files"])
		color.Green("  chunks:   %v", resp["chunks"])
		color.Green("  vectors:  %v", resp["vectors"])
		if d, ok := resp["degraded"].(int); ok && d > 0 {
			color.Yellow("  degraded: %d", d)
		}
		color.White("  took %vms", resp["duration_ms"])
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexRefresh, "refresh", true, "reuse unchanged files from the previous index")
	rootCmd.AddCommand(indexCmd)
}
