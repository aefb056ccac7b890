package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/mcp"
	"github.com/codecompass/codecompass-mcp/pkg/types"
)

var todosPrefix string

// todosCmd lists marker comments across a root.
var todosCmd = &cobra.Command{
	Use:   "todos <root>",
	Short: "List TODO, FIXME, and other marker comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcp.NewServer(currentConfig)
		if err != nil {
			return err
		}
		ctx := context.Background()
		root := args[0]

		resp, err := srv.Dispatch(ctx, mcp.ListTodosOp{Root: root, PathPrefix: todosPrefix})
		if errors.Is(err, types.ErrNotFound) {
			if _, ierr := srv.Dispatch(ctx, mcp.IndexRepoOp{Root: root}); ierr != nil {
				return ierr
			}
			resp, err = srv.Dispatch(ctx, mcp.ListTodosOp{Root: root, PathPrefix: todosPrefix})
		}
		if err != nil {
			return err
		}

		marker := color.New(color.FgYellow, color.Bold)
		for _, item := range resp["todos"].([]map[string]interface{}) {
			marker.Printf("%v", item["marker"])
			fmt.Printf(" %v:%v %v\n", item["path"], item["line"], item["text"])
		}
		color.White("%v markers", resp["total"])
		return nil
	},
}

func init() {
	todosCmd.Flags().StringVar(&todosPrefix, "prefix", "", "only report files under this path prefix")
	rootCmd.AddCommand(todosCmd)
}
