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

var (
	searchMode          string
	searchLimit         int
	searchOffset        int
	searchContextLines  int
	searchCaseSensitive bool
)

// searchCmd runs a one-shot search against an indexed root. The root is
// indexed on the fly when no persisted artifact exists yet.
var searchCmd = &cobra.Command{
	Use:   "search <root> <pattern>",
	Short: "Search an indexed repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcp.NewServer(currentConfig)
		if err != nil {
			return err
		}
		ctx := context.Background()
		root, pattern := args[0], args[1]

		resp, err := srv.Dispatch(ctx, mcp.SearchCodeOp{
			Root:          root,
			Pattern:       pattern,
			Mode:          searchMode,
			CaseSensitive: searchCaseSensitive,
			Limit:         searchLimit,
			Offset:        searchOffset,
			ContextLines:  searchContextLines,
		})
		if errors.Is(err, types.ErrNotFound) {
			// Index on demand, then retry once.
			if _, ierr := srv.Dispatch(ctx, mcp.IndexRepoOp{Root: root}); ierr != nil {
				return ierr
			}
			resp, err = srv.Dispatch(ctx, mcp.SearchCodeOp{
				Root:          root,
				Pattern:       pattern,
				Mode:          searchMode,
				CaseSensitive: searchCaseSensitive,
				Limit:         searchLimit,
				Offset:        searchOffset,
				ContextLines:  searchContextLines,
			})
		}
		if err != nil {
			return err
		}

		results := resp["results"].([]map[string]interface{})
		loc := color.New(color.FgCyan, color.Bold)
		for _, r := range results {
			loc.Printf("%v:%v\n", r["path"], r["line"])
			fmt.Println(r["snippet"])
			fmt.Println()
		}
		color.White("%v matches (%v mode, %vms)", resp["total"], resp["mode"], resp["duration_ms"])
		if stale, ok := resp["stale"].(bool); ok && stale {
			color.Yellow("index is stale; run 'codecompass index %s' to refresh", root)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "literal", "matching strategy: literal, regex, semantic, or combined")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 uses the engine default)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().IntVar(&searchContextLines, "context", 0, "context lines per snippet")
	searchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "match case exactly")
	rootCmd.AddCommand(searchCmd)
}
