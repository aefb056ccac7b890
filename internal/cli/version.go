package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/mcp"
	"github.com/codecompass/codecompass-mcp/internal/store"
)

// Build metadata, set via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CodeCompass MCP Server\n")
		fmt.Printf("Version: %s (server protocol %s)\n", Version, mcp.ServerVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Build Mode: %s\n", store.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", store.DriverName)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
