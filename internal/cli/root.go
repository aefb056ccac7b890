package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/config"
)

var (
	cfgFile       string
	currentConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codecompass",
	Short: "Repository indexing and hybrid code search over MCP",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The version command needs no configuration.
		if cmd.Name() == "version" {
			return nil
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		currentConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./codecompass.yaml)")
}
