package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codecompass/codecompass-mcp/internal/mcp"
	"github.com/codecompass/codecompass-mcp/internal/store"
)

// serveCmd runs the MCP server on stdio.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; everything else goes to stderr.
		log.SetOutput(os.Stderr)
		log.Printf("codecompass MCP server starting (sqlite driver: %s)", store.DriverName)

		srv, err := mcp.NewServer(currentConfig)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.Serve(ctx)
		}()

		select {
		case sig := <-sigChan:
			log.Printf("received %v, shutting down", sig)
			cancel()
			return nil
		case err := <-errChan:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
