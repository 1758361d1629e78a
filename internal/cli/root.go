package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	Config  string
	DSN     string
	Format  string
	Model   string
	Verbose bool
}

var rf rootFlags

func Execute() error {
	rootCmd := &cobra.Command{
		Use:          "mcpstudio",
		Short:        "Automation interface for MCP tool servers and local models",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rf.Config, "config", "", "config file (default ~/.mcp-studio/config.json)")
	rootCmd.PersistentFlags().StringVar(&rf.DSN, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN for run history (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&rf.Format, "format", "json", "output format: json|yaml|csv|table")
	rootCmd.PersistentFlags().StringVar(&rf.Model, "model", "", "chat model override")
	rootCmd.PersistentFlags().BoolVar(&rf.Verbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(serversCmd())
	rootCmd.AddCommand(scriptCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())

	// Interrupts cancel the command context; script runs stop between
	// steps rather than mid-step.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
