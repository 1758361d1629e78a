package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mcpstudio/internal/mcp"
)

func serversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage configured tool servers",
	}
	cmd.AddCommand(serversListCmd())
	cmd.AddCommand(serversConnectCmd())
	cmd.AddCommand(serversDisconnectCmd())
	cmd.AddCommand(serversReconnectCmd())
	cmd.AddCommand(serversValidateCmd())
	return cmd
}

func serversListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured servers and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return printResult(a.reg.List())
		},
	}
}

func serversConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <name>",
		Short: "Connect a server and report its tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// Connecting a live server is a no-op, not a toggle; use
			// disconnect or reconnect to cycle it.
			if a.reg.State(name) == mcp.StateConnected {
				return fmt.Errorf("%s is already connected (use disconnect or reconnect)", name)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			if err := a.reg.Connect(ctx, name); err != nil {
				return err
			}
			tools, err := a.reg.Tools(name)
			if err != nil {
				return err
			}
			return printResult(map[string]any{
				"server": name,
				"state":  a.reg.State(name),
				"tools":  len(tools),
			})
		},
	}
}

func serversDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <name>",
		Short: "Disconnect a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.reg.Disconnect(name); err != nil {
				return err
			}
			return printResult(map[string]any{"server": name, "state": a.reg.State(name)})
		},
	}
}

func serversReconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect <name>",
		Short: "Cycle a server connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			if err := a.reg.Reconnect(ctx, name); err != nil {
				return err
			}
			return printResult(map[string]any{"server": name, "state": a.reg.State(name)})
		},
	}
}

func serversValidateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "validate <name>",
		Short: "Probe a connected server for liveness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			if err := a.ensureConnected(ctx, name); err != nil {
				return err
			}
			ok := a.reg.Validate(ctx, name, timeout)
			return printResult(map[string]any{"server": name, "healthy": ok})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "probe timeout")
	return cmd
}
