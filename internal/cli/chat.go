package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mcpstudio/internal/ollama"
)

func chatCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the local model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			conn, err := a.chatBackend(ctx)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			reply, err := conn.Chat(ctx, model, []ollama.Message{
				{Role: "user", Content: args[0]},
			})
			if err != nil {
				return err
			}
			a.counters.MessagesSent.Add(1)
			return printResult(map[string]any{"response": reply})
		},
	}
	cmd.Flags().StringVar(&model, "chat-model", "", "model for this message (defaults to configured model)")
	return cmd
}

func toolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool <server> <tool> [json-arguments]",
		Short: "Invoke a tool on a server",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, tool := args[0], args[1]
			var toolArgs map[string]any
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &toolArgs); err != nil {
					return fmt.Errorf("parse arguments: %w", err)
				}
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			result, err := autoCaller{a}.Invoke(ctx, server, tool, toolArgs)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools <server>",
		Short: "List the tools a server advertises",
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

			tools, err := a.reg.Tools(name)
			if err != nil {
				return err
			}
			type row struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			rows := make([]row, len(tools))
			for i, t := range tools {
				rows[i] = row{Name: t.Name, Description: t.Description}
			}
			return printResult(rows)
		},
	}
}
