package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcpstudio/internal/script"
	"mcpstudio/internal/store"
)

func scriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Automation scripts",
	}
	cmd.AddCommand(scriptRunCmd())
	return cmd
}

func scriptRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Run a script and print the full trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := script.LoadScriptFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			rec := a.startRecord(ctx, store.KindScript, s.Name)

			trace := a.scriptRunner().Run(ctx, s)

			failed := false
			for _, r := range trace {
				if script.IsError(r.Result) {
					failed = true
					break
				}
			}
			rec.finish(ctx, failed, trace)
			return printResult(trace)
		},
	}
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Batch tool execution",
	}
	cmd.AddCommand(batchRunCmd())
	return cmd
}

func batchRunCmd() *cobra.Command {
	var concurrent bool
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a batch of tool invocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := script.LoadBatchFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			rec := a.startRecord(ctx, store.KindBatch, b.Name)

			runner := &script.BatchRunner{Tools: autoCaller{a}, Log: a.log}
			results := runner.Run(ctx, b.Tools, concurrent)

			failed := false
			for _, r := range results {
				if r.Err != "" {
					failed = true
					break
				}
			}
			rec.finish(ctx, failed, results)
			return printResult(results)
		},
	}
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "run invocations in parallel")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write starter script and batch files",
	}
	cmd.AddCommand(generateFileCmd("batch", func(name string) any { return script.BatchTemplate(name) }))
	cmd.AddCommand(generateFileCmd("script", func(name string) any { return script.ScriptTemplate(name) }))
	return cmd
}

func generateFileCmd(kind string, template func(name string) any) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   kind + " <name>",
		Short: "Write a " + kind + " template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := out
			if path == "" {
				path = name + ".json"
			}
			b, err := json.MarshalIndent(template(name), "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Println("ok:", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default <name>.json)")
	return cmd
}
