package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration blob",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configPathCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return printResult(a.cfg)
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Println(a.cfg.Path())
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (keys: model)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			switch key {
			case "model":
				a.cfg.Model = value
			default:
				return fmt.Errorf("unknown config key %q", key)
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Println("ok:", key, "=", value)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-server error counts and session counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			type serverRow struct {
				Name          string `json:"name"`
				Kind          string `json:"kind"`
				LastConnected string `json:"last_connected,omitempty"`
				ErrorCount    int    `json:"error_count"`
			}
			rows := make([]serverRow, 0, len(a.reg.List()))
			for _, info := range a.reg.List() {
				row := serverRow{Name: info.Name, Kind: info.Kind, ErrorCount: info.ErrorCount}
				if info.LastConnected != nil {
					row.LastConnected = info.LastConnected.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, row)
			}
			return printResult(map[string]any{
				"session": a.counters.Snapshot(),
				"servers": rows,
			})
		},
	}
}
