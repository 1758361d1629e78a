package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpstudio/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Run history in PostgreSQL (requires --dsn or DATABASE_URL)",
	}
	cmd.AddCommand(historyInitCmd())
	cmd.AddCommand(historyListCmd())
	return cmd
}

func historyInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the runs table",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := dsnOrErr()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			st, err := store.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Init(ctx); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			fmt.Println("ok: schema applied")
			return nil
		},
	}
}

func historyListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent script and batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := dsnOrErr()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := store.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			type row struct {
				RunID    string `json:"run_id"`
				Kind     string `json:"kind"`
				Name     string `json:"name"`
				Status   string `json:"status"`
				Started  string `json:"started"`
				Finished string `json:"finished,omitempty"`
			}
			rows := make([]row, len(runs))
			for i, r := range runs {
				rows[i] = row{
					RunID:   r.RunID,
					Kind:    r.Kind,
					Name:    r.Name,
					Status:  r.Status,
					Started: r.StartedAt.Format(time.RFC3339),
				}
				if r.FinishedAt != nil {
					rows[i].Finished = r.FinishedAt.Format(time.RFC3339)
				}
			}
			return printResult(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func dsnOrErr() (string, error) {
	if rf.DSN == "" {
		return "", fmt.Errorf("missing --dsn (or set DATABASE_URL)")
	}
	return rf.DSN, nil
}

// recorder journals one script or batch run when a DSN is configured. A nil
// recorder is a no-op, so commands call it unconditionally.
type recorder struct {
	st    *store.Store
	runID string
	log   *zap.Logger
}

// startRecord opens the history store and inserts a running row. History is
// best effort: when the store is unavailable the run proceeds without it.
func (a *app) startRecord(ctx context.Context, kind, name string) *recorder {
	if rf.DSN == "" {
		return nil
	}
	st, err := store.Open(ctx, rf.DSN)
	if err != nil {
		a.log.Warn("run history unavailable", zap.Error(err))
		return nil
	}
	runID, err := st.CreateRun(ctx, kind, name)
	if err != nil {
		a.log.Warn("record run", zap.Error(err))
		st.Close()
		return nil
	}
	return &recorder{st: st, runID: runID, log: a.log}
}

func (r *recorder) finish(ctx context.Context, failed bool, result any) {
	if r == nil {
		return
	}
	defer r.st.Close()

	status := store.StatusCompleted
	if failed {
		status = store.StatusFailed
	}
	b, err := json.Marshal(result)
	if err != nil {
		b = nil
	}
	if err := r.st.FinishRun(ctx, r.runID, status, b); err != nil {
		r.log.Warn("finish run record", zap.Error(err))
	}
}
