package main

import (
	"encoding/json"
	"fmt"
	"os"

	"vacancy-report/internal/client"
	"vacancy-report/internal/report"

	"github.com/spf13/cobra"
)

type remoteFlags struct {
	server  string
	session string
}

func (f *remoteFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "vacancy-report API base URL")
	cmd.Flags().StringVar(&f.session, "session", os.Getenv("VACANCY_SESSION"), "Session id (default: $VACANCY_SESSION)")
}

func (f *remoteFlags) client() *client.Client {
	return client.New(f.server, nil).WithSession(f.session)
}

func newUploadCmd() *cobra.Command {
	var rf remoteFlags
	cmd := &cobra.Command{
		Use:   "upload <export.xls|export.xlsx>",
		Short: "Upload a raw export to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rf.client()
			resp, err := c.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"session_id": c.SessionID(), "dataset": resp})
		},
	}
	rf.bind(cmd)
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		rf     remoteFlags
		q      report.Query
		output string
	)
	cmd := &cobra.Command{
		Use:   "report [view]",
		Short: "List report views, print one as JSON or export it with --output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rf.client()
			ctx := cmd.Context()
			if len(args) == 0 {
				views, err := c.Views(ctx)
				if err != nil {
					return err
				}
				for _, v := range views {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", v.ID, v.Title)
				}
				return nil
			}
			if rf.session == "" {
				return client.ErrNoSession
			}
			if output != "" {
				data, err := c.Export(ctx, args[0], q)
				if err != nil {
					return err
				}
				return os.WriteFile(output, data, 0o644)
			}
			res, err := c.View(ctx, args[0], q)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringVar(&q.Filter, "filter", "", "Split filter (todos, finalizadas, nao_finalizadas, ...)")
	cmd.Flags().StringSliceVar(&q.Months, "month", nil, "Months to drill into (2024-01 or \"fev 2024\"; ALL for every month)")
	cmd.Flags().StringVar(&q.Phase, "phase", "", "Phase key, label or column to narrow family views")
	cmd.Flags().StringSliceVar(&q.Groups, "group", nil, "Milestone groups to list")
	cmd.Flags().StringVar(&q.Series, "series", "", "Series to list (flagged)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the view's table as xlsx to this file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
