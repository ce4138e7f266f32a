package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/scansmart/internal/app"
	"github.com/joseph-ayodele/scansmart/internal/common"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := historyApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		scans, err := a.Scans.ListRecent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tSOURCE\tSTATUS\tIMAGE")
		for _, s := range scans {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.RunID, s.StartedAt.Local().Format(time.DateTime), s.Source, s.Status, s.ImagePath)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the text and exports of one scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := common.NewValidator().Field("run-id", args[0], common.UUID).Error(); err != nil {
			return err
		}
		a, err := historyApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		s, err := a.Scans.Get(ctx, args[0])
		if err != nil {
			return err
		}
		exports, err := a.Exports.ListByRun(ctx, s.RunID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %s from %s (%s)\n", s.RunID, s.Status, s.Source, s.ImagePath)
		if s.Error != "" {
			fmt.Fprintf(out, "error: %s\n", s.Error)
		}
		fmt.Fprintln(out, s.Text)
		for _, e := range exports {
			fmt.Fprintf(out, "export %s %s %s\n", e.ID, e.MIMEType, e.Path)
		}
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Scan history database maintenance",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the history database and apply its schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := historyApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		defer a.Close(context.Background())
		if err := a.DB.HealthCheck(cmd.Context(), time.Second); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of scans to list")
	historyCmd.AddCommand(historyShowCmd)
	dbCmd.AddCommand(dbHealthCmd)
	rootCmd.AddCommand(historyCmd, dbCmd)
}

func historyApp(ctx context.Context) (*app.App, error) {
	if cfg.Database.DSN == "" {
		return nil, errors.New("DB_URL is not set, scan history is disabled")
	}
	return appWithoutPrompt(ctx)
}

func appWithoutPrompt(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, cfg, nil, logger)
}
