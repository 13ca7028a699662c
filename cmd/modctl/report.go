package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/modloader/internal/config"
	"github.com/cory-johannsen/modloader/internal/startup"
	"github.com/cory-johannsen/modloader/internal/storage/postgres"
)

func newReportCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read startup reports saved by modhost",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/dev.yaml", "path to configuration file")

	withRepo := func(cmd *cobra.Command, fn func(*postgres.ReportRepository) (*startup.Report, error)) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		pool, err := postgres.NewPool(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		r, err := fn(pool.Reports())
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), r)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "latest",
			Short: "Show the most recent startup report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRepo(cmd, func(repo *postgres.ReportRepository) (*startup.Report, error) {
					return repo.Latest(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "show <run-id>",
			Short: "Show one startup report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", args[0], err)
				}
				return withRepo(cmd, func(repo *postgres.ReportRepository) (*startup.Report, error) {
					return repo.Get(cmd.Context(), id)
				})
			},
		},
	)
	return cmd
}

func printReport(out io.Writer, r *startup.Report) error {
	fmt.Fprintf(out, "run %s started %s (%s), %d asset(s), %d failure(s)\n",
		r.RunID, r.Started.Format("2006-01-02T15:04:05Z07:00"), r.Elapsed(), r.Assets, r.Failures())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tMOD\tDURATION\tERROR")
	for _, s := range r.Steps {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.ModID, s.Duration, errText)
	}
	return tw.Flush()
}
