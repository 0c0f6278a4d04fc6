package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"taxi-relay/internal/database"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded delivery runs",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			_, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, total, err := store.Runs().List(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tDELIVERED\tTICKS\tREWARD\tCREATED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%g\t%s\n",
					run.ID, run.Mode, run.Delivered, run.Passengers,
					humanize.Comma(int64(run.Ticks)), run.Reward, humanize.Time(run.CreatedAt))
			}
			tw.Flush()
			fmt.Fprintf(out, "%d of %s runs\n", len(runs), humanize.Comma(int64(total)))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs")
	cmd.Flags().Int("offset", 0, "runs to skip")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a run and its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			run, assignments, err := store.Runs().GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %s: %w", args[0], database.ErrNotFound)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  Map:        %s\n", run.MapID)
			fmt.Fprintf(out, "  Mode:       %s\n", run.Mode)
			if run.Strategy != "" {
				fmt.Fprintf(out, "  Strategy:   %s\n", run.Strategy)
			}
			fmt.Fprintf(out, "  Agents:     %d\n", run.Agents)
			fmt.Fprintf(out, "  Delivered:  %d of %d\n", run.Delivered, run.Passengers)
			fmt.Fprintf(out, "  Ticks:      %s\n", humanize.Comma(int64(run.Ticks)))
			fmt.Fprintf(out, "  Reward:     %g\n", run.Reward)
			fmt.Fprintf(out, "  Created:    %s\n", humanize.Time(run.CreatedAt))
			if run.Notes != "" {
				fmt.Fprintf(out, "  Notes:      %s\n", run.Notes)
			}

			if len(assignments) > 0 {
				fmt.Fprintln(out, "Assignments:")
				for _, a := range assignments {
					fmt.Fprintf(out, "  passenger %d  %-8s agent %d at %s (%d moves)\n",
						a.PassengerID, a.Role, a.AgentID, a.Point, a.Cost)
				}
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Runs().Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				return fmt.Errorf("failed to delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
