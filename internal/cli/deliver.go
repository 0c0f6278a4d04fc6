package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"taxi-relay/internal/models"
	"taxi-relay/internal/scenario"
)

func newDeliverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Simulate delivering the scenario's passengers",
		Long: `Run the scenario on a fresh simulation and record the run.

Modes:
  auto      solo when one agent can finish alone, otherwise a hand-off
  solo      the nearest capable agent only
  transfer  always plan a hand-off
  set       serve all chosen passengers with one shared plan
  bidding   agents bid for passengers, then run the winning plans`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			mode, _ := cmd.Flags().GetString("mode")
			strategy, _ := cmd.Flags().GetString("strategy")
			notes, _ := cmd.Flags().GetString("notes")
			ids, _ := cmd.Flags().GetIntSlice("passengers")

			runner, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			outcome, err := runner.Deliver(cmd.Context(), sc, scenario.Request{
				Mode:       mode,
				Strategy:   strategy,
				Passengers: lo.Map(ids, func(id int, _ int) models.PassengerID { return models.PassengerID(id) }),
				Notes:      notes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			run := outcome.Run
			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Mode)
			fmt.Fprintf(out, "Delivered %d of %d passengers in %d ticks, reward %g\n",
				run.Delivered, run.Passengers, run.Ticks, run.Reward)

			for _, r := range outcome.Reports {
				line := fmt.Sprintf("  passenger %d: agent %d", r.Passenger, r.PickupAgent)
				if r.TransferPoint != nil {
					line += fmt.Sprintf(" -> %s -> agent %d", r.TransferPoint.Point, r.DropoffAgent)
				}
				if !r.Delivered {
					line += " (not delivered)"
				}
				fmt.Fprintln(out, line)
			}
			for _, f := range outcome.Failures {
				fmt.Fprintf(out, "  passenger %d failed: %s\n", f.Passenger, f.Error)
			}
			return nil
		},
	}
	addScenarioFlag(cmd)
	cmd.Flags().String("mode", scenario.ModeAuto, "delivery mode: "+strings.Join(scenario.Modes(), ", "))
	cmd.Flags().String("strategy", "", "transfer point strategy (default route-aligned)")
	cmd.Flags().IntSlice("passengers", nil, "passenger indices to serve (default all)")
	cmd.Flags().String("notes", "", "free-form notes stored with the run")
	return cmd
}
