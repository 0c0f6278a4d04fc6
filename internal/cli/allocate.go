package cli

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"taxi-relay/internal/allocation"
	"taxi-relay/internal/models"
)

func newAllocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Assign agents to passengers by auction and exactly",
		Long: `Price every agent and passenger pair of the scenario, then assign them with
the auction and with the exact solver and compare the two.

A pair costs the moves to the pickup and on to the destination plus the
pickup and drop-off actions. Pairs beyond the agent's fuel are infeasible.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			epsilon, _ := cmd.Flags().GetFloat64("epsilon")

			runner, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			m, cmp, err := runner.Allocate(cmd.Context(), sc, epsilon)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printMatrix(out, m)
			fmt.Fprintln(out)
			printAllocation(out, "Auction", cmp.Auction, cmp.AuctionCost)
			printAllocation(out, "Optimal", cmp.Optimal, cmp.OptimalCost)
			fmt.Fprintf(out, "Gap: %g\n", cmp.Gap)
			return nil
		},
	}
	addScenarioFlag(cmd)
	cmd.Flags().Float64("epsilon", -1, "auction bid increment (negative uses auction.epsilon)")
	return cmd
}

func printMatrix(w io.Writer, m *allocation.CostMatrix) {
	fmt.Fprintf(w, "%8s", "")
	for _, p := range m.Passengers {
		fmt.Fprintf(w, "%8s", fmt.Sprintf("P%d", p))
	}
	fmt.Fprintln(w)
	for i, a := range m.Agents {
		fmt.Fprintf(w, "%8s", fmt.Sprintf("A%d", a))
		for _, cost := range m.Costs[i] {
			if math.IsInf(cost, 1) {
				fmt.Fprintf(w, "%8s", "-")
				continue
			}
			fmt.Fprintf(w, "%8g", cost)
		}
		fmt.Fprintln(w)
	}
}

func printAllocation(w io.Writer, label string, a *allocation.Allocation, cost float64) {
	agents := lo.Keys(a.Assignments)
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })

	fmt.Fprintf(w, "%s (cost %g", label, cost)
	if a.Bids > 0 {
		fmt.Fprintf(w, ", %d bids", a.Bids)
	}
	fmt.Fprintln(w, "):")
	for _, agent := range agents {
		fmt.Fprintf(w, "  agent %d -> passenger %d\n", agent, a.Assignments[agent])
	}
	if len(a.UnassignedPassengers) > 0 {
		ids := lo.Map(a.UnassignedPassengers, func(p models.PassengerID, _ int) int { return int(p) })
		fmt.Fprintf(w, "  unassigned passengers: %v\n", ids)
	}
}
