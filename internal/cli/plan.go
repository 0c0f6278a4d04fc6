package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"taxi-relay/internal/coordinator"
	"taxi-relay/internal/database"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
	"taxi-relay/internal/scenario"
	"taxi-relay/internal/storage"
)

// openRunner loads config and opens the configured store. The caller
// closes the returned store.
func openRunner() (*scenario.Runner, database.DataStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	return scenario.NewRunner(cfg, store, logger.WithComponent("runner")), store, nil
}

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path ORIGIN DEST",
		Short: "Print the shortest path between two cells",
		Long: `Find the shortest path between two cells of the scenario map.

Cells are given as row,col. The path is drawn on the map with the origin
marked O, the destination D and the cells in between '*'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			origin, err := parseCoordinate(args[0])
			if err != nil {
				return err
			}
			dest, err := parseCoordinate(args[1])
			if err != nil {
				return err
			}

			g, err := gridmap.Build(sc.Map)
			if err != nil {
				return err
			}
			coords, actions, err := g.ShortestPath(origin, dest)
			if err != nil {
				return err
			}

			runner, store, err := openRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := runner.Calculator(g).GetPathCost(cmd.Context(), origin, dest)
			if err != nil {
				return err
			}

			marks := make(map[models.Coordinate]byte, len(coords)+2)
			for _, c := range coords {
				marks[c] = '*'
			}
			marks[origin] = 'O'
			marks[dest] = 'D'

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path %s -> %s: %d moves\n", origin, dest, result.Cost)
			printMap(out, g.Render(marks))
			if len(actions) > 0 {
				names := lo.Map(actions, func(a models.Action, _ int) string { return a.String() })
				fmt.Fprintf(out, "Moves: %s\n", strings.Join(names, " "))
			}
			return nil
		},
	}
	addScenarioFlag(cmd)
	return cmd
}

func newTransferPointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer-point",
		Short: "Find hand-off points between two agents",
		Long: `Find where an agent holding a passenger should hand it to another agent.

Every strategy runs unless --strategy names one (route-aligned, fuel-horizon,
exhaustive, or the aliases h1, h2 and optimal).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			g, err := gridmap.Build(sc.Map)
			if err != nil {
				return err
			}

			from, err := coordinateFlag(cmd, "from")
			if err != nil {
				return err
			}
			to, err := coordinateFlag(cmd, "to")
			if err != nil {
				return err
			}
			dest, err := coordinateFlag(cmd, "dest")
			if err != nil {
				return err
			}
			fuel, _ := cmd.Flags().GetInt("fuel")
			strategy, _ := cmd.Flags().GetString("strategy")

			points, err := scenario.TransferPoints(g, coordinator.TransferRequest{
				From:        from,
				FromFuel:    fuel,
				To:          to,
				Destination: dest,
			}, strategy)
			if err != nil {
				return err
			}

			names := lo.Keys(points)
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				tp := points[name]
				fmt.Fprintf(out, "%-14s point %s  holder moves %d  receiver cost %s",
					name, tp.Point, tp.FromCost, receiverCost(tp.ToCost))
				if tp.OffRoute > 0 {
					fmt.Fprintf(out, "  off route %d", tp.OffRoute)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	addScenarioFlag(cmd)
	cmd.Flags().String("from", "", "holder location as row,col")
	cmd.Flags().Int("fuel", 0, "holder fuel")
	cmd.Flags().String("to", "", "receiver location as row,col")
	cmd.Flags().String("dest", "", "passenger destination as row,col")
	cmd.Flags().String("strategy", "", "run only this strategy")
	return cmd
}

func receiverCost(cost int) string {
	if cost < 0 {
		return "unreachable"
	}
	return fmt.Sprintf("%d", cost)
}
