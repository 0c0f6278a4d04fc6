// Package cli provides the command-line interface for taxi-relay.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taxi-relay/internal/config"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
	"taxi-relay/internal/scenario"
)

var cfgFile string

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taxirelay",
		Short: "Coordinate fuel-limited taxis on grid maps",
		Long: `taxi-relay plans and simulates multi-agent taxi deliveries on walled grid maps:

  1. Shortest paths and path costs on the map
  2. Agent to passenger allocation by auction and by exact optimization
  3. Hand-off points for passengers no single taxi can deliver
  4. Simulated delivery runs, recorded in the run history
  5. A JSON API over all of the above`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.taxi-relay.yaml)")
	rootCmd.PersistentFlags().String("storage", "", "storage driver: sqlite, file or memory")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newPathCmd(),
		newAllocateCmd(),
		newTransferPointCmd(),
		newDeliverCmd(),
		newRunsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".taxi-relay")
	}

	viper.SetEnvPrefix("TAXIRELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.ReadInConfig()

	opts := logger.DefaultOptions()
	if viper.IsSet("log.level") && viper.GetString("log.level") != "" {
		opts.Level = logger.ParseLevel(viper.GetString("log.level"))
	}
	opts.JSON = viper.GetBool("log.json")
	logger.Init(opts)
}

// loadConfig reads the merged configuration for a command
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadScenario reads the --scenario flag
func loadScenario(cmd *cobra.Command) (*scenario.Scenario, error) {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return nil, fmt.Errorf("--scenario is required")
	}
	return scenario.Load(path)
}

func addScenarioFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("scenario", "s", "", "scenario file (YAML or JSON) with map, agents and passengers")
}

// parseCoordinate reads "row,col"
func parseCoordinate(s string) (models.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinate{}, fmt.Errorf("coordinate %q: want row,col", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("coordinate %q: bad row: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("coordinate %q: bad column: %w", s, err)
	}
	return models.Coordinate{Row: row, Col: col}, nil
}

func coordinateFlag(cmd *cobra.Command, name string) (models.Coordinate, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return models.Coordinate{}, fmt.Errorf("--%s is required", name)
	}
	return parseCoordinate(value)
}

func printMap(w io.Writer, rows []string) {
	for _, row := range rows {
		fmt.Fprintln(w, "  "+row)
	}
}
