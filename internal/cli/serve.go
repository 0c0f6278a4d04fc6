package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taxi-relay/internal/logger"
	"taxi-relay/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, nil)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			addr, err := srv.Start()
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			log := logger.WithComponent("serve")
			select {
			case sig := <-shutdown:
				log.Info("received signal, starting graceful shutdown", "signal", sig.String())
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("could not gracefully shutdown the server: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
