package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	indexapp "github.com/emory-libraries/fedora-indexdata/internal/app"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

const (
	// Must stay below the server write timeout so the middleware can answer first
	serverRequestTimeout = 10 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the index data API server",
		Long: `Start the index data API server.

The server requires a configuration file (--config) that specifies:
- the Fedora repository to read objects from
- the search index URL handed to indexers
- the allow-list for the discovery endpoint
- the object types whose content models are advertised

The file is watched and valid changes take effect without a restart.
See the examples/ directory for sample configurations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	if err := v.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	path, err := configPath(v)
	if err != nil {
		return err
	}

	settings, err := config.NewManager(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := v.GetString("address")
	slog.Info("Starting index data API server", "address", address)

	server, err := indexapp.NewIndexDataApp(ctx,
		indexapp.WithConfigManager(settings),
		indexapp.WithAddress(address),
		indexapp.WithRequestTimeout(serverRequestTimeout),
	)
	if err != nil {
		_ = settings.Close()
		return fmt.Errorf("failed to build application: %w", err)
	}

	return server.Run(ctx)
}
