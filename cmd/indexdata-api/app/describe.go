package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	indexapp "github.com/emory-libraries/fedora-indexdata/internal/app"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

func newDescribeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the discovery document served at /indexdata/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			components, err := loadComponents(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer shutdown(components)

			desc, err := components.Service.Describe(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to describe index configuration: %w", err)
			}
			return printJSON(cmd, desc)
		},
	}
}

func newIndexDataCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "index-data PID",
		Short: "Print the index fields of one repository object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := loadComponents(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer shutdown(components)

			fields, err := components.Service.IndexData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, fields)
		},
	}
}

// loadComponents wires the service from a one-off read of the config file
func loadComponents(ctx context.Context, v *viper.Viper) (*indexapp.AppComponents, error) {
	path, err := configPath(v)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return indexapp.NewComponents(ctx, indexapp.WithConfig(cfg))
}

func shutdown(components *indexapp.AppComponents) {
	if err := components.Telemetry.Shutdown(context.Background()); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}
