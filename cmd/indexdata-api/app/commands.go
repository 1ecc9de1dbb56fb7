// Package app provides the command line interface of the index data API server.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/versions"
)

// NewRootCmd creates the root command with all subcommands attached.
// Flags are bound into a viper instance owned by the returned command, so
// INDEXDATA_CONFIG and INDEXDATA_ADDRESS override unset flags.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "indexdata-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Fedora index data API server",
		Long: `Fedora index data API server tells a search indexer which Fedora content
models to index and where the search index lives, and serves the index fields
of individual repository objects.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newDescribeCmd(v))
	rootCmd.AddCommand(newIndexDataCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}

			if format == "json" {
				return printJSON(cmd, info)
			}

			slog.Info("indexdata-api version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// configPath returns the --config flag or INDEXDATA_CONFIG
func configPath(v *viper.Viper) (string, error) {
	path := v.GetString("config")
	if path == "" {
		return "", fmt.Errorf("a configuration file is required: set --config or %s_CONFIG", config.EnvPrefix)
	}
	return path, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	output, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output as JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return err
}
