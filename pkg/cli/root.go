// Package cli implements the ekaya-metastore command.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Version    string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:           "ekaya-metastore",
		Short:         "Metadata repository for data-transfer connectors, links and jobs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "path to config.yaml (optional)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// load reads the configuration and builds the process logger.
func (o *RootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(o.ConfigPath, o.Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.IsLocal())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
