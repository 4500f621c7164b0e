package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metastore"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// SchemaOptions holds flags for the schema commands.
type SchemaOptions struct {
	Driver string
	Schema string
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or install the repository layout",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the DDL for a driver without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaPrint(cmd.OutOrStdout(), opts)
		},
	}
	printCmd.Flags().StringVar(&opts.Driver, "driver", config.DriverPostgres, "postgres|sqlite")
	printCmd.Flags().StringVar(&opts.Schema, "schema", schema.DefaultSchema, "PostgreSQL schema name")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the tables as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaDescribe(cmd.OutOrStdout())
		},
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Create the layout in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := database.NewConnection(cmd.Context(), metastore.DatabaseConfig(&cfg.Database), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := metastore.New(db, metastore.ServiceOptions(cfg), nil, logger)
			if err := repo.Schema.Install(cmd.Context()); err != nil {
				return err
			}
			version, err := repo.Schema.Verify(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "repository layout version %s installed\n", version)
			return err
		},
	}

	cmd.AddCommand(printCmd, describeCmd, installCmd)
	return cmd
}

func runSchemaPrint(w io.Writer, opts *SchemaOptions) error {
	d, err := database.NewDialect(opts.Driver, opts.Schema)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, schema.Script(schema.CreateStatements(d, schema.Tables)))
	return err
}

func runSchemaDescribe(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(schema.Tables); err != nil {
		return fmt.Errorf("failed to encode tables: %w", err)
	}
	return enc.Close()
}
