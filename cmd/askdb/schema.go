package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/askdb/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var (
		conn   connectFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema of a database as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateDatabase(); err != nil {
				return err
			}
			return a.printSchema(cmd.Context(), cmd.OutOrStdout(), &conn, format)
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func (a *app) printSchema(ctx context.Context, out io.Writer, conn *connectFlags, format string) error {
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}

	m, h, err := a.open(ctx, conn)
	if err != nil {
		return err
	}
	defer m.Close()

	ictx, cancel := context.WithTimeout(ctx, a.cfg.Database.IntrospectTimeout)
	defer cancel()
	snap, err := schema.Inspect(ictx, h.DB)
	if err != nil {
		return err
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(snap)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
