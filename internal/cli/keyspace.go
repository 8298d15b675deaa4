package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/keyspace"
	"github.com/spf13/cobra"
)

func newDecodeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <key>",
		Short: "Print a key decoded by its Redis type",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			v, err := e.manager.Decode(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keyspace.Materialize(v))
		}),
	}
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump every key to a JSON document",
		Long: `Walk the keyspace with SCAN and write one JSON object mapping each key to
its decoded value. Use --out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			path := out
			if path == "" {
				path = e.cfg.Export.Path
			}
			if path == "-" {
				return e.manager.Export(ctx, cmd.OutOrStdout())
			}
			if err := e.manager.ExportFile(ctx, path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return err
		}),
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: export.path from config)")

	return cmd
}

func newFlushCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every key in the selected database",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if !yes {
				return errors.New("refusing to flush without --yes")
			}
			return nil
		},
		RunE: withEnv(opts, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			if err := e.manager.FlushAll(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "flushed")
			return err
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")

	return cmd
}
