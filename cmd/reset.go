package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every artifact key so the next run reprocesses the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ClearArtifactKeys(ctx)
		if err != nil {
			return eris.Wrap(err, "reset artifact keys")
		}
		zap.L().Info("artifact keys reset", zap.Int64("entries", n))
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %d entries.\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the catalog schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(migrateCmd)
}
