package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processOverwrite bool

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Render and upload artifacts for unprocessed catalog entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "process", processOverwrite)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Process(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d: %d succeeded (%d already stored), %d failed\n",
			res.Total, res.Succeeded, res.AlreadyStored, res.Failed)
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVar(&processOverwrite, "overwrite", false, "render and upload even when both objects exist")
	rootCmd.AddCommand(processCmd)
}
