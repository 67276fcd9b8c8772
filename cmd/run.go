package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/standards-cli/internal/pipeline"
)

var (
	runReset         bool
	runOverwrite     bool
	runSkipArtifacts bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the listing, sync the catalog and process artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run", runOverwrite)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, pipeline.Options{
			Reset:         runReset || cfg.Pipeline.ForceReload,
			SkipArtifacts: runSkipArtifacts,
		})
		if res != nil {
			fmt.Fprint(cmd.OutOrStdout(), pipeline.FormatReport(res))
		}
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runReset, "reset", false, "clear every artifact key before crawling")
	runCmd.Flags().BoolVar(&runOverwrite, "overwrite", false, "render and upload even when both objects exist")
	runCmd.Flags().BoolVar(&runSkipArtifacts, "skip-artifacts", false, "stop after the catalog sync")
	rootCmd.AddCommand(runCmd)
}
