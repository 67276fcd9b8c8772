package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/catalog"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Sync standards records from a CSV file into the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		set, err := readRecordSet(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := catalog.NewSynchronizer(st, bucketName()).Sync(ctx, set)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.Int("records", res.Total),
			zap.Int("inserted", res.New()),
			zap.String("csv", importCSVPath),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records: %d new, %d already cataloged, %d duplicates\n",
			res.Total, res.New(), res.Existing, res.BatchDuplicates)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
