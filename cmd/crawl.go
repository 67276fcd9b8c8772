package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var crawlOutput string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the standards listing without touching the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}
		crawler, err := newCrawler(newFetcher())
		if err != nil {
			return err
		}

		res := crawler.Crawl(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d records over %d pages (%s)\n", len(res.Records), res.Pages, res.Outcome)
		if res.Err != nil {
			zap.L().Warn("crawl stopped early", zap.Error(res.Err))
		}

		if crawlOutput != "" && len(res.Records) > 0 {
			if err := writeRecordsFile(crawlOutput, res.Records); err != nil {
				return err
			}
			zap.L().Info("records written", zap.String("path", crawlOutput), zap.Int("records", len(res.Records)))
		}

		if len(res.Records) == 0 && res.Err != nil {
			return eris.Wrap(res.Err, "crawl")
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "write crawled records to a CSV file")
	rootCmd.AddCommand(crawlCmd)
}
