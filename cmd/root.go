package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "standards-cli",
	Short: "FDA recognized consensus standards sync",
	Long:  "Crawls the FDA recognized standards listing, keeps a deduplicated catalog in the database, and renders PDF and HTML artifacts for each standard into object storage.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
