package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/standards-cli/internal/model"
)

var (
	statusFormat string
	statusRuns   int
)

// statusReport is the payload of the status command and GET /status.
type statusReport struct {
	Status *model.SyncStatus `json:"status" yaml:"status"`
	Runs   []model.SyncRun   `json:"runs" yaml:"runs"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog processing status and recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, err := st.Status(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		runs, err := st.ListRuns(ctx, statusRuns)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		return writeStatusReport(cmd.OutOrStdout(), statusFormat, statusReport{Status: status, Runs: runs})
	},
}

func writeStatusReport(w io.Writer, format string, rep statusReport) error {
	switch format {
	case "", "table":
		formatStatusTable(w, rep)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rep), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func formatStatusTable(w io.Writer, rep statusReport) {
	if rep.Status != nil {
		fmt.Fprintf(w, "Catalog: %d total, %d processed, %d pending\n\n",
			rep.Status.Total, rep.Status.Processed, rep.Status.Pending)
	}
	if len(rep.Runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tDURATION\tCRAWL\tRECORDS\tNEW\tOK\tFAILED\tERROR")
	for _, r := range rep.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			runDuration(r),
			orDash(string(r.CrawlOutcome)),
			r.RecordsCrawled,
			r.RecordsNew,
			r.ArtifactsSucceeded,
			r.ArtifactsFailed,
			truncate(r.Error, 40),
		)
	}
	tw.Flush() //nolint:errcheck
}

func runDuration(r model.SyncRun) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format: table, json or yaml")
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
