package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/standards-cli/internal/model"
)

// FormatReport renders a human-readable summary of a run.
func FormatReport(res *RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Standards Sync Report: %s\n", orDash(res.RunID))
	fmt.Fprintf(&b, "Duration: %s\n\n", res.Duration.Round(time.Millisecond))

	b.WriteString("## Crawl\n")
	fmt.Fprintf(&b, "- Outcome: %s\n", orDash(string(res.Crawl.Outcome)))
	fmt.Fprintf(&b, "- Pages: %d\n", res.Crawl.Pages)
	fmt.Fprintf(&b, "- Records: %d\n", res.Crawl.Records)
	if res.Crawl.Error != "" {
		fmt.Fprintf(&b, "  Error: %s\n", res.Crawl.Error)
	}
	b.WriteString("\n")

	b.WriteString("## Sync\n")
	if res.Sync == nil {
		b.WriteString("Not run.\n\n")
	} else {
		fmt.Fprintf(&b, "- Total: %d\n", res.Sync.Total)
		fmt.Fprintf(&b, "- Already cataloged: %d\n", res.Sync.Existing)
		fmt.Fprintf(&b, "- Batch duplicates: %d\n", res.Sync.BatchDuplicates)
		fmt.Fprintf(&b, "- Inserted: %d\n", res.Sync.New())
		if skipped := len(res.Sync.Inserted) - res.Sync.New(); skipped > 0 {
			fmt.Fprintf(&b, "- Skipped on conflict: %d\n", skipped)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Artifacts\n")
	if res.Reset > 0 {
		fmt.Fprintf(&b, "- Reset: %d\n", res.Reset)
	}
	fmt.Fprintf(&b, "- Processed: %d\n", res.Artifacts.Total)
	fmt.Fprintf(&b, "- Succeeded: %d (already stored: %d)\n", res.Artifacts.Succeeded, res.Artifacts.AlreadyStored)
	fmt.Fprintf(&b, "- Failed: %d\n\n", res.Artifacts.Failed)

	b.WriteString("## Catalog\n")
	writeStatus(&b, "Before", res.InitialStatus)
	writeStatus(&b, "After", res.FinalStatus)

	return b.String()
}

func writeStatus(b *strings.Builder, label string, s *model.SyncStatus) {
	if s == nil {
		fmt.Fprintf(b, "- %s: -\n", label)
		return
	}
	fmt.Fprintf(b, "- %s: %d total, %d processed, %d pending\n", label, s.Total, s.Processed, s.Pending)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
