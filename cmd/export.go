package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/model"
	"github.com/sells-group/standards-cli/internal/store"
)

const exportPageSize = 500

var (
	exportOut   string
	exportState string
)

// exportColumns is the header of an export: record fields, then catalog state.
var exportColumns = append(append([]string{"identity"}, model.Columns...),
	"bucket", "artifact_key_primary", "artifact_key_secondary", "state")

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to an xlsx or csv file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		state := model.ProcessingState(exportState)
		switch state {
		case "", model.StateUnprocessed, model.StateComplete:
		default:
			return eris.Errorf("unknown state %q (want unprocessed or complete)", exportState)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := collectEntries(ctx, st, state)
		if err != nil {
			return err
		}
		if err := exportEntries(exportOut, entries); err != nil {
			return err
		}

		zap.L().Info("catalog exported", zap.String("path", exportOut), zap.Int("entries", len(entries)))
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), exportOut)
		return nil
	},
}

// entryLister is the store surface the export pages through.
type entryLister interface {
	ListEntries(ctx context.Context, filter store.EntryFilter) ([]model.CatalogEntry, error)
}

func collectEntries(ctx context.Context, st entryLister, state model.ProcessingState) ([]model.CatalogEntry, error) {
	var all []model.CatalogEntry
	for offset := 0; ; offset += exportPageSize {
		page, err := st.ListEntries(ctx, store.EntryFilter{State: state, Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrapf(err, "list entries at offset %d", offset)
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func entryRow(e model.CatalogEntry) []string {
	row := make([]string, 0, len(exportColumns))
	row = append(row, string(e.Identity))
	row = append(row, e.Values()...)
	return append(row, e.Bucket, e.ArtifactKeyPrimary, e.ArtifactKeySecondary, string(e.State()))
}

// exportEntries writes entries to path, choosing the format by extension.
func exportEntries(path string, entries []model.CatalogEntry) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return exportXLSX(path, entries)
	case ".csv":
		return exportCSV(path, entries)
	default:
		return eris.Errorf("export: unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

func exportXLSX(path string, entries []model.CatalogEntry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("standards")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow := func(values []string) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	addRow(exportColumns)
	for _, e := range entries {
		addRow(entryRow(e))
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func exportCSV(path string, entries []model.CatalogEntry) error {
	out, err := os.Create(path) //nolint:gosec // path is a user-supplied output flag
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := writeEntriesCSV(out, entries); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

func writeEntriesCSV(out io.Writer, entries []model.CatalogEntry) error {
	w := csv.NewWriter(out)
	if err := w.Write(exportColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, e := range entries {
		if err := w.Write(entryRow(e)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "destination .xlsx or .csv file (required)")
	exportCmd.Flags().StringVar(&exportState, "state", "", "only export entries in this state (unprocessed or complete)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
