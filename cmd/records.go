package main

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/model"
)

// readRecordSet parses a CSV whose header names the record columns. Unknown
// headers are ignored; absent columns are left out of the set so the sync
// can reject a file lacking a key column.
func readRecordSet(r io.Reader) (model.RecordSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return model.RecordSet{}, eris.New("csv: empty input")
	}
	if err != nil {
		return model.RecordSet{}, eris.Wrap(err, "csv: read header")
	}

	var set model.RecordSet
	blank := model.StandardRecord{}
	index := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		col := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case seen[col]:
			zap.L().Warn("duplicate csv column, keeping first", zap.String("column", col))
		case !blank.Set(col, ""):
			zap.L().Debug("ignoring csv column", zap.String("column", col))
		default:
			seen[col] = true
			index[i] = col
			set.Columns = append(set.Columns, col)
		}
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "csv: read line %d", line)
		}
		var rec model.StandardRecord
		for i, v := range row {
			if i < len(index) && index[i] != "" {
				rec.Set(index[i], strings.TrimSpace(v))
			}
		}
		set.Records = append(set.Records, rec)
	}
	return set, nil
}

// writeRecordsFile writes records to a new CSV file at path.
func writeRecordsFile(path string, records []model.StandardRecord) error {
	f, err := os.Create(path) //nolint:gosec // path is a user-supplied output flag
	if err != nil {
		return eris.Wrapf(err, "csv: create %s", path)
	}
	if err := writeRecords(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "csv: close %s", path)
	}
	return nil
}

// writeRecords writes records as CSV with a model.Columns header.
func writeRecords(w io.Writer, records []model.StandardRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return eris.Wrap(err, "csv: write record")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
