package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

// WriteCSV renders a series in the canonical upload format with an
// absolute datetime column.
func WriteCSV(w io.Writer, s growth.Series) error {
	cw := csv.NewWriter(w)
	header := append([]string{growth.ColumnDatetime, growth.ColumnTarget}, growth.Regressors...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range s {
		rec := make([]string, 0, len(header))
		rec = append(rec, o.Timestamp.Format(TimestampLayout), formatFloat(o.Target))
		for _, name := range growth.Regressors {
			rec = append(rec, formatFloat(o.Regressors[name]))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
