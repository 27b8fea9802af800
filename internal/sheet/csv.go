package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brickline-labs/pricesheet/internal/faults"
)

// CSVSource reads tabs from CSV files in a directory: CONTROL from
// control.csv, MAPPING from mapping.csv. The first record is the header row.
type CSVSource struct {
	dir string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Records implements TabularSource.
func (s *CSVSource) Records(ctx context.Context, tab string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, strings.ToLower(tab)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, faults.Wrap(faults.ClassAuthorization, err)
		}
		return nil, faults.Wrap(faults.ClassConnectivity, fmt.Errorf("open tab %s: %w", tab, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, faults.Wrap(faults.ClassConnectivity, fmt.Errorf("read tab %s: %w", tab, err))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[strings.TrimSpace(h)] = row[i]
			} else {
				record[strings.TrimSpace(h)] = ""
			}
		}
		records = append(records, record)
	}
	return records, nil
}
