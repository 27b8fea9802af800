// Package sheet ingests the CONTROL and MAPPING tabs of the control
// spreadsheet into strongly typed rows. Raw tabular input is loosely typed
// and case-insensitive; all normalization happens here, once, at the
// boundary. Downstream components never re-interpret raw strings.
package sheet

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Tab names in the control spreadsheet.
const (
	ControlTab = "CONTROL"
	MappingTab = "MAPPING"
)

// TabularSource reads named tabs from the remote tabular-data store.
// Column names are matched case-insensitively.
type TabularSource interface {
	Records(ctx context.Context, tab string) ([]map[string]string, error)
}

// ControlRow is one enabled price-sheet instruction from the CONTROL tab.
type ControlRow struct {
	Community string
	Homesite  string
	Floorplan string
	Price     string
	Address   string
	ReadyBy   string
	Notes     string
	RowIndex  int // 1-based sheet row, for operator messages
}

// MappingRow binds a (community, floorplan) pair to a template file and its
// invisible marker code.
type MappingRow struct {
	Community     string
	Floorplan     string
	FileName      string
	InvisibleCode string
	RowIndex      int
}

// Norm prepares a value for case-insensitive trimmed comparison.
func Norm(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// field fetches a record value by any of the given case-insensitive names.
func field(record map[string]string, names ...string) string {
	for _, want := range names {
		for k, v := range record {
			if strings.EqualFold(strings.TrimSpace(k), want) {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func isEnabled(raw string) bool {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRUE", "1", "YES":
		return true
	}
	return false
}

// ParseControl converts raw CONTROL records into ControlRows. Disabled rows
// and rows missing any identity field are dropped with a log line.
func ParseControl(records []map[string]string, logger *slog.Logger) []ControlRow {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var rows []ControlRow
	for i, record := range records {
		rowIdx := i + 2 // header is sheet row 1
		if !isEnabled(field(record, "enabled")) {
			continue
		}
		row := ControlRow{
			Community: field(record, "community"),
			Homesite:  field(record, "homesite"),
			Floorplan: field(record, "floorplan"),
			Price:     field(record, "price"),
			Address:   field(record, "address"),
			ReadyBy:   field(record, "ready_by", "ready by"),
			Notes:     field(record, "notes"),
			RowIndex:  rowIdx,
		}
		if row.Community == "" || row.Homesite == "" || row.Floorplan == "" {
			logger.Warn("control row missing identity fields, skipping", "row", rowIdx)
			continue
		}
		rows = append(rows, row)
	}
	logger.Debug("parsed control tab", "enabled_rows", len(rows), "total", len(records))
	return rows
}

// ParseMapping converts raw MAPPING records into MappingRows. Rows missing
// any required field are dropped with a log line.
func ParseMapping(records []map[string]string, logger *slog.Logger) []MappingRow {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var rows []MappingRow
	for i, record := range records {
		rowIdx := i + 2
		row := MappingRow{
			Community:     field(record, "community"),
			Floorplan:     field(record, "floorplan"),
			FileName:      field(record, "file_name", "file name"),
			InvisibleCode: field(record, "invisible_code", "invisible code"),
			RowIndex:      rowIdx,
		}
		if row.Community == "" || row.Floorplan == "" || row.FileName == "" || row.InvisibleCode == "" {
			logger.Warn("mapping row missing required fields, skipping", "row", rowIdx)
			continue
		}
		rows = append(rows, row)
	}
	logger.Debug("parsed mapping tab", "rows", len(rows), "total", len(records))
	return rows
}

// FindControl returns the enabled CONTROL row matching the identity triple,
// case-insensitive and trimmed, or nil.
func FindControl(rows []ControlRow, community, homesite, floorplan string) *ControlRow {
	c, h, f := Norm(community), Norm(homesite), Norm(floorplan)
	for i := range rows {
		if Norm(rows[i].Community) == c && Norm(rows[i].Homesite) == h && Norm(rows[i].Floorplan) == f {
			return &rows[i]
		}
	}
	return nil
}

// FindMappings returns every MAPPING row matching (community, floorplan).
// More than one match is a data-authoring defect the caller must surface.
func FindMappings(rows []MappingRow, community, floorplan string) []MappingRow {
	c, f := Norm(community), Norm(floorplan)
	var out []MappingRow
	for _, row := range rows {
		if Norm(row.Community) == c && Norm(row.Floorplan) == f {
			out = append(out, row)
		}
	}
	return out
}
