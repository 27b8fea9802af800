package sheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controlRecords() []map[string]string {
	return []map[string]string{
		{"enabled": "TRUE", "community": "Isla", "homesite": "101", "floorplan": "2", "price": "850000", "address": "12 Shore Dr", "ready_by": "04/15/2026", "notes": ""},
		{"enabled": "FALSE", "community": "Isla", "homesite": "102", "floorplan": "2", "price": "860000"},
		{"enabled": "yes", "community": "Nova", "homesite": "7", "floorplan": "1", "price": "720000"},
		{"enabled": "TRUE", "community": "", "homesite": "9", "floorplan": "1"},
	}
}

func TestParseControl(t *testing.T) {
	rows := ParseControl(controlRecords(), nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "Isla", rows[0].Community)
	assert.Equal(t, 2, rows[0].RowIndex)
	assert.Equal(t, "Nova", rows[1].Community)
}

func TestParseControlCaseInsensitiveColumns(t *testing.T) {
	rows := ParseControl([]map[string]string{
		{"ENABLED": "TRUE", "Community": "Isla", "HOMESITE": "101", "Floorplan": "2", "Ready By": "April, 2026"},
	}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "April, 2026", rows[0].ReadyBy)
}

func TestParseMapping(t *testing.T) {
	rows := ParseMapping([]map[string]string{
		{"community": "Isla", "floorplan": "2", "file_name": "ISLA_PLAN2.docx", "invisible_code": "[[PS|ISLA2]]"},
		{"community": "Isla", "floorplan": "3", "file_name": "", "invisible_code": "[[PS|ISLA3]]"},
	}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "ISLA_PLAN2.docx", rows[0].FileName)
}

func TestFindControlNormalizes(t *testing.T) {
	rows := ParseControl(controlRecords(), nil)

	got := FindControl(rows, " isla ", "101", "2")
	require.NotNil(t, got)
	assert.Equal(t, "850000", got.Price)

	assert.Nil(t, FindControl(rows, "Isla", "102", "2"), "disabled row must not match")
	assert.Nil(t, FindControl(rows, "Isla", "999", "2"))
}

func TestFindMappingsReturnsAllMatches(t *testing.T) {
	rows := []MappingRow{
		{Community: "Isla", Floorplan: "2", FileName: "A.docx", InvisibleCode: "[[PS|A]]"},
		{Community: "ISLA", Floorplan: "2", FileName: "B.docx", InvisibleCode: "[[PS|B]]"},
		{Community: "Isla", Floorplan: "3", FileName: "C.docx", InvisibleCode: "[[PS|C]]"},
	}
	assert.Len(t, FindMappings(rows, "isla", "2"), 2)
	assert.Len(t, FindMappings(rows, "Isla", "3"), 1)
	assert.Empty(t, FindMappings(rows, "Nova", "1"))
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	csvData := "enabled,community,homesite,floorplan,price\nTRUE,Isla,101,2,850000\nTRUE,Nova,7,1,720000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "control.csv"), []byte(csvData), 0o644))

	src := NewCSVSource(dir)
	records, err := src.Records(context.Background(), ControlTab)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Isla", records[0]["community"])

	_, err = src.Records(context.Background(), MappingTab)
	assert.Error(t, err, "missing tab file must error")
}
