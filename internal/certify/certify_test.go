package certify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

func goodTemplate(marker string) *doc.Document {
	return &doc.Document{
		Name: "Isla Plan 2 Price Sheet",
		Tables: []*doc.Table{{
			Rows: [][]string{
				{"Isla Plan 2 " + marker, "", "", "", ""},
				{"Site", "Price", "Address", "Ready-By", "Notes"},
				{"", "", "", "", ""},
				{"", "", "", "", ""},
			},
		}},
	}
}

type fixture struct {
	engine *Engine
	store  drive.Store
	states *state.Store
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	folders := map[string]string{}
	for _, label := range drive.Labels {
		p := filepath.Join(root, label)
		require.NoError(t, os.Mkdir(p, 0o755))
		folders[label] = p
	}
	store, err := drive.NewFS(folders)
	require.NoError(t, err)

	states := state.New(nil)
	require.NoError(t, states.Open(":memory:"))
	t.Cleanup(func() { states.Close() })

	return &fixture{engine: New(store, states, nil), store: store, states: states, dir: root}
}

func (f *fixture) writeTemplate(t *testing.T, name string, d *doc.Document) {
	t.Helper()
	data, err := d.Save()
	require.NoError(t, err)
	_, err = f.store.Write(context.Background(), drive.FolderTemplates, name, data)
	require.NoError(t, err)
}

func testMapping(file string) sheet.MappingRow {
	return sheet.MappingRow{
		Community:     "Isla",
		Floorplan:     "2",
		FileName:      file,
		InvisibleCode: "[[PS|ISLA2]]",
	}
}

func TestCertifyAllChecksPass(t *testing.T) {
	f := newFixture(t)
	f.writeTemplate(t, "isla_plan2.json", goodTemplate("[[PS|ISLA2]]"))

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.True(t, r.Passed())
	assert.Len(t, r.Checks, 8)
	assert.NoError(t, r.Err())
	assert.False(t, r.Cached)
}

func TestCertifyMissingTemplate(t *testing.T) {
	f := newFixture(t)

	r, err := f.engine.Certify(context.Background(), testMapping("absent.json"))
	require.NoError(t, err)
	assert.False(t, r.Passed())
	// Every check still reports, even though the document never opened.
	assert.Len(t, r.Checks, 8)
	assert.Equal(t, faults.ClassCertification, faults.ClassOf(r.Err()))
}

func TestCertifyMissingMarker(t *testing.T) {
	f := newFixture(t)
	f.writeTemplate(t, "isla_plan2.json", goodTemplate("[[PS|OTHER]]"))

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.False(t, r.Passed())
	assert.False(t, r.Checks[1].Passed)
	assert.Contains(t, r.Checks[1].Reason, "not found")
}

func TestCertifyDuplicateMarkerInDocument(t *testing.T) {
	f := newFixture(t)
	d := goodTemplate("[[PS|ISLA2]]")
	d.Tables[0].Rows[3][4] = "[[PS|ISLA2]]"
	f.writeTemplate(t, "isla_plan2.json", d)

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.False(t, r.Checks[1].Passed)
	assert.Contains(t, r.Checks[1].Reason, "found 2 times")
}

func TestCertifyHeaderOrderFailsIndependently(t *testing.T) {
	f := newFixture(t)
	d := goodTemplate("[[PS|ISLA2]]")
	// Swap Price and Address: every label is still present, only the
	// order is wrong.
	d.Tables[0].Rows[1] = []string{"Site", "Address", "Price", "Ready-By", "Notes"}
	f.writeTemplate(t, "isla_plan2.json", d)

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.True(t, r.Checks[2].Passed, "labels-present check should pass")
	assert.False(t, r.Checks[3].Passed, "order check should fail")
}

func TestCertifyNoBlankRow(t *testing.T) {
	f := newFixture(t)
	d := goodTemplate("[[PS|ISLA2]]")
	d.Tables[0].Rows[2] = []string{"101", "$500,000", "1 Main St", "04/15/2026", ""}
	d.Tables[0].Rows[3] = []string{"102", "$510,000", "2 Main St", "05/01/2026", ""}
	f.writeTemplate(t, "isla_plan2.json", d)

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.False(t, r.Checks[4].Passed)
}

func TestCertifyMarkerInSecondTable(t *testing.T) {
	f := newFixture(t)
	d := goodTemplate("[[PS|ISLA2]]")
	d.Tables = append(d.Tables, &doc.Table{Rows: [][]string{{"legend [[PS|ISLA2]]"}}})
	f.writeTemplate(t, "isla_plan2.json", d)

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.False(t, r.Checks[1].Passed, "marker count check sees both occurrences")
	assert.False(t, r.Checks[5].Passed, "cross-table uniqueness check fails")
}

func TestCertifyMarkerConflictAcrossTemplates(t *testing.T) {
	f := newFixture(t)
	f.writeTemplate(t, "isla_plan2.json", goodTemplate("[[PS|ISLA2]]"))

	// Another mapping already certified with the same invisible code.
	require.NoError(t, f.states.PutCertification(state.Certification{
		MappingKey: "VISTA|3",
		Template:   "vista_plan3.json",
		Marker:     "[[PS|ISLA2]]",
		Checksum:   "other",
		Passed:     true,
	}))

	r, err := f.engine.Certify(context.Background(), testMapping("isla_plan2.json"))
	require.NoError(t, err)
	assert.False(t, r.Checks[6].Passed)
	assert.Contains(t, r.Checks[6].Reason, "VISTA|3")
}

func TestCertifyCacheHitAndInvalidation(t *testing.T) {
	f := newFixture(t)
	f.writeTemplate(t, "isla_plan2.json", goodTemplate("[[PS|ISLA2]]"))
	m := testMapping("isla_plan2.json")

	first, err := f.engine.Certify(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.engine.Certify(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.True(t, second.Passed())

	// Changing the template content invalidates the cache.
	d := goodTemplate("[[PS|ISLA2]]")
	d.Name = "Isla Plan 2 Price Sheet v2"
	f.writeTemplate(t, "isla_plan2.json", d)

	third, err := f.engine.Certify(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, third.Cached)
}
