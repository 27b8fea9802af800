package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/match"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// harness is a complete engine over temp folders, a CSV tab source, and
// an in-memory state store.
type harness struct {
	engine *Engine
	store  drive.Store
	states *state.Store
	csvDir string
	root   string
}

func newHarness(t *testing.T, opts Options) *harness {
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

	csvDir := filepath.Join(root, "tabs")
	require.NoError(t, os.Mkdir(csvDir, 0o755))

	states := state.New(nil)
	require.NoError(t, states.Open(":memory:"))
	t.Cleanup(func() { states.Close() })

	opts.RetryBase = time.Millisecond
	return &harness{
		engine: New(store, sheet.NewCSVSource(csvDir), states, opts, nil),
		store:  store,
		states: states,
		csvDir: csvDir,
		root:   root,
	}
}

func (h *harness) writeTabs(t *testing.T, control, mapping string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.csvDir, "control.csv"), []byte(control), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.csvDir, "mapping.csv"), []byte(mapping), 0o644))
}

func (h *harness) writeTemplate(t *testing.T, name, marker string) {
	t.Helper()
	d := &doc.Document{
		Name: strings.TrimSuffix(name, ".json"),
		Tables: []*doc.Table{{
			Rows: [][]string{
				{"Price Sheet " + marker, "", "", "", ""},
				{"Site", "Price", "Address", "Ready-By", "Notes"},
				{"", "", "", "", ""},
				{"", "", "", "", ""},
			},
		}},
	}
	data, err := d.Save()
	require.NoError(t, err)
	_, err = h.store.Write(context.Background(), drive.FolderTemplates, name, data)
	require.NoError(t, err)
}

func (h *harness) dropRelease(t *testing.T, name string) {
	t.Helper()
	_, err := h.store.Write(context.Background(), drive.FolderInbox, name, []byte("release"))
	require.NoError(t, err)
}

func (h *harness) readOutput(t *testing.T, name string) *doc.Document {
	t.Helper()
	data, err := h.store.Read(context.Background(), drive.FolderOutput, name)
	require.NoError(t, err)
	d, err := doc.Open(data)
	require.NoError(t, err)
	return d
}

const (
	controlHeader = "enabled,community,homesite,floorplan,price,address,ready_by,notes\n"
	mappingHeader = "community,floorplan,file_name,invisible_code\n"
)

func singleRelease(t *testing.T, opts Options) *harness {
	t.Helper()
	h := newHarness(t, opts)
	h.writeTabs(t,
		controlHeader+"TRUE,Isla,101,2,512000,12 Shorebird Way,04/15/2026,Corner lot\n",
		mappingHeader+"Isla,2,isla_plan2.json,[[PS|ISLA2]]\n")
	h.writeTemplate(t, "isla_plan2.json", "[[PS|ISLA2]]")
	h.dropRelease(t, "Isla_101_2.pdf")
	return h
}

func TestRunHappyPath(t *testing.T) {
	h := singleRelease(t, Options{})

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, PhaseRecorded, report.Results[0].Phase)
	assert.Equal(t, doc.ActionAppended, report.Results[0].Action)

	// The editable output has the formatted row and keeps the marker.
	out := h.readOutput(t, "Isla_101_2_PriceSheet.json")
	row := out.Tables[0].Rows[2]
	assert.Equal(t, []string{"101", "$512,000", "12 Shorebird Way", "04/15/2026", "Corner lot"}, row)
	assert.NotEmpty(t, out.FindMarker("[[PS|ISLA2]]"))

	// The fixed-layout output ships without the marker.
	fixed, err := h.store.Read(context.Background(), drive.FolderOutput, "Isla_101_2_PriceSheet.txt")
	require.NoError(t, err)
	assert.NotContains(t, string(fixed), "[[PS|ISLA2]]")
	assert.Contains(t, string(fixed), "$512,000")

	entry, err := h.states.LookupManifest("ISLA|101|2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, state.StatusSucceeded, entry.Status)
	assert.NotEmpty(t, entry.Checksum)

	// Lock is released at cycle end.
	lock, err := h.states.CurrentLock()
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestRunIdempotentSecondPass(t *testing.T) {
	h := singleRelease(t, Options{})

	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, state.OutcomeSkipped, report.Results[0].Outcome)

	audit, err := h.states.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, state.OutcomeSkipped, audit[0].Outcome)
}

func TestRunDryRun(t *testing.T) {
	h := singleRelease(t, Options{DryRun: true})

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DryRun)

	// Nothing uploaded.
	files, err := h.store.List(context.Background(), drive.FolderOutput)
	require.NoError(t, err)
	assert.Empty(t, files)

	entry, err := h.states.LookupManifest("ISLA|101|2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, state.StatusDryRun, entry.Status)

	// A dry run does not satisfy idempotency: a later run still processes.
	again, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, again.DryRun)
}

func TestRunOverwriteReplacesRow(t *testing.T) {
	h := singleRelease(t, Options{})
	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	// Price changes upstream; rerun with overwrite.
	h.writeTabs(t,
		controlHeader+"TRUE,Isla,101,2,525000,12 Shorebird Way,05/01/2026,Corner lot\n",
		mappingHeader+"Isla,2,isla_plan2.json,[[PS|ISLA2]]\n")
	h.engine.opts.Overwrite = true

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, doc.ActionReplaced, report.Results[0].Action)

	out := h.readOutput(t, "Isla_101_2_PriceSheet.json")
	var siteRows int
	for _, row := range out.Tables[0].Rows[2:] {
		if len(row) > 0 && row[0] == "101" {
			siteRows++
			assert.Equal(t, "$525,000", row[1])
		}
	}
	assert.Equal(t, 1, siteRows, "overwrite must replace, not duplicate")
}

func TestRunFailureIsolation(t *testing.T) {
	h := newHarness(t, Options{})
	var control, mapping strings.Builder
	control.WriteString(controlHeader)
	mapping.WriteString(mappingHeader)
	for i := 1; i <= 5; i++ {
		control.WriteString(fmt.Sprintf("TRUE,Isla,%d,%d,500000,%d Main St,04/15/2026,\n", 100+i, i, i))
		mapping.WriteString(fmt.Sprintf("Isla,%d,isla_plan%d.json,[[PS|ISLA%d]]\n", i, i, i))
		if i != 3 {
			// Template 3 is missing: certification for release 3 fails.
			h.writeTemplate(t, fmt.Sprintf("isla_plan%d.json", i), fmt.Sprintf("[[PS|ISLA%d]]", i))
		}
		h.dropRelease(t, fmt.Sprintf("Isla_%d_%d.pdf", 100+i, i))
	}
	h.writeTabs(t, control.String(), mapping.String())

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	entry, err := h.states.LookupManifest("ISLA|103|3")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, state.StatusFailed, entry.Status)
	assert.Contains(t, entry.Detail, "certification")
}

func TestRunMatcherFailuresRecorded(t *testing.T) {
	h := newHarness(t, Options{})
	h.writeTabs(t,
		controlHeader+"TRUE,Isla,101,2,512000,12 Shorebird Way,04/15/2026,\n",
		mappingHeader+"Isla,2,isla_plan2.json,[[PS|ISLA2]]\n")
	h.writeTemplate(t, "isla_plan2.json", "[[PS|ISLA2]]")
	h.dropRelease(t, "Isla_101_2.pdf")       // fine
	h.dropRelease(t, "Isla-101-2.pdf")       // invalid filename
	h.dropRelease(t, "Vista_300_9.pdf")      // no control row

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Invalid, 1)
	assert.Equal(t, "Isla-101-2.pdf", report.Invalid[0].FileName)
	assert.Equal(t, faults.ClassInvalidFilename, faults.ClassOf(report.Invalid[0].Err))

	var vista Result
	for _, res := range report.Results {
		if res.Release.FileName == "Vista_300_9.pdf" {
			vista = res
		}
	}
	assert.Equal(t, state.OutcomeFailed, vista.Outcome)
	assert.Equal(t, faults.ClassControlRowMissing, faults.ClassOf(vista.Err))
}

func TestRunQuarantinesInvalidNames(t *testing.T) {
	h := singleRelease(t, Options{})
	h.dropRelease(t, "Isla-101-2.pdf")

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Invalid, 1)

	// The defective file left the inbox for the quarantine folder.
	_, ok, err := h.store.Stat(context.Background(), drive.FolderInbox, "Isla-101-2.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = h.store.Stat(context.Background(), drive.FolderQuarantine, "Isla-101-2.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	// Later cycles do not rediscover it, so its FAILED audit row stays
	// singular no matter how many cycles run.
	for i := 0; i < 2; i++ {
		again, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.Invalid)
	}
	audit, err := h.states.ListAudit(0)
	require.NoError(t, err)
	var invalidRows int
	for _, entry := range audit {
		if entry.ReleaseKey == "Isla-101-2.pdf" {
			invalidRows++
		}
	}
	assert.Equal(t, 1, invalidRows)
}

func TestRunFilters(t *testing.T) {
	h := newHarness(t, Options{Filters: match.Filters{Community: "isla"}})
	h.writeTabs(t,
		controlHeader+
			"TRUE,Isla,101,2,512000,12 Shorebird Way,04/15/2026,\n"+
			"TRUE,Vista,300,9,610000,9 Ridge Rd,05/01/2026,\n",
		mappingHeader+
			"Isla,2,isla_plan2.json,[[PS|ISLA2]]\n"+
			"Vista,9,vista_plan9.json,[[PS|VISTA9]]\n")
	h.writeTemplate(t, "isla_plan2.json", "[[PS|ISLA2]]")
	h.writeTemplate(t, "vista_plan9.json", "[[PS|VISTA9]]")
	h.dropRelease(t, "Isla_101_2.pdf")
	h.dropRelease(t, "Vista_300_9.pdf")

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "Isla_101_2.pdf", report.Results[0].Release.FileName)
}

func TestRunRefusedWhileLockHeld(t *testing.T) {
	h := singleRelease(t, Options{})
	require.NoError(t, h.states.AcquireLock("another-run", time.Hour))

	_, err := h.engine.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockHeld, faults.ClassOf(err))
}

func TestRunDisabledControlRowIsMissing(t *testing.T) {
	h := newHarness(t, Options{})
	h.writeTabs(t,
		controlHeader+"FALSE,Isla,101,2,512000,12 Shorebird Way,04/15/2026,\n",
		mappingHeader+"Isla,2,isla_plan2.json,[[PS|ISLA2]]\n")
	h.writeTemplate(t, "isla_plan2.json", "[[PS|ISLA2]]")
	h.dropRelease(t, "Isla_101_2.pdf")

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, faults.ClassControlRowMissing, faults.ClassOf(report.Results[0].Err))
}

func TestPollOnce(t *testing.T) {
	h := singleRelease(t, Options{})

	report, err := h.engine.Poll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestPollStopsOnCancel(t *testing.T) {
	h := singleRelease(t, Options{PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var report *RunReport
	var err error
	go func() {
		report, err = h.engine.Poll(ctx, false)
		close(done)
	}()

	// Give the first cycle time to finish, then cancel.
	require.Eventually(t, func() bool {
		entry, lerr := h.states.LookupManifest("ISLA|101|2")
		return lerr == nil && entry != nil && entry.Status == state.StatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	<-done
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Succeeded)
}
