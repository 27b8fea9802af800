package engine

// process.go - Per-release state machine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/match"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// Phase is a state of the per-release machine.
type Phase string

const (
	PhaseDiscovered Phase = "DISCOVERED"
	PhaseMatched    Phase = "MATCHED"
	PhaseCertified  Phase = "CERTIFIED"
	PhaseRendered   Phase = "RENDERED"
	PhaseUploaded   Phase = "UPLOADED"
	PhaseRecorded   Phase = "RECORDED"
	PhaseFailed     Phase = "FAILED"
)

// Result is the terminal outcome of one release within a run.
type Result struct {
	Release     match.Release
	Phase       Phase
	Outcome     state.Outcome
	Err         error
	DocOutput   string
	FixedOutput string
	Action      doc.WriteAction
}

// Process drives one release from DISCOVERED to a terminal phase. It
// always records its outcome in the audit log, and in the manifest
// whenever the release has a resolvable identity; errors returned here
// are state-store failures only.
func (e *Engine) Process(ctx context.Context, r match.Release, controls []sheet.ControlRow, mappings []sheet.MappingRow, runID string) (Result, error) {
	res := Result{Release: r, Phase: PhaseDiscovered}
	key := r.Key()
	log := e.logger.With("release", r.FileName, "source", r.SourceID, "key", key)

	fail := func(phase Phase, err error) (Result, error) {
		res.Phase = PhaseFailed
		res.Outcome = state.OutcomeFailed
		res.Err = err
		log.Error("release failed", "phase", phase, "class", faults.ClassOf(err), "error", err)
		if serr := e.states.RecordManifest(state.ManifestEntry{
			Key:       key,
			Community: r.Community,
			Homesite:  r.Homesite,
			Floorplan: r.Floorplan,
			Status:    state.StatusFailed,
			Detail:    err.Error(),
		}); serr != nil {
			return res, serr
		}
		return res, e.states.AppendAudit(key, state.OutcomeFailed, err.Error(), runID)
	}

	// DISCOVERED -> MATCHED
	matched, err := match.Resolve(r, controls, mappings)
	if err != nil {
		return fail(PhaseDiscovered, err)
	}
	res.Phase = PhaseMatched
	log.Debug("release matched", "template", matched.Mapping.FileName, "control_row", matched.Control.RowIndex)

	// MATCHED -> CERTIFIED
	report, err := e.certifier.Certify(ctx, matched.Mapping)
	if err != nil {
		return res, err
	}
	if cerr := report.Err(); cerr != nil {
		return fail(PhaseMatched, cerr)
	}
	res.Phase = PhaseCertified

	// Idempotency gate: prior success and no overwrite means no side
	// effects at all, just an audit record.
	prior, err := e.states.LookupManifest(key)
	if err != nil {
		return res, err
	}
	if prior != nil && prior.Status == state.StatusSucceeded && !e.opts.Overwrite {
		res.Phase = PhaseRecorded
		res.Outcome = state.OutcomeSkipped
		res.DocOutput = prior.DocOutput
		res.FixedOutput = prior.FixedOutput
		log.Info("release already processed, skipping")
		return res, e.states.AppendAudit(key, state.OutcomeSkipped, "manifest records prior success", runID)
	}

	// PENDING marks an attempt in flight so a crash here is visible on
	// restart.
	if err := e.states.RecordManifest(state.ManifestEntry{
		Key:       key,
		Community: r.Community,
		Homesite:  r.Homesite,
		Floorplan: r.Floorplan,
		Status:    state.StatusPending,
	}); err != nil {
		return res, err
	}

	// CERTIFIED -> RENDERED
	rendered, err := e.render(ctx, r, matched)
	if err != nil {
		return fail(PhaseCertified, err)
	}
	res.Phase = PhaseRendered
	res.Action = rendered.action
	res.DocOutput = rendered.docName
	res.FixedOutput = rendered.fixedName

	// RENDERED -> UPLOADED
	if e.opts.DryRun {
		log.Info("dry run: skipping upload", "doc", rendered.docName, "fixed", rendered.fixedName)
	} else {
		err := e.withRetry(ctx, "upload outputs", func(ctx context.Context) error {
			if _, err := e.store.Write(ctx, drive.FolderOutput, rendered.docName, rendered.editable); err != nil {
				return faults.Wrap(faults.ClassUpload, err)
			}
			if _, err := e.store.Write(ctx, drive.FolderOutput, rendered.fixedName, rendered.fixed); err != nil {
				return faults.Wrap(faults.ClassUpload, err)
			}
			return nil
		})
		if err != nil {
			return fail(PhaseRendered, err)
		}
	}
	res.Phase = PhaseUploaded

	// UPLOADED -> RECORDED
	status := state.StatusSucceeded
	outcome := state.OutcomeSucceeded
	if e.opts.DryRun {
		status = state.StatusDryRun
		outcome = state.OutcomeDryRun
	}
	if err := e.states.RecordManifest(state.ManifestEntry{
		Key:         key,
		Community:   r.Community,
		Homesite:    r.Homesite,
		Floorplan:   r.Floorplan,
		Status:      status,
		Checksum:    rendered.checksum,
		DocOutput:   rendered.docName,
		FixedOutput: rendered.fixedName,
	}); err != nil {
		return res, err
	}
	if err := e.states.AppendAudit(key, outcome, string(rendered.action), runID); err != nil {
		return res, err
	}
	res.Phase = PhaseRecorded
	res.Outcome = outcome
	log.Info("release recorded", "status", status, "action", rendered.action, "doc", rendered.docName)
	return res, nil
}

// renderedDoc holds the output pair of one render.
type renderedDoc struct {
	docName   string
	fixedName string
	editable  []byte
	fixed     []byte
	checksum  string
	action    doc.WriteAction
}

// render inserts the control row's data into the certified template and
// produces the output pair. Under overwrite, a previous editable output
// for this release is reopened so the row is replaced in place instead
// of duplicated. The invisible marker stays in the editable form (a
// later overwrite needs it to find the table) and is stripped from the
// fixed-layout form.
func (e *Engine) render(ctx context.Context, r match.Release, m *match.Result) (*renderedDoc, error) {
	docName := fmt.Sprintf("%s_%s_%s_PriceSheet.json", r.Community, r.Homesite, r.Floorplan)
	fixedName := fmt.Sprintf("%s_%s_%s_PriceSheet.txt", r.Community, r.Homesite, r.Floorplan)

	var data []byte
	err := e.withRetry(ctx, "read render source", func(ctx context.Context) error {
		if e.opts.Overwrite {
			_, exists, err := e.store.Stat(ctx, drive.FolderOutput, docName)
			if err != nil {
				return err
			}
			if exists {
				data, err = e.store.Read(ctx, drive.FolderOutput, docName)
				return err
			}
		}
		var err error
		data, err = e.store.Read(ctx, drive.FolderTemplates, m.Mapping.FileName)
		return err
	})
	if err != nil {
		return nil, err
	}

	d, err := doc.Open(data)
	if err != nil {
		return nil, faults.Wrap(faults.ClassRender, err)
	}

	// Price and ready-by formatting happens inside the row write.
	values := doc.RowValues{
		Site:    m.Control.Homesite,
		Price:   m.Control.Price,
		Address: m.Control.Address,
		ReadyBy: m.Control.ReadyBy,
		Notes:   m.Control.Notes,
	}
	wr, err := d.WriteRow(m.Mapping.InvisibleCode, values, e.opts.Overwrite)
	if err != nil {
		return nil, faults.Wrap(faults.ClassRender, err)
	}

	editable, err := d.Save()
	if err != nil {
		return nil, faults.Wrap(faults.ClassRender, err)
	}
	d.RemoveMarker(m.Mapping.InvisibleCode)
	fixed := doc.ExportFixed(d)

	sum := sha256.Sum256(editable)
	return &renderedDoc{
		docName:   docName,
		fixedName: fixedName,
		editable:  editable,
		fixed:     fixed,
		checksum:  hex.EncodeToString(sum[:]),
		action:    wr.Action,
	}, nil
}
