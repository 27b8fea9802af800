package engine

// run.go - One complete processing cycle under the run lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// RunReport summarizes one cycle.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
	Invalid   []Invalid
	Succeeded int
	Failed    int
	Skipped   int
	DryRun    int
}

// HadFailures reports whether the cycle had any failure, including
// unparseable filenames.
func (r *RunReport) HadFailures() bool {
	return r.Failed > 0 || len(r.Invalid) > 0
}

// Run executes one complete cycle: acquire the lock, load the control
// and mapping tabs, discover releases, process each sequentially, and
// release the lock. Per-release failures are isolated; the returned
// error covers only failures that abort the whole cycle (lock, tab
// load, discovery, state store).
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	report := &RunReport{RunID: runID, StartedAt: time.Now().UTC()}
	log := e.logger.With("run_id", runID)

	if err := e.states.AcquireLock(runID, e.opts.LockStaleness); err != nil {
		return nil, err
	}
	defer func() {
		if err := e.states.ReleaseLock(runID); err != nil {
			log.Error("failed to release run lock", "error", err)
		}
	}()
	log.Info("run started", "dry_run", e.opts.DryRun, "overwrite", e.opts.Overwrite)

	controls, mappings, err := e.loadTabs(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("tabs loaded", "control_rows", len(controls), "mapping_rows", len(mappings))

	releases, invalid, err := e.Discover(ctx)
	if err != nil {
		return nil, err
	}
	report.Invalid = invalid
	for _, inv := range invalid {
		if err := e.states.AppendAudit(inv.FileName, state.OutcomeFailed, inv.Err.Error(), runID); err != nil {
			return report, err
		}
		e.quarantine(ctx, log, inv)
	}

	for _, r := range releases {
		res, err := e.Process(ctx, r, controls, mappings, runID)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
		switch res.Outcome {
		case state.OutcomeSucceeded:
			report.Succeeded++
		case state.OutcomeFailed:
			report.Failed++
		case state.OutcomeSkipped:
			report.Skipped++
		case state.OutcomeDryRun:
			report.DryRun++
		}
		if err := e.states.HeartbeatLock(runID); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("run finished",
		"succeeded", report.Succeeded, "failed", report.Failed,
		"skipped", report.Skipped, "dry_run", report.DryRun,
		"invalid", len(report.Invalid), "duration", report.Duration)
	return report, nil
}

// quarantine moves a release the engine refuses to process out of the
// inbox so later cycles do not rediscover and re-audit it. A failed
// move is logged and left for the next cycle; it never aborts the run.
func (e *Engine) quarantine(ctx context.Context, log *slog.Logger, inv Invalid) {
	err := e.withRetry(ctx, "quarantine release", func(ctx context.Context) error {
		return e.store.Move(ctx, inv.FileName, drive.FolderInbox, drive.FolderQuarantine)
	})
	if err != nil {
		log.Error("failed to quarantine release", "file", inv.FileName, "error", err)
		return
	}
	log.Warn("quarantined release", "file", inv.FileName, "reason", inv.Err.Error())
}

// loadTabs reads and parses both tabs as a read-only snapshot for the
// cycle.
func (e *Engine) loadTabs(ctx context.Context) ([]sheet.ControlRow, []sheet.MappingRow, error) {
	var controls []sheet.ControlRow
	err := e.withRetry(ctx, "load control tab", func(ctx context.Context) error {
		records, err := e.tabs.Records(ctx, sheet.ControlTab)
		if err != nil {
			return err
		}
		controls = sheet.ParseControl(records, e.logger)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var mappings []sheet.MappingRow
	err = e.withRetry(ctx, "load mapping tab", func(ctx context.Context) error {
		records, err := e.tabs.Records(ctx, sheet.MappingTab)
		if err != nil {
			return err
		}
		mappings = sheet.ParseMapping(records, e.logger)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return controls, mappings, nil
}
