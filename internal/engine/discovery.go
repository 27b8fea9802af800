package engine

// discovery.go - Release file discovery from the inbox folder

import (
	"context"

	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/match"
)

// Invalid is a discovered file whose name does not decompose into a
// release identity. It has no release key, only a filename.
type Invalid struct {
	FileName string
	Err      error
}

// Discover lists the inbox and decomposes each filename. Files that do
// not parse are returned separately so the run can report them without
// aborting.
func (e *Engine) Discover(ctx context.Context) ([]match.Release, []Invalid, error) {
	var files []drive.File
	err := e.withRetry(ctx, "list inbox", func(ctx context.Context) error {
		var err error
		files, err = e.store.List(ctx, drive.FolderInbox)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var releases []match.Release
	var invalid []Invalid
	for _, f := range files {
		r, err := match.ParseFilename(f.Name, f.ID)
		if err != nil {
			e.logger.Warn("unparseable release filename", "file", f.Name, "error", err)
			invalid = append(invalid, Invalid{FileName: f.Name, Err: err})
			continue
		}
		if !e.opts.Filters.Allows(r) {
			e.logger.Debug("release filtered out", "file", f.Name)
			continue
		}
		releases = append(releases, r)
	}
	e.logger.Info("discovery complete", "candidates", len(releases), "invalid", len(invalid))
	return releases, invalid, nil
}
