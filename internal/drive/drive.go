// Package drive defines the narrow contract over the remote document store
// and its filesystem-backed implementation. The engine only ever lists,
// reads, writes, and moves files by folder label and name; everything else
// about the store is opaque.
package drive

import (
	"context"
	"time"
)

// Folder labels the engine works with.
const (
	FolderInbox      = "new_releases"
	FolderTemplates  = "templates"
	FolderOutput     = "final_price_sheets"
	FolderQuarantine = "quarantine"
)

// Labels lists every folder label in a stable order.
var Labels = []string{FolderInbox, FolderTemplates, FolderOutput, FolderQuarantine}

// File identifies one document in the store.
type File struct {
	ID      string // stable identifier: folder label + "/" + name
	Name    string
	Folder  string
	Size    int64
	ModTime time.Time
}

// Store is the document-store collaborator contract.
type Store interface {
	// List returns the files in a folder, sorted by name.
	List(ctx context.Context, folder string) ([]File, error)
	// Read returns the content of a file.
	Read(ctx context.Context, folder, name string) ([]byte, error)
	// Write creates or replaces a file and returns its identity.
	Write(ctx context.Context, folder, name string, data []byte) (File, error)
	// Stat reports whether a file exists.
	Stat(ctx context.Context, folder, name string) (File, bool, error)
	// Move relocates a file between folders.
	Move(ctx context.Context, name, fromFolder, toFolder string) error
	// Verify checks that a folder is reachable and readable.
	Verify(ctx context.Context, folder string) error
	// Path returns the backing location of a folder, for diagnostics.
	Path(folder string) string
}
