package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brickline-labs/pricesheet/internal/faults"
)

// FS is a Store backed by local directories, one per folder label.
type FS struct {
	folders map[string]string
}

// NewFS creates a filesystem store. folders maps folder labels to directory
// paths; every label in Labels must be present. Missing directories are
// created.
func NewFS(folders map[string]string) (*FS, error) {
	for _, label := range Labels {
		if folders[label] == "" {
			return nil, faults.New(faults.ClassConfig, "folder %q has no configured path", label)
		}
		if err := os.MkdirAll(folders[label], 0o750); err != nil {
			return nil, classify(fmt.Errorf("create folder %s: %w", label, err))
		}
	}
	return &FS{folders: folders}, nil
}

// Path returns the directory backing a folder label.
func (s *FS) Path(folder string) string {
	return s.folders[folder]
}

func (s *FS) dir(folder string) (string, error) {
	d, ok := s.folders[folder]
	if !ok {
		return "", faults.New(faults.ClassConfig, "unknown folder %q", folder)
	}
	return d, nil
}

func classify(err error) error {
	if os.IsPermission(err) {
		return faults.Wrap(faults.ClassAuthorization, err)
	}
	return faults.Wrap(faults.ClassConnectivity, err)
}

// List implements Store.
func (s *FS) List(ctx context.Context, folder string) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.dir(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classify(fmt.Errorf("list %s: %w", folder, err))
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			ID:      folder + "/" + e.Name(),
			Name:    e.Name(),
			Folder:  folder,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read implements Store.
func (s *FS) Read(ctx context.Context, folder, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.dir(folder)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, classify(fmt.Errorf("read %s/%s: %w", folder, name, err))
	}
	return data, nil
}

// Write implements Store. The write goes through a temp file and rename so a
// crash never leaves a half-written document in place.
func (s *FS) Write(ctx context.Context, folder, name string, data []byte) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	dir, err := s.dir(folder)
	if err != nil {
		return File{}, err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return File{}, classify(fmt.Errorf("write %s/%s: %w", folder, name, err))
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return File{}, classify(fmt.Errorf("write %s/%s: %w", folder, name, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return File{}, classify(fmt.Errorf("write %s/%s: %w", folder, name, err))
	}
	final := filepath.Join(dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return File{}, classify(fmt.Errorf("write %s/%s: %w", folder, name, err))
	}
	info, err := os.Stat(final)
	if err != nil {
		return File{}, classify(err)
	}
	return File{
		ID:      folder + "/" + name,
		Name:    name,
		Folder:  folder,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// Stat implements Store.
func (s *FS) Stat(ctx context.Context, folder, name string) (File, bool, error) {
	if err := ctx.Err(); err != nil {
		return File{}, false, err
	}
	dir, err := s.dir(folder)
	if err != nil {
		return File{}, false, err
	}
	info, err := os.Stat(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return File{}, false, nil
	}
	if err != nil {
		return File{}, false, classify(err)
	}
	return File{
		ID:      folder + "/" + name,
		Name:    name,
		Folder:  folder,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, true, nil
}

// Move implements Store.
func (s *FS) Move(ctx context.Context, name, fromFolder, toFolder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := s.dir(fromFolder)
	if err != nil {
		return err
	}
	to, err := s.dir(toFolder)
	if err != nil {
		return err
	}
	if err := os.Rename(filepath.Join(from, name), filepath.Join(to, name)); err != nil {
		return classify(fmt.Errorf("move %s from %s to %s: %w", name, fromFolder, toFolder, err))
	}
	return nil
}

// Verify implements Store.
func (s *FS) Verify(ctx context.Context, folder string) error {
	_, err := s.List(ctx, folder)
	return err
}
