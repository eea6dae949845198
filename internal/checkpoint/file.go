package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the two checkpoint halves as files on local disk.
type FileStore struct {
	recordsPath   string
	processedPath string
}

// compile-time check
var _ Store = (*FileStore)(nil)

// NewFileStore creates a store writing records to recordsPath and the
// processed set to processedPath.
func NewFileStore(recordsPath, processedPath string) *FileStore {
	return &FileStore{
		recordsPath:   recordsPath,
		processedPath: processedPath,
	}
}

// Load reads both halves. Neither present means no checkpoint; exactly one
// present returns ErrPartialCheckpoint.
func (f *FileStore) Load(_ context.Context) (*Snapshot, error) {
	hasRecords, err := fileExists(f.recordsPath)
	if err != nil {
		return nil, err
	}
	hasProcessed, err := fileExists(f.processedPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !hasRecords && !hasProcessed:
		return nil, nil
	case !hasProcessed:
		return nil, fmt.Errorf("%w: %s exists but %s is missing", ErrPartialCheckpoint, f.recordsPath, f.processedPath)
	case !hasRecords:
		return nil, fmt.Errorf("%w: %s exists but %s is missing", ErrPartialCheckpoint, f.processedPath, f.recordsPath)
	}

	records, err := os.ReadFile(f.recordsPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.recordsPath, err)
	}
	processed, err := os.ReadFile(f.processedPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.processedPath, err)
	}

	s, err := decodeSnapshot(records, processed)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	return s, nil
}

// Save writes each half to a temporary file and renames it into place.
// The records half is renamed first so the processed set on disk never
// names an identifier whose records are missing.
func (f *FileStore) Save(_ context.Context, s *Snapshot) error {
	records, processed, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(f.recordsPath, records); err != nil {
		return err
	}
	return WriteFileAtomic(f.processedPath, processed)
}

// Clear removes both halves.
func (f *FileStore) Clear(_ context.Context) error {
	for _, p := range []string{f.recordsPath, f.processedPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Close is a no-op for files.
func (f *FileStore) Close() error {
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", path, err)
}

// WriteFileAtomic replaces path with data via a temp file in the same
// directory, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}
