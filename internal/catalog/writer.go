package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists a Document back to the path it was loaded from.
type Writer struct {
	atomic bool
}

// NewWriter creates a Writer. With atomic set the document is written to a
// temp file next to the target and renamed over it, so a failed write
// leaves the previous version in place.
func NewWriter(atomic bool) *Writer {
	return &Writer{atomic: atomic}
}

// Write replaces the file at doc.Path with the formatted document. The
// existing file mode is kept.
func (w *Writer) Write(doc *Document) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(doc.Path); err == nil {
		perm = info.Mode().Perm()
	}

	data := doc.Bytes()
	if !w.atomic {
		if err := os.WriteFile(doc.Path, data, perm); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
		return nil
	}
	if err := writeFileAtomic(doc.Path, data, perm); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
