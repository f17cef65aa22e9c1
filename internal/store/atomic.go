// Package store provides the file-backed storage layer for the PandaCell register.
//
// Every durable record lives in a plain file: the day's sale log is append-only
// with a sync per record, while the session state, outbox tasks and the product
// catalog are small files rewritten atomically (write-to-temp-then-rename) so a
// crash mid-write leaves either the old or the new content, never a truncated
// hybrid.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDirPermissions defines the default permissions for state directories.
const DefaultDirPermissions = 0755

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, syncing before the swap.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pandacell-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// appendLine appends one line to path and forces it to stable storage before
// returning. The file is opened and closed per call to keep the crash window
// small.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}
