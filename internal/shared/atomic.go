package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// replace is swapped in tests to simulate a crash between the temp write and the replace.
var replace = (*renameio.PendingFile).CloseAtomicallyReplace

// WriteFileAtomic writes data to a temp file in the target's directory, syncs it, then renames
// it over path. Readers see either the previous file or the new one, never a partial write.
// The temp file is removed when any step fails.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := replace(pending); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// BackupFile copies path to "<path>.<YYYYmmdd_HHMMSS>.bak" and returns the backup name.
// A missing source is not an error; the returned name is empty.
func BackupFile(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s for backup: %w", path, err)
	}
	defer src.Close()

	backup := fmt.Sprintf("%s.%s.bak", path, now.Format("20060102_150405"))
	dst, err := os.OpenFile(backup, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup %s: %w", backup, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy backup: %w", err)
	}

	return backup, dst.Close()
}
