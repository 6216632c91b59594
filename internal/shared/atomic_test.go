package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates file and parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "songs.json")

		if err := WriteFileAtomic(path, []byte("[]\n"), 0644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "[]\n" {
			t.Errorf("unexpected contents %q", string(data))
		}
	})

	t.Run("replaces existing file and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "songs.json")

		if err := WriteFileAtomic(path, []byte("old"), 0644); err != nil {
			t.Fatalf("first write error = %v", err)
		}
		if err := WriteFileAtomic(path, []byte("new"), 0644); err != nil {
			t.Fatalf("second write error = %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "new" {
			t.Errorf("expected new contents, got %q", string(data))
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected only the target file, got %d entries", len(entries))
		}
	})

	t.Run("interrupted replace keeps previous file intact", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "song_categories.json")

		if err := WriteFileAtomic(path, []byte(`{"a":["rock"]}`), 0644); err != nil {
			t.Fatalf("initial write error = %v", err)
		}

		original := replace
		replace = func(*renameio.PendingFile) error { return errors.New("killed") }
		defer func() { replace = original }()

		if err := WriteFileAtomic(path, []byte(`{"a":["rock"],"b":["jazz"]}`), 0644); err == nil {
			t.Fatal("expected error from interrupted write")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("previous file should still be readable: %v", err)
		}
		if string(data) != `{"a":["rock"]}` {
			t.Errorf("previous contents changed: %q", string(data))
		}
	})

	t.Run("failed rename removes temp file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "songs.json")
		if err := os.Mkdir(path, 0755); err != nil {
			t.Fatalf("failed to create blocking directory: %v", err)
		}

		if err := WriteFileAtomic(path, []byte("[]"), 0644); err == nil {
			t.Fatal("expected error when the target is a directory")
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 || entries[0].Name() != "songs.json" {
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("expected only the target directory, got %v", names)
		}
	})

	t.Run("applies permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := WriteFileAtomic(path, []byte("x"), 0600); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
	})
}

func TestBackupFile(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		name, err := BackupFile(filepath.Join(t.TempDir(), "nope.json"), time.Now())
		if err != nil {
			t.Fatalf("BackupFile() error = %v", err)
		}
		if name != "" {
			t.Errorf("expected empty backup name, got %q", name)
		}
	})

	t.Run("copies contents with timestamp suffix", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song_categories.json")
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
		name, err := BackupFile(path, now)
		if err != nil {
			t.Fatalf("BackupFile() error = %v", err)
		}

		if want := path + ".20240309_140507.bak"; name != want {
			t.Errorf("backup name = %q, want %q", name, want)
		}

		data, _ := os.ReadFile(name)
		if string(data) != "{}" {
			t.Errorf("backup contents = %q", string(data))
		}
	})
}
