// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/services"
)

// FakeTokenProvider is a test double for [services.TokenProvider]
type FakeTokenProvider struct {
	Token string
	Err   error
	Calls int
}

func (f *FakeTokenProvider) AccessToken(ctx context.Context) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Token, nil
}

// FakeLister serves Library in pages; Errors are returned in call order before paging resumes.
type FakeLister struct {
	Library []models.Track
	Errors  []error
	Offsets []int
	Calls   int
}

func (f *FakeLister) ListLiked(ctx context.Context, token string, offset, limit int) (*services.LikedPage, error) {
	f.Calls++
	if len(f.Errors) > 0 {
		err := f.Errors[0]
		f.Errors = f.Errors[1:]
		if err != nil {
			return nil, err
		}
	}
	f.Offsets = append(f.Offsets, offset)

	end := min(offset+limit, len(f.Library))
	var items []models.Track
	if offset < len(f.Library) {
		items = append(items, f.Library[offset:end]...)
	}
	return &services.LikedPage{Items: items, Total: len(f.Library), HasMore: end < len(f.Library)}, nil
}

// FakeCompleter is a test double for [services.Completer]
type FakeCompleter struct {
	Respond  func(call int, req services.CompletionRequest) (string, error)
	mu       sync.Mutex
	Requests []services.CompletionRequest
}

func (f *FakeCompleter) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	call := len(f.Requests)
	f.mu.Unlock()

	if f.Respond == nil {
		return "", errors.New("no response configured")
	}
	return f.Respond(call, req)
}

// Calls returns the number of completions requested so far.
func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// SongsReply builds a well-formed classifier reply giving every track the same genre labels.
func SongsReply(tracks []models.Track, genres ...string) string {
	type entry struct {
		ID    string   `json:"id"`
		Genre []string `json:"genre"`
	}
	entries := make([]entry, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, entry{ID: t.ID, Genre: genres})
	}
	b, _ := json.Marshal(map[string]any{"songs": entries})
	return string(b)
}

// Tracks builds minimal tracks with the given IDs.
func Tracks(ids ...string) []models.Track {
	tracks := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, models.NewTrack(id, "Song "+id, []string{"Artist " + id}, "Album "+id, "spotify:track:"+id))
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
