package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/shared"
)

// Library is the ordered set of known tracks, keyed by track ID.
type Library struct {
	tracks []models.Track
	index  map[string]int
}

// NewLibrary builds a library from tracks, keeping the first record for each ID and skipping blank IDs.
func NewLibrary(tracks []models.Track) *Library {
	l := &Library{tracks: make([]models.Track, 0, len(tracks)), index: make(map[string]int, len(tracks))}
	for _, t := range tracks {
		l.add(t)
	}
	return l
}

func (l *Library) add(t models.Track) bool {
	if t.ID == "" {
		return false
	}
	if _, ok := l.index[t.ID]; ok {
		return false
	}
	if t.Artist == "" && len(t.Artists) > 0 {
		t.Artist = strings.Join(t.Artists, ", ")
	}
	l.index[t.ID] = len(l.tracks)
	l.tracks = append(l.tracks, t)
	return true
}

func (l *Library) Len() int {
	return len(l.tracks)
}

func (l *Library) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

func (l *Library) Get(id string) (models.Track, bool) {
	i, ok := l.index[id]
	if !ok {
		return models.Track{}, false
	}
	return l.tracks[i], true
}

// IDs returns track IDs in discovery order.
func (l *Library) IDs() []string {
	ids := make([]string, len(l.tracks))
	for i, t := range l.tracks {
		ids[i] = t.ID
	}
	return ids
}

// Tracks returns a copy of the tracks in discovery order.
func (l *Library) Tracks() []models.Track {
	return append([]models.Track(nil), l.tracks...)
}

// Lookup returns the tracks for ids, skipping unknown IDs.
func (l *Library) Lookup(ids []string) []models.Track {
	out := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := l.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// SongStore reads and extends the liked songs file.
type SongStore struct {
	path   string
	logger *log.Logger
}

// NewSongStore creates a store backed by the JSON array at path.
func NewSongStore(path string, logger *log.Logger) *SongStore {
	return &SongStore{path: path, logger: logger}
}

func (s *SongStore) Path() string {
	return s.path
}

// Load reads the library, returning an empty one when the file does not exist yet.
func (s *SongStore) Load() (*Library, error) {
	lib, _, err := s.load()
	return lib, err
}

func (s *SongStore) load() (*Library, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewLibrary(nil), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var tracks []models.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", shared.ErrCorruptStore, s.path, err)
	}
	return NewLibrary(tracks), true, nil
}

// Merge adds tracks whose IDs are not yet known, in the order given, and returns the new IDs.
//
// Existing records are never modified. The file is rewritten only when something was added
// or when it does not exist yet.
func (s *SongStore) Merge(tracks []models.Track) (*Library, []string, error) {
	lib, exists, err := s.load()
	if err != nil {
		return nil, nil, err
	}

	var delta []string
	for _, t := range tracks {
		if lib.add(t) {
			delta = append(delta, t.ID)
		}
	}

	if len(delta) == 0 && exists {
		s.logger.Debug("song store unchanged", "path", s.path, "songs", lib.Len())
		return lib, nil, nil
	}

	data, err := shared.MarshalJSON(lib.tracks, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode songs: %w", err)
	}
	if err := shared.WriteFileAtomic(s.path, data, 0644); err != nil {
		return nil, nil, fmt.Errorf("failed to save songs: %w", err)
	}

	s.logger.Info("song store updated", "path", s.path, "new", len(delta), "songs", lib.Len())
	return lib, delta, nil
}
