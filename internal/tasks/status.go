package tasks

import (
	"github.com/desertthunder/songsort/internal/store"
)

// Snapshot describes the stores between runs.
type Snapshot struct {
	Songs        int `json:"songs"`
	Classified   int `json:"classified"`
	Unclassified int `json:"unclassified"`
	Orphans      int `json:"orphans"`
	Labels       int `json:"labels"`
}

// Inspect loads both stores and counts their contents without modifying them.
func Inspect(songs *store.SongStore, categories *store.CategoryStore) (*Snapshot, error) {
	library, err := songs.Load()
	if err != nil {
		return nil, err
	}
	assignments, err := categories.Load()
	if err != nil {
		return nil, err
	}

	unclassified := store.Unclassified(library, assignments)
	return &Snapshot{
		Songs:        library.Len(),
		Classified:   library.Len() - len(unclassified),
		Unclassified: len(unclassified),
		Orphans:      len(store.Orphans(library, assignments)),
		Labels:       len(assignments.Labels()),
	}, nil
}
