// Package summary aggregates category assignments into per-label counts.
package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/desertthunder/songsort/internal/shared"
	"github.com/desertthunder/songsort/internal/store"
)

// SongRef identifies a track listed under a category.
type SongRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URI    string `json:"uri"`
}

// Category is one label with the tracks carrying it.
type Category struct {
	Label string    `json:"-"`
	Count int       `json:"count"`
	Songs []SongRef `json:"songs"`
}

// Summary is the regenerated aggregate view of the categories file.
//
// Categories are ordered by count descending, then label ascending.
type Summary struct {
	TotalSongs      int
	TotalCategories int
	TotalLabels     int
	Categories      []Category
}

// Build counts labels across assignments. Library fills in song details and may be nil;
// when given, assignments for songs it does not know are left out.
//
// Labels that differ only in case are counted together under the first spelling seen
// in track ID order.
func Build(assignments store.Assignments, library *store.Library) *Summary {
	ids := make([]string, 0, len(assignments))
	for id := range assignments {
		if !assignments.Classified(id) {
			continue
		}
		if library != nil && !library.Has(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byKey := make(map[string]*Category)
	s := &Summary{TotalSongs: len(ids)}
	for _, id := range ids {
		ref := SongRef{ID: id}
		if library != nil {
			t, _ := library.Get(id)
			ref = SongRef{ID: id, Name: t.Name, Artist: t.ArtistNames(), URI: t.URI}
		}

		seen := make(map[string]bool)
		for _, label := range assignments[id].Categories {
			key := shared.LabelKey(label)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			c, ok := byKey[key]
			if !ok {
				c = &Category{Label: shared.NormalizeLabel(label), Songs: []SongRef{}}
				byKey[key] = c
			}
			c.Count++
			c.Songs = append(c.Songs, ref)
			s.TotalLabels++
		}
	}

	s.Categories = make([]Category, 0, len(byKey))
	for _, c := range byKey {
		s.Categories = append(s.Categories, *c)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})
	s.TotalCategories = len(s.Categories)

	return s
}

// Top returns the first n categories, or all of them when n <= 0.
func (s *Summary) Top(n int) []Category {
	if n <= 0 || n > len(s.Categories) {
		return s.Categories
	}
	return s.Categories[:n]
}

// Counts returns label to count.
func (s *Summary) Counts() map[string]int {
	counts := make(map[string]int, len(s.Categories))
	for _, c := range s.Categories {
		counts[c.Label] = c.Count
	}
	return counts
}

// MarshalJSON writes categories as an object whose keys keep the summary's order.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"total_songs_categorized":%d,"total_categories":%d,"total_labels":%d,"categories":{`,
		s.TotalSongs, s.TotalCategories, s.TotalLabels)

	for i, c := range s.Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}

	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Write regenerates the summary file at path.
func Write(path string, s *Summary) error {
	data, err := shared.MarshalJSON(s, true)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := shared.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}
