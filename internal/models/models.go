package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// UnknownReleaseDate is stored when the provider omits an album release date.
const UnknownReleaseDate = "Unknown"

// Classification dimensions, in the order their labels are flattened into [Assignment.Categories].
const (
	DimensionGenre = "genre"
	DimensionMood  = "mood"
	DimensionEra   = "era"
)

// Dimensions lists the dimensions the classifier asks for.
var Dimensions = []string{DimensionGenre, DimensionMood, DimensionEra}

// Track is a liked song as stored in the local song store.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists,omitempty"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	URI         string   `json:"uri"`
	Popularity  int      `json:"popularity"`
	DurationMS  int      `json:"duration_ms,omitempty"`
	AddedAt     string   `json:"added_at,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
}

// NewTrack builds a Track and derives the joined artist string.
func NewTrack(id, name string, artists []string, album, uri string) Track {
	return Track{
		ID:          id,
		Name:        name,
		Artists:     artists,
		Artist:      strings.Join(artists, ", "),
		Album:       album,
		URI:         uri,
		ReleaseDate: UnknownReleaseDate,
	}
}

// ArtistNames returns the display string for the track's artists.
func (t Track) ArtistNames() string {
	if t.Artist != "" {
		return t.Artist
	}
	return strings.Join(t.Artists, ", ")
}

// Assignment is the set of categories assigned to one track.
type Assignment struct {
	Categories []string            `json:"categories"`
	Dimensions map[string][]string `json:"dimensions,omitempty"`
	Model      string              `json:"model,omitempty"`
	AssignedAt time.Time           `json:"assigned_at,omitzero"`
}

// NewAssignment flattens dimensions into an ordered, case-insensitively deduplicated label list.
//
// Known dimensions come first in [Dimensions] order, then any others sorted by name.
// Blank labels are dropped and the first spelling of a label wins.
func NewAssignment(dimensions map[string][]string, model string, at time.Time) Assignment {
	names := make([]string, 0, len(dimensions))
	for _, d := range Dimensions {
		if _, ok := dimensions[d]; ok {
			names = append(names, d)
		}
	}
	var extra []string
	for d := range dimensions {
		if !isKnownDimension(d) {
			extra = append(extra, d)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	seen := make(map[string]bool)
	a := Assignment{Dimensions: make(map[string][]string), Model: model, AssignedAt: at.UTC()}
	for _, d := range names {
		var labels []string
		for _, label := range dimensions[d] {
			label = strings.Join(strings.Fields(label), " ")
			if label == "" {
				continue
			}
			labels = append(labels, label)
			key := strings.ToLower(label)
			if !seen[key] {
				seen[key] = true
				a.Categories = append(a.Categories, label)
			}
		}
		if len(labels) > 0 {
			a.Dimensions[d] = labels
		}
	}
	if len(a.Dimensions) == 0 {
		a.Dimensions = nil
	}
	return a
}

// Empty reports whether the assignment carries no labels.
func (a Assignment) Empty() bool {
	return len(a.Categories) == 0
}

// UnmarshalJSON accepts both the object form and the bare label list
// written by earlier versions of the categories file.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return err
		}
		*a = Assignment{Categories: labels}
		return nil
	}

	type plain Assignment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Assignment(p)
	return nil
}

func isKnownDimension(d string) bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}
