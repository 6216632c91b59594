package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songsort/internal/models"
)

// Status tags a per-track parse outcome.
type Status int

const (
	StatusMalformed Status = iota
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMalformed:
		return "malformed"
	default:
		return ""
	}
}

// Result is the parse outcome for one track of a batch.
type Result struct {
	ID         string
	Status     Status
	Assignment models.Assignment
	Reason     string
}

var (
	fencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	numberPattern = regexp.MustCompile(`^\s*(\d+)\s*[.)]\s*`)
)

// Parse decodes an LLM reply into one [Result] per track in batch, in batch order.
//
// JSON replies ({"songs": [...]} or a bare array) are matched to tracks by id, then by
// 1-based index. Anything else is read as "N. Label | Label" lines. Tracks without a usable
// entry are [StatusMalformed]; assignments carry no model or timestamp.
func Parse(raw string, batch []models.Track) []Result {
	results := make([]Result, len(batch))
	for i, t := range batch {
		results[i] = Result{ID: t.ID, Status: StatusMalformed, Reason: "missing"}
	}

	text := stripFences(strings.TrimSpace(raw))
	if entries, ok := decodeEntries(text); ok {
		parseEntries(entries, batch, results)
	} else {
		parseLines(text, batch, results)
	}
	return results
}

func stripFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// decodeEntries returns the raw per-song entries of a JSON reply.
func decodeEntries(text string) ([]json.RawMessage, bool) {
	candidates := []string{text}
	if i, j := strings.IndexAny(text, "{["), strings.LastIndexAny(text, "}]"); i > 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		switch {
		case strings.HasPrefix(c, "{"):
			var wrapper struct {
				Songs []json.RawMessage `json:"songs"`
			}
			if err := json.Unmarshal([]byte(c), &wrapper); err == nil && wrapper.Songs != nil {
				return wrapper.Songs, true
			}
		case strings.HasPrefix(c, "["):
			var entries []json.RawMessage
			if err := json.Unmarshal([]byte(c), &entries); err == nil {
				return entries, true
			}
		}
	}
	return nil, false
}

func parseEntries(entries []json.RawMessage, batch []models.Track, results []Result) {
	byID := make(map[string]int, len(batch))
	for i, t := range batch {
		byID[t.ID] = i
	}

	for n, raw := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			continue
		}

		pos, ok := entryPosition(fields, byID, len(batch))
		if !ok {
			continue
		}
		if results[pos].Status == StatusOK {
			continue
		}

		dims, err := entryDimensions(fields)
		if err != nil {
			results[pos].Reason = fmt.Sprintf("entry %d: %v", n+1, err)
			continue
		}

		a := models.NewAssignment(dims, "", time.Time{})
		if a.Empty() {
			results[pos].Reason = fmt.Sprintf("entry %d: no labels", n+1)
			continue
		}
		results[pos] = Result{ID: batch[pos].ID, Status: StatusOK, Assignment: a}
	}
}

// entryPosition resolves an entry to a batch position by "id", falling back to "index".
func entryPosition(fields map[string]json.RawMessage, byID map[string]int, size int) (int, bool) {
	if raw, ok := fields["id"]; ok {
		var id string
		if json.Unmarshal(raw, &id) == nil {
			pos, found := byID[strings.TrimSpace(id)]
			return pos, found
		}
	}

	if raw, ok := fields["index"]; ok {
		var idx int
		if json.Unmarshal(raw, &idx) != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				return 0, false
			}
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return 0, false
			}
			idx = n
		}
		if idx >= 1 && idx <= size {
			return idx - 1, true
		}
	}
	return 0, false
}

// entryDimensions reads genre, mood, and era, each a string list or a single string.
func entryDimensions(fields map[string]json.RawMessage) (map[string][]string, error) {
	dims := make(map[string][]string)
	for _, d := range models.Dimensions {
		raw, ok := fields[d]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}

		var labels []string
		if err := json.Unmarshal(raw, &labels); err != nil {
			var single string
			if json.Unmarshal(raw, &single) != nil {
				return nil, fmt.Errorf("%s must be a list of strings", d)
			}
			labels = []string{single}
		}
		dims[d] = labels
	}
	return dims, nil
}

// parseLines reads the pipe-separated fallback format, one line per track.
//
// Numbered lines ("2. Rock | Happy") go to the track at that position. Without numbering,
// lines containing a pipe are taken in batch order.
func parseLines(text string, batch []models.Track, results []Result) {
	var numbered, plain []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case numberPattern.MatchString(line):
			numbered = append(numbered, line)
		case strings.Contains(line, "|"):
			plain = append(plain, line)
		}
	}

	assign := func(pos int, line string) {
		if pos < 0 || pos >= len(batch) || results[pos].Status == StatusOK {
			return
		}
		a := models.NewAssignment(map[string][]string{"labels": strings.Split(line, "|")}, "", time.Time{})
		if a.Empty() {
			results[pos].Reason = "no labels"
			return
		}
		a.Dimensions = nil
		results[pos] = Result{ID: batch[pos].ID, Status: StatusOK, Assignment: a}
	}

	if len(numbered) > 0 {
		for _, line := range numbered {
			m := numberPattern.FindStringSubmatch(line)
			n, _ := strconv.Atoi(m[1])
			assign(n-1, line[len(m[0]):])
		}
		return
	}

	for i, line := range plain {
		assign(i, line)
	}
}
