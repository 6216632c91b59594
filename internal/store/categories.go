package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/shared"
)

// placeholderLabel is what older versions stored when the LLM gave up on a batch.
const placeholderLabel = "uncategorized"

// Assignments maps track IDs to their categories.
type Assignments map[string]models.Assignment

// Labels returns the distinct labels across all assignments, sorted.
//
// Labels differing only in case collapse to the spelling seen first in track ID order.
func (a Assignments) Labels() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[string]bool)
	var labels []string
	for _, id := range ids {
		if isPlaceholder(a[id]) {
			continue
		}
		for _, label := range a[id].Categories {
			key := shared.LabelKey(label)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			labels = append(labels, shared.NormalizeLabel(label))
		}
	}
	sort.Strings(labels)
	return labels
}

// Classified reports whether id holds a real assignment.
func (a Assignments) Classified(id string) bool {
	assignment, ok := a[id]
	return ok && !assignment.Empty() && !isPlaceholder(assignment)
}

// isPlaceholder matches the ["Uncategorized"] fallback written by older categories files.
func isPlaceholder(a models.Assignment) bool {
	return a.Model == "" && len(a.Categories) == 1 && shared.LabelKey(a.Categories[0]) == placeholderLabel
}

// CategoryOptions configures a [CategoryStore].
type CategoryOptions struct {
	// Backup copies the existing file to a timestamped .bak before the first write.
	Backup bool
	Now    func() time.Time
}

// CategoryStore reads and updates the categories file.
type CategoryStore struct {
	path     string
	logger   *log.Logger
	opts     CategoryOptions
	backedUp bool
}

// NewCategoryStore creates a store backed by the JSON object at path.
func NewCategoryStore(path string, logger *log.Logger, opts CategoryOptions) *CategoryStore {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CategoryStore{path: path, logger: logger, opts: opts}
}

func (s *CategoryStore) Path() string {
	return s.path
}

// Load reads all assignments, returning an empty set when the file does not exist yet.
//
// Entries with no labels are dropped so their tracks are queued again.
func (s *CategoryStore) Load() (Assignments, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Assignments{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var assignments Assignments
	if err := json.Unmarshal(data, &assignments); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrCorruptStore, s.path, err)
	}
	if assignments == nil {
		assignments = Assignments{}
	}

	for id, a := range assignments {
		if a.Empty() {
			delete(assignments, id)
		}
	}
	return assignments, nil
}

// Merge overwrites or inserts updates and persists the result atomically.
//
// An empty update leaves the file untouched.
func (s *CategoryStore) Merge(updates Assignments) (Assignments, error) {
	current, err := s.Load()
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return current, nil
	}

	for id, a := range updates {
		if a.Empty() {
			continue
		}
		current[id] = a
	}

	if err := s.save(current); err != nil {
		return nil, err
	}

	s.logger.Debug("categories saved", "path", s.path, "updated", len(updates), "total", len(current))
	return current, nil
}

// Prune removes the given IDs and persists the result atomically.
//
// The file is rewritten only when at least one ID was present.
func (s *CategoryStore) Prune(ids []string) (Assignments, error) {
	current, err := s.Load()
	if err != nil {
		return nil, err
	}

	removed := 0
	for _, id := range ids {
		if _, ok := current[id]; ok {
			delete(current, id)
			removed++
		}
	}
	if removed == 0 {
		return current, nil
	}

	if err := s.save(current); err != nil {
		return nil, err
	}

	s.logger.Debug("categories pruned", "path", s.path, "removed", removed, "total", len(current))
	return current, nil
}

func (s *CategoryStore) save(assignments Assignments) error {
	if err := s.backup(); err != nil {
		s.logger.Warn("failed to back up categories", "path", s.path, "error", err)
	}

	data, err := shared.MarshalJSON(assignments, true)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	if err := shared.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}
	return nil
}

func (s *CategoryStore) backup() error {
	if !s.opts.Backup || s.backedUp {
		return nil
	}
	s.backedUp = true

	dst, err := shared.BackupFile(s.path, s.opts.Now())
	if err != nil {
		return err
	}
	if dst != "" {
		s.logger.Info("created backup of categories file", "path", dst)
	}
	return nil
}

// Unclassified returns library IDs without a real assignment, in library order.
func Unclassified(lib *Library, assignments Assignments) []string {
	var ids []string
	for _, id := range lib.IDs() {
		if !assignments.Classified(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Orphans returns assignment keys missing from the library, sorted.
func Orphans(lib *Library, assignments Assignments) []string {
	var ids []string
	for id := range assignments {
		if !lib.Has(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
