package classifier

import (
	"fmt"
	"strings"

	"github.com/desertthunder/songsort/internal/models"
)

// SystemPrompt sets the model's role for every batch.
const SystemPrompt = "You are a music categorization expert who organizes songs into playlist categories."

const instructions = `Categorize these songs by genre, mood, and era.
For each song, give 1-2 labels per dimension using common genre names, moods, and eras or decades.
Return only a JSON object in exactly this format, with one entry per song and each id copied verbatim:
{"songs": [{"id": "<id>", "genre": ["..."], "mood": ["..."], "era": ["..."]}]}`

// BuildPrompt renders the user prompt for one batch.
//
// hints are existing labels offered for reuse; at most maxHints are included.
func BuildPrompt(batch []models.Track, hints []string, maxHints int) string {
	var b strings.Builder

	if maxHints > 0 && len(hints) > maxHints {
		hints = hints[:maxHints]
	}
	if len(hints) > 0 {
		b.WriteString("Existing playlist categories (reuse these when appropriate):\n")
		b.WriteString(strings.Join(hints, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString(instructions)
	b.WriteString("\n\nSongs to categorize:\n")
	for i, t := range batch {
		fmt.Fprintf(&b, "%d. [%s] '%s' by %s (Album: %s)\n", i+1, t.ID, t.Name, t.ArtistNames(), t.Album)
	}

	return b.String()
}
