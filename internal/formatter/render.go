package formatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/summary"
	"github.com/desertthunder/songsort/internal/tasks"
)

const timeLayout = "2006-01-02 15:04:05"

// Report renders the outcome of one run.
func Report(report *models.Report, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return toJSON(report)
	case YAML:
		return toYAML(report)
	case CSV:
		return writeCSV([]string{"Field", "Value"}, reportFields(report))
	case Markdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# Run %s\n\n", report.RunID)
		for _, kv := range reportFields(report) {
			fmt.Fprintf(&buf, "- **%s**: %s\n", kv[0], kv[1])
		}
		if len(report.SkippedBatches) > 0 {
			buf.WriteString("\n## Skipped Batches\n\n")
			for _, b := range report.SkippedBatches {
				fmt.Fprintf(&buf, "- Batch %d (%d songs): %s\n", b.Batch, len(b.TrackIDs), b.Reason)
			}
		}
		return buf.Bytes(), nil
	case Text, "":
		return reportText(report), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func reportFields(r *models.Report) [][]string {
	fields := [][]string{
		{"Run", r.RunID},
		{"Status", r.Status()},
		{"Started", r.StartedAt.Format(timeLayout)},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
		{"Model", r.Model},
		{"Fetched", strconv.Itoa(r.Fetched)},
		{"New songs", strconv.Itoa(r.NewSongs)},
		{"Queued", strconv.Itoa(r.Queued)},
		{"Categorized", strconv.Itoa(r.Classified)},
		{"Unparseable", strconv.Itoa(r.Malformed)},
		{"Skipped", strconv.Itoa(r.Skipped)},
		{"Batches", fmt.Sprintf("%d (%d failed)", r.Batches, r.FailedBatches)},
		{"Uncategorized", strconv.Itoa(r.Unclassified)},
		{"Categories", strconv.Itoa(r.Categories)},
	}
	if r.Error != "" {
		fields = append(fields, []string{"Error", r.Error})
	}
	return fields
}

func reportText(r *models.Report) []byte {
	var buf bytes.Buffer
	buf.WriteString(styles.title.Render("Run complete") + " " + styles.status(r.Status()) + "\n\n")

	fmt.Fprintf(&buf, "  Fetched:       %d liked songs (%d new)\n", r.Fetched, r.NewSongs)
	fmt.Fprintf(&buf, "  Categorized:   %s of %d queued\n", styles.ok.Render(strconv.Itoa(r.Classified)), r.Queued)
	if r.Malformed > 0 {
		fmt.Fprintf(&buf, "  Unparseable:   %s\n", styles.warn.Render(strconv.Itoa(r.Malformed)))
	}
	if r.FailedBatches > 0 {
		fmt.Fprintf(&buf, "  Skipped:       %s songs in %d of %d batches\n",
			styles.warn.Render(strconv.Itoa(r.Skipped)), r.FailedBatches, r.Batches)
	}
	fmt.Fprintf(&buf, "  Uncategorized: %d\n", r.Unclassified)
	fmt.Fprintf(&buf, "  Categories:    %d\n", r.Categories)
	if r.Model != "" {
		fmt.Fprintf(&buf, "  Model:         %s\n", r.Model)
	}
	fmt.Fprintf(&buf, "  Duration:      %s\n", r.Duration().Round(time.Millisecond))

	if r.Error != "" {
		fmt.Fprintf(&buf, "\n%s %s\n", styles.err.Render("✗"), r.Error)
	}
	if r.Unclassified > 0 && r.Error == "" {
		buf.WriteString("\n" + styles.help.Render("Run again to retry the uncategorized songs.") + "\n")
	}
	return buf.Bytes()
}

// Summary renders a category summary. top limits the categories listed in text and
// Markdown output; zero lists all of them.
func Summary(s *summary.Summary, f Format, top int) ([]byte, error) {
	switch f {
	case JSON:
		return toJSON(s)
	case YAML:
		return toYAML(s)
	case CSV:
		var records [][]string
		for _, c := range s.Categories {
			for _, song := range c.Songs {
				records = append(records, []string{c.Label, song.ID, song.Name, song.Artist, song.URI})
			}
		}
		return writeCSV([]string{"Category", "ID", "Title", "Artist", "URI"}, records)
	case Markdown:
		return summaryMarkdown(s, top), nil
	case Text, "":
		return summaryText(s, top), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func summaryMarkdown(s *summary.Summary, top int) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Categorization Summary\n\n")
	fmt.Fprintf(&buf, "**Songs categorized**: %d\n", s.TotalSongs)
	fmt.Fprintf(&buf, "**Categories**: %d\n\n", s.TotalCategories)

	buf.WriteString("| Category | Songs |\n")
	buf.WriteString("| --- | ---: |\n")
	for _, c := range topOf(s, top) {
		fmt.Fprintf(&buf, "| %s | %d |\n", mdEscape(c.Label), c.Count)
	}
	return buf.Bytes()
}

func summaryText(s *summary.Summary, top int) []byte {
	var buf bytes.Buffer
	buf.WriteString(styles.title.Render("Categorization Summary") + "\n\n")
	fmt.Fprintf(&buf, "  Songs categorized: %d\n", s.TotalSongs)
	fmt.Fprintf(&buf, "  Categories:        %d\n", s.TotalCategories)
	fmt.Fprintf(&buf, "  Labels assigned:   %d\n\n", s.TotalLabels)

	cats := topOf(s, top)
	width := 0
	for _, c := range cats {
		width = max(width, len(c.Label))
	}
	for _, c := range cats {
		fmt.Fprintf(&buf, "  %s%s %4d songs\n", styles.label.Render(c.Label), strings.Repeat(" ", width-len(c.Label)), c.Count)
	}
	if len(cats) < len(s.Categories) {
		buf.WriteString("\n" + styles.help.Render(fmt.Sprintf("... and %d more", len(s.Categories)-len(cats))) + "\n")
	}
	return buf.Bytes()
}

func topOf(s *summary.Summary, top int) []summary.Category {
	if top <= 0 {
		return s.Categories
	}
	return s.Top(top)
}

// Snapshot renders store counts.
func Snapshot(snap *tasks.Snapshot, f Format) ([]byte, error) {
	fields := [][]string{
		{"Songs", strconv.Itoa(snap.Songs)},
		{"Categorized", strconv.Itoa(snap.Classified)},
		{"Uncategorized", strconv.Itoa(snap.Unclassified)},
		{"Orphaned assignments", strconv.Itoa(snap.Orphans)},
		{"Distinct labels", strconv.Itoa(snap.Labels)},
	}

	switch f {
	case JSON:
		return toJSON(snap)
	case YAML:
		return toYAML(snap)
	case CSV:
		return writeCSV([]string{"Field", "Value"}, fields)
	case Markdown:
		var buf bytes.Buffer
		buf.WriteString("# Library Status\n\n")
		for _, kv := range fields {
			fmt.Fprintf(&buf, "- **%s**: %s\n", kv[0], kv[1])
		}
		return buf.Bytes(), nil
	case Text, "":
		var buf bytes.Buffer
		buf.WriteString(styles.title.Render("Library Status") + "\n\n")
		for _, kv := range fields {
			fmt.Fprintf(&buf, "  %-21s %s\n", kv[0]+":", kv[1])
		}
		if snap.Unclassified > 0 {
			buf.WriteString("\n" + styles.help.Render("Run songsort run to categorize the remaining songs.") + "\n")
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// History renders a list of recorded runs, newest first.
func History(reports []*models.Report, f Format) ([]byte, error) {
	switch f {
	case JSON:
		if reports == nil {
			reports = []*models.Report{}
		}
		return toJSON(reports)
	case YAML:
		if reports == nil {
			reports = []*models.Report{}
		}
		return toYAML(reports)
	case CSV:
		records := make([][]string, 0, len(reports))
		for _, r := range reports {
			records = append(records, []string{
				r.RunID,
				r.StartedAt.Format(time.RFC3339),
				r.Status(),
				strconv.Itoa(r.NewSongs),
				strconv.Itoa(r.Classified),
				strconv.Itoa(r.FailedBatches),
				strconv.Itoa(r.Unclassified),
				r.Error,
			})
		}
		return writeCSV([]string{"Run", "Started", "Status", "New", "Categorized", "FailedBatches", "Uncategorized", "Error"}, records)
	case Markdown:
		var buf bytes.Buffer
		buf.WriteString("# Run History\n\n")
		buf.WriteString("| Run | Started | Status | New | Categorized | Uncategorized |\n")
		buf.WriteString("| --- | --- | --- | ---: | ---: | ---: |\n")
		for _, r := range reports {
			fmt.Fprintf(&buf, "| %s | %s | %s | %d | %d | %d |\n",
				shortID(r.RunID), r.StartedAt.Format(timeLayout), r.Status(), r.NewSongs, r.Classified, r.Unclassified)
		}
		return buf.Bytes(), nil
	case Text, "":
		var buf bytes.Buffer
		buf.WriteString(styles.title.Render("Run History") + "\n\n")
		if len(reports) == 0 {
			buf.WriteString(styles.help.Render("No runs recorded yet.") + "\n")
			return buf.Bytes(), nil
		}
		for _, r := range reports {
			fmt.Fprintf(&buf, "  %s  %s  %s  new=%d categorized=%d uncategorized=%d\n",
				shortID(r.RunID), r.StartedAt.Local().Format(timeLayout), styles.status(r.Status()),
				r.NewSongs, r.Classified, r.Unclassified)
			if r.Error != "" {
				fmt.Fprintf(&buf, "            %s\n", styles.err.Render(r.Error))
			}
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
