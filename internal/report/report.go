// Package report renders sync results for humans and for CI job summaries.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"feedsync/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("#FF5F57"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

type metric struct {
	name  string
	count int
}

func metrics(result model.SyncResult) []metric {
	return []metric{
		{"Feeds Processed", result.FeedsProcessed},
		{"Feeds Failed", result.FeedsFailed},
		{"Entries Created", result.EntriesCreated},
		{"Entries Updated", result.EntriesUpdated},
		{"Entries Failed", result.EntriesFailed},
	}
}

// PrintSummary writes the per-feed and aggregate tables to w.
func PrintSummary(w io.Writer, result model.SyncResult, startedAt, finishedAt time.Time) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SYNC RESULTS"))
	b.WriteString("\n")

	if len(result.Feeds) > 0 {
		feeds := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Feed", "Created", "Updated", "Failed", "Status").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 4 && row >= 0 && row < len(result.Feeds) && result.Feeds[row].Err != nil {
					return failStyle
				}
				return cellStyle
			})
		for _, fr := range result.Feeds {
			status := "ok"
			switch {
			case fr.Err != nil:
				status = "failed"
			case fr.Empty:
				status = "empty"
			}
			feeds.Row(fr.Name, strconv.Itoa(fr.Created), strconv.Itoa(fr.Updated), strconv.Itoa(fr.Failed), status)
		}
		b.WriteString(feeds.Render())
		b.WriteString("\n")
	}

	totals := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Metric", "Count").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, m := range metrics(result) {
		totals.Row(m.name, strconv.Itoa(m.count))
	}
	totals.Row("Total Entries", strconv.Itoa(result.Total()))
	b.WriteString(totals.Render())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Started %s, finished %s (%s)",
		startedAt.Format(timeLayout), finishedAt.Format(timeLayout), finishedAt.Sub(startedAt).Round(time.Millisecond))))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// StepSummary renders the markdown job summary.
func StepSummary(result model.SyncResult, finishedAt time.Time) string {
	var b strings.Builder
	b.WriteString("## RSS to Notion Sync Results\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|--------|-------|\n")
	for _, m := range metrics(result) {
		fmt.Fprintf(&b, "| %s | %d |\n", m.name, m.count)
	}
	fmt.Fprintf(&b, "| **Total Entries** | **%d** |\n", result.Total())
	fmt.Fprintf(&b, "\nSync completed at %s\n", finishedAt.Format(timeLayout))
	return b.String()
}

// WriteStepSummary writes the markdown job summary to path. An empty path is
// a no-op.
func WriteStepSummary(path string, result model.SyncResult, finishedAt time.Time) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(StepSummary(result, finishedAt)), 0o644); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}
	return nil
}
