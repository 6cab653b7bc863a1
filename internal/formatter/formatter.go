// package formatter renders match reports and reconciliation plans in various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

// Format is an output format name.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// status labels a match result for display.
func status(m tasks.MatchResult) string {
	switch {
	case m.Matched():
		return "matched"
	case m.Resolution.Resolved():
		return "unmatched"
	default:
		return "unresolved"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// MatchesToCSV renders match results with columns: Recording, Artist ID, Artist, Title, Item ID, Score, Status, Error
func MatchesToCSV(results []tasks.MatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Recording", "Artist ID", "Artist", "Title", "Item ID", "Score", "Status", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range results {
		record := []string{
			m.Resolution.Ref,
			m.Resolution.ArtistID,
			m.Resolution.ArtistName,
			m.Resolution.TrackTitle,
			m.ItemID,
			strconv.Itoa(m.Score),
			status(m),
			errString(m.Resolution.Err),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MatchesToMarkdown renders a titled report with stage counts and a track table
func MatchesToMarkdown(title string, results []tasks.MatchResult, report tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Lookup**: %s\n", report.Lookup)
	fmt.Fprintf(&buf, "**Resolved**: %s\n", report.Resolution)
	fmt.Fprintf(&buf, "**Matched**: %s\n", report.Match)
	fmt.Fprintf(&buf, "**Skipped**: %d\n\n", report.Skipped)

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Artist | Title | Item | Score | Status |\n")
	buf.WriteString("|---|--------|-------|------|-------|--------|\n")
	for i, m := range results {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %d | %s |\n",
			i+1,
			escapeCell(m.Resolution.ArtistName),
			escapeCell(m.Resolution.TrackTitle),
			m.ItemID,
			m.Score,
			status(m),
		)
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// MatchesToText renders one line per recording followed by stage counts
func MatchesToText(results []tasks.MatchResult, report tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	for i, m := range results {
		switch {
		case m.Matched():
			fmt.Fprintf(&buf, "%d. ✓ %s - %s → %s (score %d)\n", i+1, m.Resolution.ArtistName, m.Resolution.TrackTitle, m.ItemID, m.Score)
		case m.Resolution.Resolved():
			fmt.Fprintf(&buf, "%d. ✗ %s - %s (best score %d)\n", i+1, m.Resolution.ArtistName, m.Resolution.TrackTitle, m.Score)
		default:
			fmt.Fprintf(&buf, "%d. ✗ %s unresolved: %s\n", i+1, m.Resolution.Ref, errString(m.Resolution.Err))
		}
	}

	fmt.Fprintf(&buf, "\nLookup: %s\n", report.Lookup)
	fmt.Fprintf(&buf, "Resolved: %s\n", report.Resolution)
	fmt.Fprintf(&buf, "Matched: %s\n", report.Match)
	fmt.Fprintf(&buf, "Skipped: %d\n", report.Skipped)

	return buf.Bytes(), nil
}

type matchJSON struct {
	Recording string `json:"recording"`
	ArtistID  string `json:"artist_id,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Title     string `json:"title,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Score     int    `json:"score"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// MatchesToJSON renders match results and the report as indented JSON
func MatchesToJSON(results []tasks.MatchResult, report tasks.Report) ([]byte, error) {
	rows := make([]matchJSON, len(results))
	for i, m := range results {
		rows[i] = matchJSON{
			Recording: m.Resolution.Ref,
			ArtistID:  m.Resolution.ArtistID,
			Artist:    m.Resolution.ArtistName,
			Title:     m.Resolution.TrackTitle,
			ItemID:    m.ItemID,
			Score:     m.Score,
			Status:    status(m),
			Error:     errString(m.Resolution.Err),
		}
	}

	out := struct {
		Report  tasks.Report `json:"report"`
		Matches []matchJSON  `json:"matches"`
	}{Report: report, Matches: rows}

	return json.MarshalIndent(out, "", "  ")
}

// RenderMatches renders results in format f.
func RenderMatches(f Format, title string, results []tasks.MatchResult, report tasks.Report) ([]byte, error) {
	switch f {
	case FormatCSV:
		return MatchesToCSV(results)
	case FormatMarkdown:
		return MatchesToMarkdown(title, results, report)
	case FormatJSON:
		return MatchesToJSON(results, report)
	default:
		return MatchesToText(results, report)
	}
}

// PlanToText describes a reconciliation plan against the observed playlist
func PlanToText(state tasks.PlaylistState, plan tasks.Plan) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", state.Name)
	if state.CollectionID == "" {
		buf.WriteString("Status: does not exist\n")
	} else {
		fmt.Fprintf(&buf, "Status: %d members (ID: %s)\n", len(state.Members), state.CollectionID)
	}
	fmt.Fprintf(&buf, "Strategy: %s\n", plan.Strategy)
	fmt.Fprintf(&buf, "Similarity: %.2f\n", plan.Similarity)
	fmt.Fprintf(&buf, "Reason: %s\n", plan.Reason)

	if plan.Strategy == tasks.StrategySkip {
		return buf.Bytes()
	}

	members := make(map[string]string, len(state.Members))
	for _, m := range state.Members {
		members[m.ItemID] = strings.TrimSpace(m.Artist + " - " + m.Title)
	}

	fmt.Fprintf(&buf, "\nAdd (%d):\n", len(plan.ToAdd))
	for _, id := range plan.ToAdd {
		fmt.Fprintf(&buf, "  + %s\n", id)
	}
	fmt.Fprintf(&buf, "Remove (%d):\n", len(plan.ToRemove))
	for _, id := range plan.ToRemove {
		if label := members[id]; label != "" && label != "-" {
			fmt.Fprintf(&buf, "  - %s (%s)\n", id, label)
		} else {
			fmt.Fprintf(&buf, "  - %s\n", id)
		}
	}

	return buf.Bytes()
}

// WriteMatches renders results in format f to path.
//
// Defaults to matches.{ext} in the working directory.
func WriteMatches(f Format, path, title string, results []tasks.MatchResult, report tasks.Report) (string, error) {
	if path == "" {
		path = "matches." + f.Ext()
	}

	data, err := RenderMatches(f, title, results, report)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}
