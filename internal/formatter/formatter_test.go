package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

func sampleResults() ([]tasks.MatchResult, tasks.Report) {
	results := []tasks.MatchResult{
		{
			Resolution: tasks.ArtistResolution{Ref: "rec-1", ArtistID: "art-1", ArtistName: "Aphex Twin", TrackTitle: "Windowlicker"},
			ItemID:     "501",
			Score:      250,
		},
		{
			Resolution: tasks.ArtistResolution{Ref: "rec-2", Err: shared.ErrNoArtistCredit},
		},
		{
			Resolution: tasks.ArtistResolution{Ref: "rec-3", ArtistID: "art-3", ArtistName: "Boards | Canada", TrackTitle: "Roygbiv"},
			Score:      20,
		},
	}
	report := tasks.Report{
		Lookup:     tasks.ResolveIndividual,
		Resolution: tasks.Counts{Attempted: 3, Succeeded: 2, Failed: 1},
		Match:      tasks.Counts{Attempted: 2, Succeeded: 1, Failed: 1},
		Skipped:    2,
	}
	return results, report
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", FormatText},
		{"txt", FormatText},
		{"MD", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"csv", FormatCSV},
		{"json", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRenderers(t *testing.T) {
	results, report := sampleResults()

	t.Run("MatchesToCSV", func(t *testing.T) {
		data, err := MatchesToCSV(results)
		if err != nil {
			t.Fatalf("MatchesToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("expected header and 3 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Recording,Artist ID,Artist,Title,Item ID,Score,Status,Error" {
			t.Errorf("unexpected headers: %v", records[0])
		}
		if records[1][4] != "501" || records[1][6] != "matched" {
			t.Errorf("unexpected first row: %v", records[1])
		}
		if records[2][6] != "unresolved" || records[2][7] != shared.ErrNoArtistCredit.Error() {
			t.Errorf("unexpected second row: %v", records[2])
		}
		if records[3][6] != "unmatched" || records[3][5] != "20" {
			t.Errorf("unexpected third row: %v", records[3])
		}
	})

	t.Run("MatchesToMarkdown", func(t *testing.T) {
		data, err := MatchesToMarkdown("Weekly Discovery", results, report)
		if err != nil {
			t.Fatalf("MatchesToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Weekly Discovery",
			"**Lookup**: individual",
			"**Resolved**: 2/3 (1 failed)",
			"| 1 | Aphex Twin | Windowlicker | 501 | 250 | matched |",
			`Boards \| Canada`,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("MatchesToText", func(t *testing.T) {
		data, err := MatchesToText(results, report)
		if err != nil {
			t.Fatalf("MatchesToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"1. ✓ Aphex Twin - Windowlicker → 501 (score 250)",
			"2. ✗ rec-2 unresolved",
			"3. ✗ Boards | Canada - Roygbiv (best score 20)",
			"Skipped: 2",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("MatchesToJSON", func(t *testing.T) {
		data, err := MatchesToJSON(results, report)
		if err != nil {
			t.Fatalf("MatchesToJSON failed: %v", err)
		}

		var decoded struct {
			Report struct {
				Lookup  string `json:"lookup"`
				Skipped int    `json:"skipped"`
			} `json:"report"`
			Matches []map[string]any `json:"matches"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Report.Lookup != "individual" || decoded.Report.Skipped != 2 {
			t.Errorf("unexpected report: %+v", decoded.Report)
		}
		if len(decoded.Matches) != 3 || decoded.Matches[0]["item_id"] != "501" {
			t.Errorf("unexpected matches: %v", decoded.Matches)
		}
		if _, ok := decoded.Matches[1]["item_id"]; ok {
			t.Errorf("expected item_id omitted for unresolved recording")
		}
	})
}

func TestPlanToText(t *testing.T) {
	t.Run("absent playlist", func(t *testing.T) {
		output := string(PlanToText(
			tasks.PlaylistState{Name: "Discovery"},
			tasks.Plan{Strategy: tasks.StrategyRebuild, ToAdd: []string{"501", "502"}, Reason: "similarity 0.00 below 0.80"},
		))

		for _, want := range []string{"Status: does not exist", "Strategy: rebuild", "Add (2):", "  + 502"} {
			if !strings.Contains(output, want) {
				t.Errorf("missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("delta labels removed members", func(t *testing.T) {
		state := tasks.PlaylistState{
			CollectionID: "900",
			Name:         "Discovery",
			Members: []services.Member{
				{ItemID: "501", EntryID: "1", Title: "Windowlicker", Artist: "Aphex Twin"},
				{ItemID: "503", EntryID: "2", Title: "Xtal", Artist: "Aphex Twin"},
			},
		}
		output := string(PlanToText(state, tasks.Plan{Strategy: tasks.StrategyDelta, ToAdd: []string{}, ToRemove: []string{"503"}, Similarity: 0.8}))

		for _, want := range []string{"Status: 2 members (ID: 900)", "Similarity: 0.80", "  - 503 (Aphex Twin - Xtal)"} {
			if !strings.Contains(output, want) {
				t.Errorf("missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("skip omits item lists", func(t *testing.T) {
		output := string(PlanToText(tasks.PlaylistState{Name: "Discovery", CollectionID: "900"}, tasks.Plan{Strategy: tasks.StrategySkip}))
		if strings.Contains(output, "Add (") {
			t.Errorf("skip plan should not list items, got:\n%s", output)
		}
	})
}

func TestWriteMatches(t *testing.T) {
	results, report := sampleResults()
	dir := t.TempDir()

	for _, f := range []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(dir, "report."+f.Ext())
			got, err := WriteMatches(f, path, "Discovery", results, report)
			if err != nil {
				t.Fatalf("WriteMatches failed: %v", err)
			}
			if got != path {
				t.Errorf("expected path %s, got %s", path, got)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("file not written: %v", err)
			}
			if info.Size() == 0 {
				t.Error("file is empty")
			}
		})
	}

	t.Run("unwritable path", func(t *testing.T) {
		if _, err := WriteMatches(FormatText, filepath.Join(dir, "missing", "report.txt"), "", results, report); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
