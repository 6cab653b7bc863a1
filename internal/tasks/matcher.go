package tasks

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/services"
)

// Scoring constants. MinScore and FuzzyThreshold are pinned legacy values.
const (
	MaxScore              = 250
	DefaultMinScore       = 50
	DefaultFuzzyThreshold = 0.8
	DefaultSearchTimeout  = 30 * time.Second

	exactScore    = 100
	containsScore = 70
	fuzzyScore    = 50
	crossRefScore = 50
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "up": {}, "about": {}, "into": {}, "over": {}, "after": {},
}

// Candidate is the best library track found for a title/artist pair.
//
// ItemID is empty when the best score is below the matcher's minimum.
type Candidate struct {
	ItemID string
	Score  int
	Track  services.LibraryTrack
}

// MatcherOpts configures a [Matcher].
type MatcherOpts struct {
	MinScore       int     // Acceptance threshold on the 0-250 scale
	FuzzyThreshold float64 // Character-set Jaccard needed for a fuzzy tier
	Timeout        time.Duration
	Logger         *log.Logger
}

// Matcher finds library tracks for resolved recordings.
type Matcher struct {
	library   services.Library
	minScore  int
	threshold float64
	timeout   time.Duration
	logger    *log.Logger
}

// NewMatcher creates a Matcher over library. Zero options take the defaults.
func NewMatcher(library services.Library, opts MatcherOpts) *Matcher {
	m := &Matcher{
		library:   library,
		minScore:  opts.MinScore,
		threshold: opts.FuzzyThreshold,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if m.minScore <= 0 {
		m.minScore = DefaultMinScore
	}
	if m.threshold <= 0 {
		m.threshold = DefaultFuzzyThreshold
	}
	if m.timeout <= 0 {
		m.timeout = DefaultSearchTimeout
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	return m
}

// Match searches every music section with each query from [Queries] and returns the highest scoring track.
//
// Ties keep the first candidate seen. Section and search failures are logged and skipped.
func (m *Matcher) Match(ctx context.Context, title, artist string, crossRefs []string) Candidate {
	sctx, cancel := detach(ctx, m.timeout)
	sections, err := m.library.Sections(sctx)
	cancel()
	if err != nil {
		m.logger.Warn("failed to list library sections", "err", err)
		return Candidate{}
	}

	queries := Queries(title, artist)
	var best Candidate

search:
	for _, sec := range sections {
		if !sec.Music() {
			continue
		}
		for _, q := range queries {
			if ctx.Err() != nil {
				break search
			}

			tracks, err := m.search(ctx, sec.Key, q)
			if err != nil {
				m.logger.Warn("library search failed", "section", sec.Title, "query", q, "err", err)
				continue
			}

			for _, tr := range tracks {
				if s := Score(tr, title, artist, crossRefs, m.threshold); s > best.Score {
					best = Candidate{ItemID: tr.ID, Score: s, Track: tr}
				}
			}
			if best.Score == MaxScore {
				break search
			}
		}
	}

	if best.Score < m.minScore {
		m.logger.Debug("no match above threshold", "title", title, "artist", artist, "best", best.Score)
		best.ItemID = ""
		return best
	}

	m.logger.Debug("matched track", "title", title, "artist", artist, "item", best.ItemID, "score", best.Score)
	return best
}

func (m *Matcher) search(ctx context.Context, sectionKey, query string) ([]services.LibraryTrack, error) {
	qctx, cancel := detach(ctx, m.timeout)
	defer cancel()
	return m.library.Search(qctx, sectionKey, query)
}

// Queries returns the search permutations for a title/artist pair, most specific first.
//
// Title word windows follow the four basic forms: first 2 words, first 3, last 3, and words 2-4,
// each only when the title is longer than the window. Blank and repeated queries are dropped.
func Queries(title, artist string) []string {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	candidates := []string{
		artist + " " + title,
		title + " " + artist,
		title,
		artist,
	}

	words := strings.Fields(title)
	if len(words) > 2 {
		candidates = append(candidates, strings.Join(words[:2], " "))
	}
	if len(words) > 3 {
		candidates = append(candidates,
			strings.Join(words[:3], " "),
			strings.Join(words[len(words)-3:], " "),
			strings.Join(words[1:4], " "),
		)
	}

	seen := make(map[string]struct{}, len(candidates))
	queries := make([]string, 0, len(candidates))
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	return queries
}

// Score rates track against the target title and artist on a 0-250 scale.
//
// Title and artist each earn 100 for equality, 70 for containment either way, or 50 for a
// fuzzy match at threshold; a cross-reference id found in the track's GUID earns 50 once.
func Score(track services.LibraryTrack, title, artist string, crossRefs []string, threshold float64) int {
	score := tier(strings.ToLower(track.Title), strings.ToLower(title), threshold)
	score += tier(strings.ToLower(track.Artist), strings.ToLower(artist), threshold)

	guid := strings.ToLower(track.GUID)
	for _, id := range crossRefs {
		if id == "" {
			continue
		}
		if strings.Contains(guid, strings.ToLower(id)) {
			score += crossRefScore
			break
		}
	}
	return score
}

func tier(candidate, target string, threshold float64) int {
	switch {
	case candidate == target:
		return exactScore
	case strings.Contains(candidate, target) || strings.Contains(target, candidate):
		return containsScore
	case Similar(candidate, target, threshold):
		return fuzzyScore
	default:
		return 0
	}
}

// Similar reports whether the character sets of a and b, with stop words and whitespace removed,
// have a Jaccard index of at least threshold. Empty sets never match.
func Similar(a, b string, threshold float64) bool {
	sa, sb := charSet(a), charSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return false
	}
	return jaccard(sa, sb) >= threshold
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		for _, r := range w {
			set[r] = struct{}{}
		}
	}
	return set
}

// jaccard returns |a ∩ b| / |a ∪ b|; two empty sets are identical.
func jaccard[T comparable](a, b map[T]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func setOf[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
