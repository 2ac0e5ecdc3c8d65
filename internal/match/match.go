package match

import (
	"context"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
)

// Score weights
const (
	editWeight    = 0.7
	overlapWeight = 0.3
	reorderWeight = 0.85
)

// DefaultThreshold is the minimum score a match needs unless overridden
const DefaultThreshold = 0.5

// Options controls a search
type Options struct {
	Limit               int // 0 = unlimited
	Threshold           float64
	Population          store.Population
	IncludeScoreDetails bool
}

// DefaultOptions returns unlimited search options for pop with the default threshold
func DefaultOptions(pop store.Population) Options {
	return Options{
		Threshold:  DefaultThreshold,
		Population: pop,
	}
}

func (o Options) validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", util.ErrInvalidInput, o.Limit)
	}
	if o.Threshold < 0 || o.Threshold > 1 || math.IsNaN(o.Threshold) {
		return fmt.Errorf("%w: threshold %v outside [0,1]", util.ErrInvalidInput, o.Threshold)
	}
	if !o.Population.Valid() {
		return fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, string(o.Population))
	}
	return nil
}

// ScoreDetails breaks a score into its components
type ScoreDetails struct {
	Overlap        float64 `json:"overlap"`
	Coverage       float64 `json:"coverage"`
	EditSimilarity float64 `json:"edit_similarity"`
	Weighted       float64 `json:"weighted"`
	Reorder        float64 `json:"reorder"`
}

// Match is one ranked search hit
type Match struct {
	Path         string        `json:"path"`
	Normalized   string        `json:"normalized"`
	Score        float64       `json:"score"`
	MatchCount   int           `json:"match_count"`
	MatchedWords []string      `json:"matched_words"`
	Details      *ScoreDetails `json:"details,omitempty"`
}

// Matcher ranks index owners against free-text queries
type Matcher struct {
	index *index.Index
	lev   *metrics.Levenshtein
}

// New creates a matcher over ix
func New(ix *index.Index) *Matcher {
	return &Matcher{
		index: ix,
		lev:   metrics.NewLevenshtein(),
	}
}

// Search returns the owners of opts.Population that share at least one word
// with query and score at or above opts.Threshold, best first.
// Ties are broken by match count, then by path.
func (m *Matcher) Search(ctx context.Context, query string, opts Options) ([]Match, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	normalizedQuery := meta.Normalize(query)
	queryWords := distinctWords(meta.Tokenize(normalizedQuery))
	if len(queryWords) == 0 {
		return []Match{}, nil
	}

	// Stage 1: candidates sharing any query word, all read under one lock
	shared := make(map[string]map[string]bool)
	err := m.index.Read(ctx, opts.Population, func(r index.Reader) error {
		for _, w := range queryWords {
			occ, err := r.OwnersOf(ctx, w)
			if err != nil {
				return err
			}
			for _, o := range occ {
				set, ok := shared[o.OwnerPath]
				if !ok {
					set = make(map[string]bool)
					shared[o.OwnerPath] = set
				}
				set[w] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("candidate lookup failed: %w", err)
	}

	// Stage 2: score each candidate
	matches := make([]Match, 0, len(shared))
	for path, words := range shared {
		candidate := meta.NormalizePath(path)
		candidateWords := distinctWords(meta.Tokenize(candidate))

		details := m.score(normalizedQuery, candidate, len(words), len(queryWords), len(candidateWords))
		score := round4(math.Max(details.Weighted, details.Reorder))
		if score < opts.Threshold {
			continue
		}

		matched := make([]string, 0, len(words))
		for _, w := range queryWords {
			if words[w] {
				matched = append(matched, w)
			}
		}

		match := Match{
			Path:         path,
			Normalized:   candidate,
			Score:        score,
			MatchCount:   len(words),
			MatchedWords: matched,
		}
		if opts.IncludeScoreDetails {
			d := details
			match.Details = &d
		}
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		return a.Path < b.Path
	})

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	return matches, nil
}

// Similarity scores two raw filenames against each other without the index.
// Both names are normalized first.
func (m *Matcher) Similarity(a, b string) float64 {
	na, nb := meta.Normalize(a), meta.Normalize(b)
	wa := distinctWords(meta.Tokenize(na))
	wb := distinctWords(meta.Tokenize(nb))

	inB := make(map[string]bool, len(wb))
	for _, w := range wb {
		inB[w] = true
	}
	common := 0
	for _, w := range wa {
		if inB[w] {
			common++
		}
	}

	if len(wa) == 0 || len(wb) == 0 {
		return round4(m.editSimilarity(na, nb) * editWeight)
	}
	d := m.score(na, nb, common, len(wa), len(wb))
	return round4(math.Max(d.Weighted, d.Reorder))
}

func (m *Matcher) score(query, candidate string, matchCount, queryWords, candidateWords int) ScoreDetails {
	var d ScoreDetails
	if queryWords > 0 {
		d.Overlap = float64(matchCount) / float64(queryWords)
	}
	if candidateWords > 0 {
		d.Coverage = float64(matchCount) / float64(candidateWords)
	}
	d.EditSimilarity = m.editSimilarity(query, candidate)
	d.Weighted = editWeight*d.EditSimilarity + overlapWeight*d.Overlap
	d.Reorder = reorderWeight * d.Overlap * d.Coverage

	d.Overlap = round4(d.Overlap)
	d.Coverage = round4(d.Coverage)
	d.EditSimilarity = round4(d.EditSimilarity)
	d.Weighted = round4(d.Weighted)
	d.Reorder = round4(d.Reorder)
	return d
}

// editSimilarity is 1 - levenshtein/maxRuneLen; two empty strings are identical
func (m *Matcher) editSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(m.lev.Distance(a, b))/float64(maxLen)
}

func distinctWords(tokens []meta.Token) []string {
	seen := make(map[string]bool, len(tokens))
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t.Word] {
			continue
		}
		seen[t.Word] = true
		words = append(words, t.Word)
	}
	return words
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
