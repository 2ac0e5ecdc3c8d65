package store

import (
	"fmt"
	"strings"

	"github.com/franz/playlist-janitor/internal/util"
)

// Population selects one of the two indexed filename sets
type Population string

const (
	// TrackRefs is the set of paths referenced by playlists
	TrackRefs Population = "tracks"
	// Inventory is the set of files present on disk
	Inventory Population = "music"
)

// Populations lists every population in a stable order
var Populations = []Population{TrackRefs, Inventory}

// Valid reports whether p names a known population
func (p Population) Valid() bool {
	return p == TrackRefs || p == Inventory
}

func (p Population) String() string {
	return string(p)
}

// ParsePopulation accepts "tracks"/"track" and "music"/"inventory"/"files"
func ParsePopulation(s string) (Population, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tracks", "track", "refs":
		return TrackRefs, nil
	case "music", "inventory", "files":
		return Inventory, nil
	}
	return "", fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, s)
}

func (p Population) wordsTable() (string, error) {
	switch p {
	case TrackRefs:
		return "track_words", nil
	case Inventory:
		return "music_words", nil
	}
	return "", fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, string(p))
}

func (p Population) ownerTable() (string, error) {
	switch p {
	case TrackRefs:
		return "tracks", nil
	case Inventory:
		return "music_files", nil
	}
	return "", fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, string(p))
}

// MatchType is the confidence band of a suggestion
type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchHigh   MatchType = "high"
	MatchMedium MatchType = "medium"
	MatchLow    MatchType = "low"
)

// MatchTypes lists the bands from most to least confident
var MatchTypes = []MatchType{MatchExact, MatchHigh, MatchMedium, MatchLow}

// Valid reports whether t is a known band
func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchHigh, MatchMedium, MatchLow:
		return true
	}
	return false
}

// Suggestion proposes replacing a stale track path with an inventory file.
// Its identity is (TrackPath, MusicPath).
type Suggestion struct {
	TrackPath       string    `json:"track_path"`
	TrackNormalized string    `json:"track_normalized"`
	MusicPath       string    `json:"music_path"`
	MusicNormalized string    `json:"music_normalized"`
	Score           float64   `json:"similarity_score"`
	MatchType       MatchType `json:"match_type"`
	MatchedWords    []string  `json:"matched_words,omitempty"`
}
