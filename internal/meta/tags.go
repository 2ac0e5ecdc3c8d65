package meta

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Tags holds the embedded tags the inventory keeps alongside a file
type Tags struct {
	Format string
	Artist string
	Title  string
	Album  string
}

// ReadTags reads embedded tags from an audio file using dhowden/tag
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return &Tags{
		Format: string(m.Format()),
		Artist: strings.TrimSpace(m.Artist()),
		Title:  strings.TrimSpace(m.Title()),
		Album:  strings.TrimSpace(m.Album()),
	}, nil
}

// DisplayName renders "Artist - Title" when both tags are present
func (t *Tags) DisplayName() string {
	if t == nil || t.Title == "" {
		return ""
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
