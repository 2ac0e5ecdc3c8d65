package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/franz/playlist-janitor/internal/util"
)

// Format is a playlist file format
type Format string

const (
	FormatM3U  Format = "m3u"
	FormatM3U8 Format = "m3u8"
	FormatPLS  Format = "pls"
	FormatTXT  Format = "txt"
)

const bom = "\uFEFF"

// maxLineSize bounds a single playlist line
const maxLineSize = 1024 * 1024

// Entry is one track path inside a playlist
type Entry struct {
	Path     string
	Position int // 0-based order in the playlist
	Line     int // 1-based line number in the file
}

// Playlist is a parsed playlist file
type Playlist struct {
	Path    string
	Format  Format
	Entries []Entry
}

// DetectFormat returns the format implied by the extension of path
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u":
		return FormatM3U, nil
	case ".m3u8":
		return FormatM3U8, nil
	case ".pls":
		return FormatPLS, nil
	case ".txt":
		return FormatTXT, nil
	}
	return "", fmt.Errorf("%w: unsupported playlist format %q", util.ErrUnsupported, filepath.Ext(path))
}

// IsPlaylist reports whether path has a supported playlist extension
func IsPlaylist(path string) bool {
	_, err := DetectFormat(path)
	return err == nil
}

// Parse reads the playlist at path
func Parse(path string) (*Playlist, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	entries, err := ParseReader(file, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &Playlist{Path: path, Format: format, Entries: entries}, nil
}

// ParseReader parses playlist content of the given format
func ParseReader(r io.Reader, format Format) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)

	var entries []Entry
	var plsEntries []plsEntry
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, bom)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch format {
		case FormatM3U, FormatM3U8:
			if strings.HasPrefix(line, "#") {
				continue
			}
			entries = append(entries, Entry{Path: line, Line: lineNo})
		case FormatTXT:
			entries = append(entries, Entry{Path: line, Line: lineNo})
		case FormatPLS:
			n, value, ok := parsePLSFile(line)
			if ok && value != "" {
				plsEntries = append(plsEntries, plsEntry{n: n, Entry: Entry{Path: value, Line: lineNo}})
			}
		default:
			return nil, fmt.Errorf("%w: unsupported playlist format %q", util.ErrUnsupported, string(format))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if format == FormatPLS {
		// FileN keys may appear in any order
		sort.SliceStable(plsEntries, func(i, j int) bool {
			return plsEntries[i].n < plsEntries[j].n
		})
		entries = make([]Entry, len(plsEntries))
		for i, e := range plsEntries {
			entries[i] = e.Entry
		}
	}

	for i := range entries {
		entries[i].Position = i
	}
	return entries, nil
}

type plsEntry struct {
	n int
	Entry
}

// parsePLSFile splits a "FileN=value" line. Keys are case-insensitive.
func parsePLSFile(line string) (int, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return 0, "", false
	}
	key = strings.TrimSpace(key)
	if len(key) <= 4 || !strings.EqualFold(key[:4], "file") {
		return 0, "", false
	}
	n, err := strconv.Atoi(key[4:])
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, strings.TrimSpace(value), true
}

// Find returns every playlist file under root, sorted. A root that is itself
// a playlist file is returned as is.
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsPlaylist(root) {
			return nil, fmt.Errorf("%w: %s is not a playlist", util.ErrUnsupported, root)
		}
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil
		}
		if !d.IsDir() && IsPlaylist(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

// lineEnd returns the length of the first line of data without its
// terminator and the terminator length. Lines end with \n, \r\n or a bare \r.
// ok is false when data holds no terminator.
func lineEnd(data []byte) (n, term int, ok bool) {
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		return len(data), 0, false
	}
	if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
		return i, 2, true
	}
	return i, 1, true
}

// scanLines is a bufio.SplitFunc that also accepts bare \r line endings
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	n, term, ok := lineEnd(data)
	if ok {
		// A trailing \r may be the first half of \r\n
		if term == 1 && data[n] == '\r' && n+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		return n + term, data[:n], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// splitLines splits data into lines that keep their terminators
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		n, term, _ := lineEnd(data)
		lines = append(lines, data[:n+term])
		data = data[n+term:]
	}
	return lines
}
