package playlist

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/franz/playlist-janitor/internal/util"
)

// FileRewriter replaces track paths inside playlist files on disk.
// Files are written to a ".part" sibling and renamed over the original.
type FileRewriter struct {
	retry *util.RetryConfig
}

// NewFileRewriter creates a rewriter. A nil cfg uses util.DefaultRetryConfig.
func NewFileRewriter(cfg *util.RetryConfig) *FileRewriter {
	if cfg == nil {
		cfg = util.DefaultRetryConfig()
	}
	return &FileRewriter{retry: cfg}
}

// RewritePath replaces every entry equal to oldPath with newPath. Everything
// else in the file, line endings included, is kept byte for byte.
// Returns false without touching the file when no entry matched.
func (w *FileRewriter) RewritePath(ctx context.Context, playlistPath, oldPath, newPath string) (bool, error) {
	if oldPath == "" || newPath == "" {
		return false, fmt.Errorf("%w: empty path", util.ErrInvalidInput)
	}
	format, err := DetectFormat(playlistPath)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(playlistPath)
	if err != nil {
		return false, fmt.Errorf("failed to stat playlist: %w", err)
	}

	data, err := util.RetryableReadFile(ctx, playlistPath, w.retry)
	if err != nil {
		return false, fmt.Errorf("failed to read playlist: %w", err)
	}

	out, changed := rewriteEntries(data, format, oldPath, newPath)
	if changed == 0 {
		return false, nil
	}

	tmpPath := playlistPath + ".part"
	if err := util.RetryableWriteFile(ctx, tmpPath, out, info.Mode().Perm(), w.retry); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := util.RetryableRename(ctx, tmpPath, playlistPath, w.retry); err != nil {
		if rmErr := util.RetryableRemove(ctx, tmpPath, w.retry); rmErr != nil && !os.IsNotExist(rmErr) {
			util.WarnLog("Failed to remove %s: %v", tmpPath, rmErr)
		}
		return false, fmt.Errorf("failed to replace playlist: %w", err)
	}

	util.DebugLog("Rewrote %d entr(y/ies) in %s", changed, playlistPath)
	return true, nil
}

// rewriteEntries returns data with every entry equal to oldPath replaced and
// the number of replaced entries
func rewriteEntries(data []byte, format Format, oldPath, newPath string) ([]byte, int) {
	lines := splitLines(data)
	var out bytes.Buffer
	out.Grow(len(data))

	changed := 0
	for i, raw := range lines {
		line := string(raw)

		prefix := ""
		if i == 0 && strings.HasPrefix(line, bom) {
			prefix = bom
			line = line[len(bom):]
		}

		body, ending := cutLineEnding(line)
		if replaced, ok := rewriteLine(body, format, oldPath, newPath); ok {
			body = replaced
			changed++
		}

		out.WriteString(prefix)
		out.WriteString(body)
		out.WriteString(ending)
	}

	return out.Bytes(), changed
}

// rewriteLine replaces the entry of one line, keeping surrounding whitespace
func rewriteLine(body string, format Format, oldPath, newPath string) (string, bool) {
	switch format {
	case FormatPLS:
		key, value, ok := strings.Cut(body, "=")
		if !ok {
			return body, false
		}
		if _, _, isFile := parsePLSFile(body); !isFile {
			return body, false
		}
		if lead, trail, ok := matchTrimmed(value, oldPath); ok {
			return key + "=" + lead + newPath + trail, true
		}
	case FormatM3U, FormatM3U8, FormatTXT:
		if strings.HasPrefix(strings.TrimSpace(body), "#") {
			return body, false
		}
		if lead, trail, ok := matchTrimmed(body, oldPath); ok {
			return lead + newPath + trail, true
		}
	}
	return body, false
}

// matchTrimmed reports whether s equals want once surrounding whitespace is
// removed, returning that whitespace
func matchTrimmed(s, want string) (lead, trail string, ok bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed != want {
		return "", "", false
	}
	start := strings.Index(s, trimmed)
	return s[:start], s[start+len(trimmed):], true
}

func cutLineEnding(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	case strings.HasSuffix(line, "\r"):
		return line[:len(line)-1], "\r"
	}
	return line, ""
}
