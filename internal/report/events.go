package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventImport  EventType = "import"
	EventScan    EventType = "scan"
	EventIndex   EventType = "index"
	EventSuggest EventType = "suggest"
	EventApply   EventType = "apply"
	EventRewrite EventType = "rewrite"
	EventError   EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the JSONL audit trail
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	RunID      string            `json:"run_id,omitempty"`
	Population string            `json:"population,omitempty"`
	CacheKey   string            `json:"cache_key,omitempty"`
	Playlist   string            `json:"playlist,omitempty"`
	TrackPath  string            `json:"track_path,omitempty"`
	MusicPath  string            `json:"music_path,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Count      int               `json:"count,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is a no-op.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append: two commands started in the same second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

func levelFor(err error) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return LevelInfo, ""
}

// LogImport logs a playlist import
func (l *EventLogger) LogImport(playlist string, entries int, err error) error {
	level, msg := levelFor(err)
	return l.Log(&Event{
		Level:    level,
		Event:    EventImport,
		Playlist: playlist,
		Count:    entries,
		Error:    msg,
	})
}

// LogScan logs the totals of an inventory scan
func (l *EventLogger) LogScan(root string, files, pruned int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventScan,
		Count:    files,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"root":   root,
			"pruned": fmt.Sprintf("%d", pruned),
		},
	})
}

// LogIndex logs a completed index rebuild
func (l *EventLogger) LogIndex(population string, owners, words, failed int, duration time.Duration) error {
	level := LevelInfo
	if failed > 0 {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:      level,
		Event:      EventIndex,
		Population: population,
		Count:      owners,
		Duration:   duration.Milliseconds(),
		Extra: map[string]string{
			"words_written": fmt.Sprintf("%d", words),
			"failed":        fmt.Sprintf("%d", failed),
		},
	})
}

// LogSuggest logs a suggestion request and whether it was served from cache
func (l *EventLogger) LogSuggest(cacheKey string, total int, cached bool, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSuggest,
		CacheKey: cacheKey,
		Count:    total,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"cached": fmt.Sprintf("%t", cached),
		},
	})
}

// LogApply logs one applied (or failed) suggestion
func (l *EventLogger) LogApply(runID, trackPath, musicPath string, score float64, playlists int, err error) error {
	level, msg := levelFor(err)
	return l.Log(&Event{
		Level:     level,
		Event:     EventApply,
		RunID:     runID,
		TrackPath: trackPath,
		MusicPath: musicPath,
		Score:     score,
		Count:     playlists,
		Error:     msg,
	})
}

// LogRewrite logs one playlist file rewrite
func (l *EventLogger) LogRewrite(runID, playlist, oldPath, newPath string, changed bool, err error) error {
	level, msg := levelFor(err)
	if err == nil && !changed {
		level = LevelDebug
	}
	return l.Log(&Event{
		Level:     level,
		Event:     EventRewrite,
		RunID:     runID,
		Playlist:  playlist,
		TrackPath: oldPath,
		MusicPath: newPath,
		Error:     msg,
		Extra: map[string]string{
			"changed": fmt.Sprintf("%t", changed),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level:     LevelError,
		Event:     event,
		TrackPath: path,
		Error:     err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
