package store

// Schema v1 - playlists, inventory, word indexes and suggestion snapshots
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Imported playlist files
CREATE TABLE IF NOT EXISTS playlists (
  path TEXT PRIMARY KEY,
  format TEXT NOT NULL,
  entry_count INTEGER NOT NULL DEFAULT 0,
  imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Track references recorded inside playlists
CREATE TABLE IF NOT EXISTS tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  normalized TEXT NOT NULL,
  playlist_path TEXT NOT NULL REFERENCES playlists(path) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  source_format TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_path ON tracks(path);
CREATE INDEX IF NOT EXISTS idx_tracks_normalized ON tracks(normalized);
CREATE INDEX IF NOT EXISTS idx_tracks_playlist ON tracks(playlist_path, position);

-- Audio files present on disk
CREATE TABLE IF NOT EXISTS music_files (
  path TEXT PRIMARY KEY,
  normalized TEXT NOT NULL,
  extension TEXT,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  tag_artist TEXT,
  tag_title TEXT,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_music_files_normalized ON music_files(normalized);

-- Inverted word index over track references
CREATE TABLE IF NOT EXISTS track_words (
  owner_path TEXT NOT NULL,
  word TEXT NOT NULL,
  position INTEGER NOT NULL,
  length INTEGER NOT NULL,
  PRIMARY KEY (owner_path, word, position)
);

CREATE INDEX IF NOT EXISTS idx_track_words_word ON track_words(word);

-- Inverted word index over inventory files
CREATE TABLE IF NOT EXISTS music_words (
  owner_path TEXT NOT NULL,
  word TEXT NOT NULL,
  position INTEGER NOT NULL,
  length INTEGER NOT NULL,
  PRIMARY KEY (owner_path, word, position)
);

CREATE INDEX IF NOT EXISTS idx_music_words_word ON music_words(word);

-- One persisted suggestion batch per cache key
CREATE TABLE IF NOT EXISTS suggestion_cache (
  cache_key TEXT PRIMARY KEY,
  created_at DATETIME NOT NULL,
  total INTEGER NOT NULL DEFAULT 0,
  exact INTEGER NOT NULL DEFAULT 0,
  high INTEGER NOT NULL DEFAULT 0,
  medium INTEGER NOT NULL DEFAULT 0,
  low INTEGER NOT NULL DEFAULT 0,
  payload TEXT NOT NULL
);

-- Last full rebuild per population
CREATE TABLE IF NOT EXISTS index_builds (
  population TEXT PRIMARY KEY,
  owners INTEGER NOT NULL DEFAULT 0,
  words_written INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME,
  completed_at DATETIME
);
`

// Schema v2 - apply run history
const schemaV2 = `
CREATE TABLE IF NOT EXISTS apply_runs (
  run_id TEXT PRIMARY KEY,
  cache_key TEXT,
  started_at DATETIME NOT NULL,
  completed_at DATETIME,
  applied INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  tracks_updated INTEGER NOT NULL DEFAULT 0,
  playlist_files_updated INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_apply_runs_started ON apply_runs(started_at);
`
