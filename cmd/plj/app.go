package main

import (
	"fmt"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/playlist"
	"github.com/franz/playlist-janitor/internal/reconcile"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
)

// app bundles the components every command works with
type app struct {
	db       *store.Store
	logger   *report.EventLogger
	index    *index.Index
	engine   *reconcile.Engine
	importer *playlist.Importer
}

// setupLogging applies --verbose/--quiet and returns the matching event level
func setupLogging() report.EventLevel {
	verbose := GetConfigBool("verbose")
	quiet := GetConfigBool("quiet")
	util.SetVerbose(verbose)
	util.SetQuiet(quiet)

	switch {
	case quiet:
		return report.LevelWarning
	case verbose:
		return report.LevelDebug
	default:
		return report.LevelInfo
	}
}

// openStore opens the state database, applying network pragmas when configured
func openStore() (*store.Store, error) {
	dbPath := GetConfigString("db", "plj-state.db")

	network, info, err := util.ResolveNetworkDB(GetConfigString("network-db", "auto"), dbPath)
	if err != nil {
		return nil, err
	}
	if network {
		if info != nil {
			util.InfoLog("Database is on a network filesystem (%s), using network pragmas", info.Protocol)
		} else {
			util.DebugLog("Network pragmas enabled by config")
		}
	}

	util.DebugLog("Opening database: %s", dbPath)
	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{NetworkOptimized: network})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openApp opens the database and the event log and wires the engine.
// Callers must close it.
func openApp(onProgress util.ProgressFunc) (*app, error) {
	level := setupLogging()

	db, err := openStore()
	if err != nil {
		return nil, err
	}

	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	if logger.Path() != "" {
		util.DebugLog("Event log: %s", logger.Path())
	}

	ix := index.New(&index.Config{
		Store:     db,
		BatchSize: GetConfigInt("batch-size", 0),
		Logger:    logger,
	})

	engine, err := reconcile.New(&reconcile.Config{
		Store:      db,
		Index:      ix,
		Rewriter:   playlist.NewFileRewriter(util.DefaultRetryConfig()),
		Logger:     logger,
		Threshold:  GetConfigFloat("threshold", 0),
		Candidates: GetConfigInt("candidates", 0),
		Workers:    GetConfigInt("workers", 0),
		OnProgress: onProgress,
	})
	if err != nil {
		logger.Close()
		db.Close()
		return nil, err
	}

	return &app{
		db:     db,
		logger: logger,
		index:  ix,
		engine: engine,
		importer: playlist.NewImporter(&playlist.Config{
			Store:       db,
			Index:       ix,
			Invalidator: engine,
			Logger:      logger,
		}),
	}, nil
}

func (a *app) Close() {
	a.logger.Close()
	a.db.Close()
}
