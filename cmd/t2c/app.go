package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Zuo-Peng/t2c/internal/archive"
	"github.com/Zuo-Peng/t2c/internal/config"
	"github.com/Zuo-Peng/t2c/internal/crossbell"
	"github.com/Zuo-Peng/t2c/internal/logging"
	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/store"
)

// app is the wired set of components one command works with.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	state    *migrate.State
	archive  *archive.Archive
	client   *crossbell.Client
	orch     *migrate.Orchestrator
	migrator *migrate.Migrator // nil unless the archive is open
	closers  []io.Closer
}

type appOptions struct {
	archive   bool // open the export
	publisher bool // connect to Crossbell
	logToFile bool // the terminal belongs to the TUI
}

func openApp(opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{cfg: cfg}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	if opts.logToFile {
		logger, closer, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return fail(fmt.Errorf("open log: %w", err))
		}
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = logging.New(os.Stderr, cfg.LogLevel)
	}

	a.db, err = store.Open(cfg.DBPath)
	if err != nil {
		return fail(fmt.Errorf("open db: %w", err))
	}
	a.closers = append(a.closers, a.db)
	a.state = migrate.NewState(a.db)

	if opts.archive {
		a.archive, err = archive.Open(cfg.ArchiveRoot, a.logger.With("component", "archive"))
		if err != nil {
			return fail(err)
		}
	}

	deps := migrate.OrchestratorDeps{
		State:   a.state,
		Journal: a.db,
		Logger:  a.logger.With("component", "orchestrator"),
	}
	if opts.publisher {
		author := ""
		if a.archive != nil {
			author = a.archive.UserName()
		}
		a.client, err = crossbell.New(crossbell.Config{
			IndexerURL:        cfg.Crossbell.IndexerURL,
			IPFSURL:           cfg.Crossbell.IPFSURL,
			Token:             cfg.Crossbell.Token,
			Author:            author,
			Timeout:           cfg.Crossbell.RequestTimeout(),
			RequestsPerSecond: cfg.Crossbell.RequestsPerSecond,
			MediaConcurrency:  cfg.Crossbell.MediaConcurrency,
		}, crossbell.WithLogger(a.logger.With("component", "crossbell")))
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, a.client)
		deps.Publisher = a.client
		deps.Guard = migrate.NewDuplicateGuard(a.client, a.logger.With("component", "guard"))
	}

	a.orch = migrate.NewOrchestrator(deps)
	if a.archive != nil {
		a.migrator = migrate.NewMigrator(a.archive, a.orch, a.state, a.logger.With("component", "migrator"))
	}
	return a, nil
}

// Close releases everything in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
