// Package app verdrahtet Datenbank, Archiv, Quellen und Queue für Server und CLI.
package app

import (
	"context"
	"fmt"

	"competitor-watch/config"
	"competitor-watch/models"
	"competitor-watch/providers/ctgov"
	"competitor-watch/providers/pubmed"
	"competitor-watch/services"
	"competitor-watch/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App hält die gemeinsam genutzten Abhängigkeiten eines Prozesses.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Store   *services.Store
	Service *services.IngestService

	closers []func() error
}

// New öffnet die Datenbank, migriert das Schema und baut den Orchestrator.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := storage.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	logger.Info("Datenbank verbunden", zap.String("driver", cfg.DBDriver))

	if err := models.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("fehler bei der Migration: %w", err)
	}

	archive, err := storage.NewArchive(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = services.NewStore(db, archive, logger)

	var queue services.SummaryQueue
	if cfg.RedisAddr != "" {
		rq := services.NewRedisSummaryQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SummaryQueue)
		a.closers = append(a.closers, rq.Close)
		queue = rq
		logger.Info("Summary-Queue aktiv", zap.String("addr", cfg.RedisAddr), zap.String("key", rq.Key))
	}

	a.Service = services.NewIngestService(cfg, a.Store,
		pubmed.NewFetcher(cfg, logger),
		ctgov.NewFetcher(cfg, logger),
		queue, logger)
	return a, nil
}

// SeedRoster lädt die Stammdaten aus ROSTER_PATH. Eine fehlende Datei ist nur eine Warnung.
func (a *App) SeedRoster(ctx context.Context) error {
	if a.Config.RosterPath == "" {
		return nil
	}
	roster, err := services.LoadRoster(a.Config.RosterPath)
	if err != nil {
		a.Logger.Warn("Keine Stammdaten geladen", zap.String("path", a.Config.RosterPath), zap.Error(err))
		return nil
	}
	return services.SeedRoster(ctx, a.Store, roster, a.Logger)
}

// Close gibt Verbindungen in umgekehrter Reihenfolge frei.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
