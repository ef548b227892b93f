package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"competitor-watch/api"
	"competitor-watch/app"
	"competitor-watch/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Startup failed", zap.Error(err))
	}
	defer application.Close()

	// Seeding
	if err := application.SeedRoster(ctx); err != nil {
		logging.Fatal("Seeding failed", zap.Error(err))
	}

	router := api.NewRouter(cfg, application.Service, logging)

	// Setup Cron
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled profile runs...")
		reports, err := application.Service.RunActiveProfiles(context.Background())
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			return
		}
		ingested, mentions := 0, 0
		for _, r := range reports {
			ingested += r.Ingested
			mentions += r.Mentions
		}
		logging.Info("Cron job completed",
			zap.Int("profiles", len(reports)),
			zap.Int("ingested", ingested),
			zap.Int("mentions", mentions))
	})
	if err != nil {
		logging.Fatal("Invalid CRON_SCHEDULE", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// PubMed-Läufe mit vielen Batches dauern länger als eine normale Anfrage
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
