package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-painter/internal/config"
	"ai-painter/internal/genai"
	"ai-painter/internal/persist"
	"ai-painter/internal/quota"
	"ai-painter/internal/scheduler"
	"ai-painter/internal/session"
	"ai-painter/internal/storage"
	"ai-painter/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	var sinks []persist.ArtifactSink
	if cfg.LegacyOutputDir != "" {
		sink, err := persist.NewLegacyDirSink(cfg.LegacyOutputDir)
		if err != nil {
			log.Printf("failed to init legacy output sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	store, err := persist.NewStore(cfg.DataDir, sinks...)
	if err != nil {
		log.Fatalf("failed to init interaction store: %v", err)
	}

	var ledgerRepo quota.Repository
	if repo, err := quota.NewFileRepository(filepath.Join(cfg.DataDir, "usage_stats.json")); err != nil {
		log.Printf("failed to init quota repo, ledger will not persist: %v", err)
	} else {
		ledgerRepo = repo
	}
	ledger := quota.NewLedger(ledgerRepo)

	var rec storage.Recorder
	if cfg.EventLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.EventLogPath)
		if err != nil {
			log.Printf("failed to init generation recorder: %v", err)
		} else {
			rec = fr
		}
	}

	factory := genai.NewFactory(cfg)
	generator := factory.CreateGenerator()
	refiner, err := factory.CreateRefiner(string(cfg.RefinerProvider))
	if err != nil {
		log.Fatalf("failed to create prompt refiner: %v", err)
	}

	registry := session.NewRegistry(256)
	restorer := session.NewRestorer(store, registry)

	bot, err := telegram.New(
		cfg.TelegramBotToken,
		store,
		ledger,
		restorer,
		generator,
		refiner,
		rec,
		cfg.AdminUserID,
		cfg.MessageParseMode,
		cfg.UploadWaitTimeout,
	)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	sched := scheduler.New(cfg.CleanupSchedule)
	maxAge := time.Duration(cfg.CleanupMaxAgeDays) * 24 * time.Hour
	sched.SetCleanupFunction(func(ctx context.Context) (int, error) {
		return store.Cleanup(maxAge)
	})
	if err := sched.Start(); err != nil {
		log.Printf("failed to start cleanup scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot.Start(ctx)
}
