// Package main contains the entrypoint for the comment bot application.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Biaslan-git/goals-comment-bot/internal/archive"
	"github.com/Biaslan-git/goals-comment-bot/internal/bot"
	"github.com/Biaslan-git/goals-comment-bot/internal/bot/tasks"
	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/llm"
	"github.com/Biaslan-git/goals-comment-bot/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, archive, completion client,
// one session per configured identity), starts the runner, and returns an
// exit code. Configuration failure is fatal for the process; a single
// identity failing to initialize only skips that identity.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	var archiveStore archive.Store
	var scheduler *bot.Scheduler
	if cfg.Archive.Enabled {
		db, err := archive.NewDB(cfg.Archive.Path)
		if err != nil {
			log.Error("Failed to open archive database", "path", cfg.Archive.Path, "error", err)
			return 1
		}
		defer archive.CloseDB(db)
		archiveStore = archive.NewStore(db, log)

		taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
			Logger:    log,
			Archive:   archiveStore,
			Retention: cfg.Archive.Retention,
		})
		schedules := map[string]string{"archive_cleanup": cfg.Archive.CleanupSchedule}

		scheduler, err = bot.NewScheduler(log, schedules, taskMap)
		if err != nil {
			log.Error("Failed to create scheduler", "error", err)
			return 1
		}
	}

	llmClient, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize completion client", "provider", cfg.LLM.Provider, "error", err)
		return 1
	}

	var sessions []*bot.Session
	for _, botCfg := range cfg.Bots {
		session, err := bot.NewSession(log, cfg, botCfg, llmClient, archiveStore)
		if err != nil {
			log.Error("Failed to initialize bot session, skipping identity", "bot", botCfg.Name, "error", err)
			continue
		}
		sessions = append(sessions, session)
	}

	runner := bot.NewRunner(log, sessions, scheduler)

	log.Info("Starting comment bot...", "identities", len(sessions))
	runErr := runner.Run(ctx)
	log.Info("Run loop finished. Shutting down...")

	if runErr != nil {
		log.Error("Stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
