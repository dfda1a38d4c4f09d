package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adiwidodo/backend-belanja/internal/config"
	"github.com/adiwidodo/backend-belanja/internal/db"
	"github.com/adiwidodo/backend-belanja/internal/notify"
	"github.com/adiwidodo/backend-belanja/internal/obs"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := db.Connect(connectCtx, cfg.DatabaseURL, "belanja-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	var mailer notify.Mailer = notify.NopMailer{}
	if cfg.MailProviderURL != "" {
		mailer = notify.NewHTTPMailer(cfg.MailProviderURL, cfg.MailProviderKey, cfg.MailFrom)
	} else {
		logger.Warn().Msg("mail provider not configured, emails will be discarded")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})

	worker := &notify.Worker{
		Mailer:   mailer,
		Users:    store.New(pool),
		Currency: cfg.CurrencyCode,
		Log:      logger,
	}
	mux := asynq.NewServeMux()
	worker.Register(mux)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
