package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"enrolld/internal/config"
	"enrolld/internal/db"
	"enrolld/internal/deletion"
	"enrolld/internal/notify"
	"enrolld/pkg/bus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	queue, err := bus.New(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect nats")
	}
	defer queue.Close()

	if err := queue.EnsureStream(deletion.StreamName, nats.WorkQueuePolicy, deletion.SubjectRequest); err != nil {
		log.Fatal().Err(err).Msg("ensure deletion stream")
	}
	if err := queue.EnsureStream(notify.StreamName, nats.LimitsPolicy, notify.SubjectWildcard); err != nil {
		log.Fatal().Err(err).Msg("ensure notification stream")
	}

	dispatcher := notify.NewPublisher(queue, log.Logger)
	engine := deletion.NewEngine(database, cfg.DeletionMode, dispatcher, log.Logger)
	worker := deletion.NewWorker(engine, log.Logger)

	sub, err := queue.Subscribe(ctx, deletion.SubjectRequest, cfg.WorkerDurable, worker.Handle)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe deletion queue")
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Msg("close subscription")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.WorkerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.WorkerAddr).
			Str("durable", cfg.WorkerDurable).
			Str("deletion_mode", string(cfg.DeletionMode)).
			Msg("starting enrolld-worker")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
