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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"enrolld/internal/audit"
	"enrolld/internal/config"
	"enrolld/internal/db"
	"enrolld/internal/deletion"
	"enrolld/internal/enroll"
	"enrolld/internal/handlers"
	"enrolld/internal/notify"
	"enrolld/internal/otel"
	"enrolld/pkg/bus"
)

const serviceName = "enrolld"

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

	cleanup, err := otel.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

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
	if err := db.Seed(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("seed database")
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
	enrollSvc := enroll.New(database, dispatcher, log.Logger)
	recorder := audit.New(database)
	engine := deletion.NewEngine(database, cfg.DeletionMode, dispatcher, log.Logger)
	admin := deletion.NewAdmin(engine, recorder, queue, log.Logger)

	api := handlers.New(database, enrollSvc, admin, recorder, log.Logger, handlers.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})

	var handler http.Handler = api.Routes()
	if cfg.OTLPEndpoint != "" {
		handler = otelhttp.NewHandler(handler, serviceName)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("deletion_mode", string(cfg.DeletionMode)).Msg("starting enrolld")
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
