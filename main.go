package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"senfret/internal/auth"
	"senfret/internal/config"
	"senfret/internal/database"
	"senfret/internal/devis"
	"senfret/internal/logging"
	"senfret/internal/middleware"
	"senfret/internal/moderation"
	"senfret/internal/notify"
	"senfret/internal/reviews"
	"senfret/internal/server"
	"senfret/internal/uploads"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	config.Load()
	logging.Setup(config.AppEnv.LogLevel)
	logger := logging.New("main")
	cfg := config.AppEnv

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("mongo connection failed")
	}
	db := client.Database(cfg.DBName)
	logger.Info().Str("db", db.Name()).Msg("MongoDB connected")

	if err := database.EnsureIndexes(db); err != nil {
		logger.Warn().Err(err).Msg("index warning")
	}
	if err := database.MigrateLegacyDevis(db); err != nil {
		logger.Warn().Err(err).Msg("legacy devis migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	st := database.NewStore(db)

	var mailer notify.Mailer = notify.NewLogMailer()
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}
	if cfg.RabbitMQURL != "" {
		rabbit, err := notify.NewRabbitClient(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq connection failed")
		}
		defer rabbit.Close()
		if err := rabbit.CreateQueue(cfg.MailQueue); err != nil {
			logger.Fatal().Err(err).Str("queue", cfg.MailQueue).Msg("queue declaration failed")
		}
		deliveries, err := rabbit.Consume(cfg.MailQueue)
		if err != nil {
			logger.Fatal().Err(err).Str("queue", cfg.MailQueue).Msg("queue consumer failed")
		}
		wg.Add(1)
		go notify.RunMailConsumer(ctx, deliveries, mailer, &wg)
		mailer = notify.NewQueueMailer(rabbit, cfg.MailQueue)
		logger.Info().Str("queue", cfg.MailQueue).Msg("mail jobs routed through rabbitmq")
	}

	var events notify.Publisher
	if cfg.KafkaBroker != "" {
		producer := notify.NewKafkaProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("domain events published to kafka")
	}

	hub := notify.NewHub(16)
	outbox := notify.NewOutbox(st)
	files := uploads.NewStorage(cfg.UploadDir, cfg.PublicBaseURL)

	authSvc := auth.NewService(st, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), outbox,
		auth.IDTokenVerifier{ClientID: cfg.GoogleClientID},
		auth.Settings{PublicBaseURL: cfg.PublicBaseURL, FrontendURL: cfg.FrontendURL})
	devisSvc := devis.NewService(st, outbox, files, cfg.DevisTTL)

	worker := notify.NewWorker(st, notify.NewDispatcher(st, hub, mailer, events), cfg.OutboxPollInterval, cfg.OutboxMaxAttempts).
		WithSweeper(devisSvc, sweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		Auth:          authSvc,
		Devis:         devisSvc,
		Reviews:       reviews.NewService(st, outbox),
		Moderation:    moderation.NewService(st, outbox),
		Notifications: st,
		Hub:           hub,
		Files:         files,
		RateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	wg.Wait()
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("mongo disconnect failed")
	}
}
