package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/mail"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	"github.com/iliyamo/auth-service/internal/service"
)

func main() {
	_ = godotenv.Load() // a .env file is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.IsProd())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	users := service.NewUserService(repository.NewUserRepo(db), cfg.BcryptCost)
	dispatcher := service.NewAsyncDispatcher(&service.AMQPPublisher{URL: cfg.AMQPURL, Log: logger}, logger)

	consumer := &queue.EmailConsumer{
		URL:     cfg.AMQPURL,
		BaseURL: cfg.BaseURL,
		Sender:  mail.NewSender(cfg.SMTP, logger),
		Log:     logger,
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("email consumer stopped", zap.Error(err))
		}
	}()

	e := router.New(router.Deps{
		Cfg:   cfg,
		Auth:  handler.NewAuthHandler(cfg, users, dispatcher, logger),
		Admin: handler.NewAdminHandler(users, logger),
		Users: users,
		DB:    db,
		Redis: rdb,
		Log:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Env))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
