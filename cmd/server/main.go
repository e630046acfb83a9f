package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/config"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/credential"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/database"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/handler"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/mail"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/queue"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/router"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(cfg.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		logger.Logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrationsEnabled {
		if err := database.Migrate(db, cfg.DBName); err != nil {
			logger.Logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("schema up to date")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unreachable; rate limits are per process")
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	// Repositories
	users := repository.NewUserRepo(db)
	tours := repository.NewTourRepo(db)
	bookings := repository.NewBookingRepo(db)
	reviews := repository.NewReviewRepo(db)
	tx := repository.NewTxRunner(db)

	// Services
	sessions := credential.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	onetime := credential.NewOneTimeIssuer(cfg.TokenPepper, cfg.OneTimeTokenTTL)
	publisher := queue.NewPublisher(cfg.RabbitURL)

	gate := service.NewGate(sessions, users, rec)
	authSvc := service.NewAuthService(users, sessions, onetime, publisher, rec, service.AuthConfig{
		BaseURL:    cfg.BaseURL,
		BcryptCost: cfg.BcryptCost,
	})
	userSvc := service.NewUserService(users)
	tourSvc := service.NewTourService(tx, tours, reviews)
	bookingSvc := service.NewBookingService(tx, tours, bookings, publisher, rec)
	reviewSvc := service.NewReviewService(tx, tours, bookings, reviews, rec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background consumers reconnect on their own until ctx is cancelled.
	go func() {
		if err := queue.StartEmailConsumer(ctx, cfg.RabbitURL, mail.NewSMTPSender(cfg.SMTP)); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("email consumer stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := queue.StartBookingAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLogPath); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("booking audit consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(rec))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("10K"))
	e.Use(echomw.Secure())

	router.RegisterRoutes(e, handler.Health(db), metrics.Handler(reg))
	router.RegisterAPI(e, gate, router.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.CookieConfig{
			TTL:    time.Duration(cfg.JWTCookieDays) * 24 * time.Hour,
			Secure: cfg.IsProduction(),
		}),
		Users:    handler.NewUserHandler(userSvc),
		Tours:    handler.NewTourHandler(tourSvc),
		Bookings: handler.NewBookingHandler(bookingSvc),
		Reviews:  handler.NewReviewHandler(reviewSvc),
	}, router.Limits{
		API:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Auth: middleware.NewTokenBucket(config.LoadAuthRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
