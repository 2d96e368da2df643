package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/database"
	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/router"
	"github.com/iliyamo/gym-management/internal/service"
)

// tokenPurgeInterval is how often expired refresh tokens are deleted.
const tokenPurgeInterval = time.Hour

func main() {
	_ = godotenv.Load() // .env is optional

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		v, err := database.Migrate(cfg)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "version", v)
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unavailable; cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL, logger)
	}

	// repositories
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	scheduleRepo := repository.NewScheduleRepo(db)
	enrollmentRepo := repository.NewEnrollmentRepo(db)
	packageRepo := repository.NewPackageRepo(db)
	memberPackageRepo := repository.NewMemberPackageRepo(db)
	productRepo := repository.NewProductRepo(db)
	voucherRepo := repository.NewVoucherRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	invoiceRepo := repository.NewInvoiceRepo(db)
	dashboardRepo := repository.NewDashboardRepo(db)

	// services
	authSvc := service.NewAuthService(cfg, db, userRepo, tokenRepo)
	userSvc := service.NewUserService(cfg, db, userRepo, tokenRepo, profileRepo)
	trainerSvc := service.NewTrainerService(cfg, db, userRepo, profileRepo, tokenRepo)
	scheduleSvc := service.NewScheduleService(db, scheduleRepo, enrollmentRepo, userRepo)
	voucherSvc := service.NewVoucherService(voucherRepo)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, orderRepo, memberPackageRepo, logger)
	membershipSvc := service.NewMembershipService(db, packageRepo, memberPackageRepo, userRepo, voucherSvc, invoiceSvc, events, logger)
	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(db, orderRepo, productRepo, voucherSvc, invoiceSvc, events, logger)
	dashboardSvc := service.NewDashboardService(dashboardRepo)
	exportSvc := service.NewExportService(userRepo, orderRepo, invoiceSvc)

	// background workers
	if cfg.EventsEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, invoiceSvc, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "err", err)
			}
		}()
	}
	if cfg.PackageExpiryInterval > 0 {
		go membershipSvc.RunExpiryWorker(ctx, cfg.PackageExpiryInterval)
	}
	go purgeTokens(ctx, authSvc, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.CORSOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	router.Register(e, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Trainers:   handler.NewTrainerHandler(trainerSvc, scheduleSvc),
		Schedules:  handler.NewScheduleHandler(scheduleSvc),
		Membership: handler.NewMembershipHandler(membershipSvc),
		Products:   handler.NewProductHandler(productSvc),
		Vouchers:   handler.NewVoucherHandler(voucherSvc),
		Orders:     handler.NewOrderHandler(orderSvc),
		Invoices:   handler.NewInvoiceHandler(invoiceSvc),
		Reports:    handler.NewReportHandler(dashboardSvc, exportSvc),
	}, router.Options{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: rlCfg,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	logger.Info("server stopped")
}

func purgeTokens(ctx context.Context, auth *service.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Error("refresh token purge failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("expired refresh tokens purged", "count", n)
			}
		}
	}
}
