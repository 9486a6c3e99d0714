package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/config"
	"github.com/sigap-app/sigap-api/internal/database"
	"github.com/sigap-app/sigap-api/internal/handler"
	"github.com/sigap-app/sigap-api/internal/middleware"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/repository"
	"github.com/sigap-app/sigap-api/internal/router"
	"github.com/sigap-app/sigap-api/internal/service"
	cloud "github.com/sigap-app/sigap-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Report{}, &models.TrainingSession{}, &models.Product{}, &models.UploadRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, catalog cache and event fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	reportRepo := repository.NewReportRepository(db)
	trainingRepo := repository.NewTrainingSessionRepository(db)
	productRepo := repository.NewProductRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	events := service.NewEventPublisher(redisClient, natsConn, cfg.EventsChannel, logger)

	reportService := service.NewReportService(reportRepo, validate, events, logger)
	trainingService := service.NewTrainingService(trainingRepo, reportRepo, validate, cfg.SessionTokenTTL, events, logger)
	quizService := service.NewQuizService(trainingRepo, reportRepo, validate, events, logger)
	productService := service.NewProductService(productRepo, validate, redisClient, cfg.CatalogCacheTTL, cfg.SeedEnabled, cfg.SeedToken, logger)

	deps := router.Dependencies{
		ReportHandler:   handler.NewReportHandler(reportService, logger),
		TrainingHandler: handler.NewTrainingHandler(trainingService, quizService, logger),
		ProductHandler:  handler.NewProductHandler(productService, logger),
		SeedHandler:     handler.NewSeedHandler(productService, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	}

	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}

		uploadService := service.NewUploadService(uploader, uploadRepo, cfg.UploadMaxSizeMB, logger)
		deps.UploadHandler = handler.NewUploadHandler(uploadService, logger)
	} else {
		logger.Warn().Msg("cloudinary not configured, upload routes disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
