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
	"github.com/rs/zerolog"

	"github.com/quizdeck/quizdeck-api/internal/config"
	"github.com/quizdeck/quizdeck-api/internal/database"
	"github.com/quizdeck/quizdeck-api/internal/handler"
	"github.com/quizdeck/quizdeck-api/internal/mailer"
	"github.com/quizdeck/quizdeck-api/internal/middleware"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
	"github.com/quizdeck/quizdeck-api/internal/router"
	"github.com/quizdeck/quizdeck-api/internal/service"
	"github.com/quizdeck/quizdeck-api/pkg/ai"
	cloud "github.com/quizdeck/quizdeck-api/pkg/cloudinary"
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

	if err := db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.ClassMembership{},
		&models.Quiz{},
		&models.Question{},
		&models.Assignment{},
		&models.Attempt{},
		&models.AttemptGradeHistory{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not set, graded events disabled")
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	} else {
		logger.Warn().Msg("cloudinary not configured, image uploads disabled")
	}

	var drafter ai.Drafter
	if cfg.OpenAIAPIKey != "" {
		openaiDrafter, err := ai.NewOpenAIDrafter(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai drafter: %v", err)
		}
		drafter = openaiDrafter
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	var publisher service.GradedPublisher
	if natsConn != nil {
		publisher = service.NewNATSPublisher(natsConn, logger)
	}

	authService := service.NewAuthService(userRepo, validate, service.AuthConfig{
		JWTSecret:        cfg.JWTSecret,
		JWTRefreshSecret: cfg.JWTRefreshSecret,
		AccessTokenTTL:   cfg.AccessTokenTTL,
		RefreshTokenTTL:  cfg.RefreshTokenTTL,
	}, logger)
	classService := service.NewClassService(classRepo, redisClient, cfg.InviteCacheTTL, validate, logger)
	quizService := service.NewQuizService(quizRepo, validate, uploader, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, quizRepo, classRepo, userRepo, validate, logger)
	attemptService := service.NewAttemptService(attemptRepo, assignmentRepo, quizRepo, assignmentService, redisClient, publisher, validate, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	reportService := service.NewReportService(attemptRepo, assignmentRepo, classRepo, activityService, validate, logger)
	assistantService := service.NewAssistantService(drafter, validate, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	classHandler := handler.NewClassHandler(classService, logger)
	quizHandler := handler.NewQuizHandler(quizService, assistantService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, logger)
	reportHandler := handler.NewReportHandler(reportService, activityService, logger)
	monitorHandler := handler.NewMonitorHandler(redisClient, logger)

	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	if natsConn != nil {
		resultMailer := mailer.New(mailer.Config{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUsername,
			Pass: cfg.SMTPPassword,
			From: cfg.SMTPFrom,
		})
		var mail service.Mailer
		if resultMailer != nil {
			mail = resultMailer
		}
		notifier := service.NewResultNotifier(natsConn, mail, logger)
		if err := notifier.Start(notifierCtx); err != nil {
			log.Fatalf("failed to start result notifier: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       authHandler,
		ClassHandler:      classHandler,
		QuizHandler:       quizHandler,
		AssignmentHandler: assignmentHandler,
		AttemptHandler:    attemptHandler,
		ReportHandler:     reportHandler,
		MonitorHandler:    monitorHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

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
