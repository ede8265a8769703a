package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/config"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/mapprovider"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/database"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/kafka"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/logger"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/places"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "service-mileage"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.Connect(ctx, cfg.DBConfig.DSN(), database.DefaultPool, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// The expense table is the only schema this service owns.
	if err := db.AutoMigrate(&repository.ExpenseModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}
	log.Info("database migration completed")

	// Initialize Kafka producer
	var publisher application.EventPublisher
	if cfg.KafkaConfig.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	} else {
		log.Warn("kafka disabled, domain events will not be published")
	}

	// Initialize outbound adapters
	routingClient := routing.NewClient(routing.Config{
		BaseURL: cfg.RoutingConfig.BaseURL,
		Timeout: cfg.RoutingConfig.Timeout,
	}, log)
	placesClient := places.NewGoogleClient(places.Config{
		BaseURL:  cfg.PlacesConfig.BaseURL,
		APIKey:   cfg.PlacesConfig.APIKey,
		Language: cfg.PlacesConfig.Language,
		Timeout:  cfg.PlacesConfig.Timeout,
	}, log)

	var interactive mapprovider.InteractiveProvider
	if cfg.MapsConfig.PreferInteractive {
		interactive = mapprovider.NewGoogleInteractive(cfg.MapsConfig.GoogleKey)
	}
	mapResolver := application.NewMapTileResolver(
		interactive,
		mapprovider.NewGoogleStatic(cfg.MapsConfig.GoogleStaticURL, cfg.MapsConfig.GoogleKey),
		mapprovider.NewGeoapifyStatic(cfg.MapsConfig.GeoapifyStaticURL, cfg.MapsConfig.GeoapifyKey),
		mapprovider.NewHTTPImageLoader(cfg.MapsConfig.LoadTimeout),
		routingClient,
		application.MapTileConfig{
			Size:                maptile.Size{Width: cfg.MapsConfig.Width, Height: cfg.MapsConfig.Height},
			DisplayRouteTimeout: cfg.MapsConfig.DisplayRouteTimeout,
			PreferInteractive:   cfg.MapsConfig.PreferInteractive,
		},
		log,
	)

	// Initialize repositories
	expenseRepo := repository.NewGormExpenseRepository(db)

	// Initialize application services
	calculator := application.NewRouteCalculator(routingClient, log)
	routeService := application.NewRouteService(calculator, placesClient, publisher, log)
	expenseService := application.NewExpenseService(expenseRepo, mapResolver, log)
	wizardService := application.NewWizardService(
		calculator,
		mapResolver,
		placesClient,
		expenseRepo,
		publisher,
		application.WizardConfig{
			SessionTTL:           cfg.WizardConfig.SessionTTL,
			AutocompleteDebounce: cfg.WizardConfig.AutocompleteDebounce,
		},
		log,
	)

	// Expire abandoned wizard sessions in the background
	wizardService.StartSweeper(ctx, cfg.WizardConfig.SweepInterval)
	log.Info("wizard session sweeper started",
		zap.Duration("ttl", cfg.WizardConfig.SessionTTL),
		zap.Duration("interval", cfg.WizardConfig.SweepInterval),
	)

	// Initialize HTTP handlers
	routeHandler := handler.NewRouteHandler(routeService)
	expenseHandler := handler.NewExpenseHandler(expenseService, wizardService)
	wizardHandler := handler.NewWizardHandler(wizardService)
	adminHandler := handler.NewAdminHandler(wizardService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	routeHandler.RegisterRoutes(&router.RouterGroup)
	expenseHandler.RegisterRoutes(&router.RouterGroup)
	wizardHandler.RegisterRoutes(&router.RouterGroup)
	adminHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop the sweeper
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
