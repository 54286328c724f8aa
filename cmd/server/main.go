package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/health"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/config"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	ratingDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/rating"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/events"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/notify"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
	"github.com/Kilat-Pet-Delivery/service-ride/migrations"
)

const serviceName = "service-ride"

type stores struct {
	db      *gorm.DB
	rides   ride.Repository
	drivers driverDomain.Repository
	ratings ratingDomain.Repository
}

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
		zap.String("storage", cfg.Storage),
		zap.String("live_feed", cfg.LiveFeed),
		zap.String("directions", cfg.Directions.Kind),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}

	var checkers []health.Checker

	// Driver positions: redis GEO when configured, process memory otherwise
	var locator driverDomain.Locator = repository.NewMemoryLocator()
	if cfg.RedisAddr != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisAddr, 5, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		redisLocator := repository.NewRedisDriverLocator(rdb)
		locator = redisLocator
		checkers = append(checkers, redisLocator)
	}

	// Breadcrumb trail in MongoDB, optional
	var breadcrumbs driverDomain.BreadcrumbRepository
	if cfg.MongoURI != "" {
		client, err := repository.ConnectMongo(ctx, cfg.MongoURI, log)
		if err != nil {
			log.Fatal("failed to connect to mongodb", zap.Error(err))
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		repo, err := repository.NewMongoBreadcrumbRepository(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			log.Fatal("failed to prepare breadcrumb collection", zap.Error(err))
		}
		breadcrumbs = repo
	}

	// Rider/driver notifications over RabbitMQ, optional
	var notifier notify.Notifier = notify.Nop{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := notify.NewRabbitNotifier(ctx, cfg.RabbitMQURL, log)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = rabbit.Close() }()
		notifier = rabbit
		checkers = append(checkers, rabbit)
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Directions provider with straight-line fallback
	provider, err := routing.NewProvider(cfg.Directions)
	if err != nil {
		log.Fatal("failed to configure directions provider", zap.Error(err))
	}
	estimator := routing.NewEstimator(provider, cfg.Directions.Timeout, cfg.Tracking.FallbackSpeedKmh, log)

	// Initialize application services
	rideService := application.NewRideService(
		st.rides,
		st.drivers,
		locator,
		ride.NewDefaultFareStrategy(),
		estimator,
		kafkaProducer,
		notifier,
		log,
	)

	hub := tracking.NewHub(cfg.LiveMaxAge)
	sessions := tracking.NewManager(cfg.Tracking, estimator, rideService, hub, log)
	rideService.WithSessions(sessions)

	driverService := application.NewDriverService(st.drivers, locator, log)
	locationService := application.NewLocationService(hub, locator, breadcrumbs, st.rides, log)
	ratingService := application.NewRatingService(st.ratings, st.rides, st.drivers, kafkaProducer, log)

	// Live driver positions
	var feeds []func()
	switch cfg.LiveFeed {
	case config.FeedKafka:
		groupID := cfg.KafkaConfig.GroupPrefix + "ride-service-locations"
		consumer := events.NewLocationConsumer(cfg.KafkaConfig.Brokers, groupID, locationService, log)
		go func() {
			log.Info("starting driver location consumer")
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("driver location consumer error", zap.Error(err))
			}
		}()
		feeds = append(feeds, func() { _ = consumer.Close() })
	case config.FeedMQTT:
		feed, err := tracking.NewMQTTFeed(cfg.MQTTBroker, serviceName, locationService, log)
		if err != nil {
			log.Fatal("failed to connect to mqtt broker", zap.Error(err))
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			feed.Start(ctx)
		}()
		feeds = append(feeds, func() { <-done })
	}

	// Initialize HTTP handlers
	rideHandler := handler.NewRideHandler(rideService, locationService)
	driverHandler := handler.NewDriverHandler(driverService, locationService)
	ratingHandler := handler.NewRatingHandler(ratingService)
	trackingHandler := handler.NewTrackingHandler(rideService, log)
	adminHandler := handler.NewAdminHandler(rideService, driverService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(st.db, serviceName, checkers...)
	healthHandler.RegisterRoutes(router)

	// Register routes
	rideHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	driverHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	ratingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	trackingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server. No write timeout: tracking streams are long-lived.
	srv := &http.Server{
		Addr:        cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop the feeds, then end tracking sessions so open streams close
	cancel()
	for _, stop := range feeds {
		stop()
	}
	sessions.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}

// openStores builds the ride, driver and rating repositories for the
// configured storage driver. db is nil for memory storage.
func openStores(cfg *config.ServiceConfig, log *zap.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			rides:   repository.NewMemoryRideRepository(),
			drivers: repository.NewMemoryDriverRepository(),
			ratings: repository.NewMemoryRatingRepository(),
		}, nil
	}

	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.RideModel{}, &repository.DriverModel{}, &repository.RatingModel{}); err != nil {
			return nil, fmt.Errorf("failed to run auto-migration: %w", err)
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", log); err != nil {
		return nil, err
	}

	return &stores{
		db:      db,
		rides:   repository.NewGormRideRepository(db),
		drivers: repository.NewGormDriverRepository(db),
		ratings: repository.NewGormRatingRepository(db),
	}, nil
}
