package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/barberq/scheduling-core/internal/config"
	"github.com/barberq/scheduling-core/internal/database"
	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/handlers"
	"github.com/barberq/scheduling-core/internal/middleware"
	"github.com/barberq/scheduling-core/internal/realtime"
	"github.com/barberq/scheduling-core/internal/repository"
	"github.com/barberq/scheduling-core/internal/subscribers"
	"github.com/barberq/scheduling-core/pkg/events"
	"github.com/barberq/scheduling-core/pkg/logger"
	"github.com/barberq/scheduling-core/pkg/scheduler"
)

const catalogCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run database migrations", "error", err)
	}

	var redisClient *redis.Client
	redisClient, err = database.ConnectRedis(cfg.Redis)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to Redis, continuing without cache", "error", err)
			redisClient = nil
		} else {
			log.Fatal("failed to connect to Redis", "error", err)
		}
	}

	var natsConn *nats.Conn
	var eventPublisher *events.Publisher
	natsConn, err = events.Connect(cfg.NATS)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to NATS, continuing without events", "error", err)
			eventPublisher = events.NewNullPublisher(log)
		} else {
			log.Fatal("failed to connect to NATS", "error", err)
		}
	} else {
		defer natsConn.Close()
		eventPublisher = events.NewPublisher(natsConn, log)
	}

	gormRepo := repository.New(db)
	catalog := repository.NewCaching(gormRepo, redisClient, catalogCacheTTL)
	if err := catalog.Refresh(context.Background()); err != nil {
		log.Warn("initial catalog refresh failed", "error", err)
	}

	lock := engine.NewKeyedLock()
	defer lock.Stop()

	coordinator := &engine.Coordinator{
		Repo:      catalog,
		Lock:      lock,
		Publisher: eventPublisher,
		Policy:    cfg.Policy,
		Clock:     engine.SystemClock{},
		Log:       log,
	}
	query := &engine.Query{
		Repo:   catalog,
		Policy: cfg.Policy,
		Clock:  engine.SystemClock{},
	}

	cronScheduler := scheduler.New(catalog, log)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	bookingHandler := handlers.NewBookingHandler(coordinator, log)
	availabilityHandler := handlers.NewAvailabilityHandler(query, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, natsConn, log)

	var eventSubscriber *events.Subscriber
	subscriptionManager := realtime.NewSubscriptionManager(log, nil, cfg.Policy.EventBufferSize)
	if natsConn != nil {
		eventSubscriber = events.NewSubscriber(natsConn, log)
		subscriptionManager = realtime.NewSubscriptionManager(log, eventSubscriber, cfg.Policy.EventBufferSize)
	} else {
		log.Warn("realtime gateway started without NATS, clients will receive no events")
	}
	go subscriptionManager.Run()
	if err := subscriptionManager.StartEventSubscriptions(); err != nil {
		log.Warn("failed to start realtime event subscriptions", "error", err)
	}
	realtimeHandler := handlers.NewRealtimeHandler(subscriptionManager, log)

	if natsConn != nil {
		catalogHandlers := subscribers.NewCatalogEventHandlers(db, catalog, log)
		if err := setupCatalogSubscribers(events.NewSubscriber(natsConn, log), catalogHandlers); err != nil {
			log.Fatal("failed to set up catalog event subscribers", "error", err)
		}
	} else {
		log.Warn("skipping catalog event subscribers (no NATS connection)")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.DefaultCORS())
	router.Use(middleware.RequestLogging(log))

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	router.GET("/ws/timeline", realtimeHandler.HandleConnections)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/book", bookingHandler.Book)
		v1.POST("/cancel/:id", bookingHandler.Cancel)
		v1.POST("/status/:id", bookingHandler.TransitionStatus)
		v1.POST("/priority/:id", bookingHandler.ChangePriority)
		v1.POST("/queue/:id/move", bookingHandler.MoveQueuePosition)
		v1.POST("/queue/:id/promote", bookingHandler.PromoteToScheduled)
		v1.POST("/queue/:id/demote", bookingHandler.DemoteToQueue)

		v1.GET("/slots", availabilityHandler.Slots)
		v1.GET("/alternatives", availabilityHandler.Alternatives)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting scheduling core", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduling core")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("scheduling core stopped")
}

// setupCatalogSubscribers wires the upstream catalog-change subjects to
// their upsert handlers.
func setupCatalogSubscribers(subscriber *events.Subscriber, h *subscribers.CatalogEventHandlers) error {
	if err := subscriber.Subscribe("catalog.service.upserted", h.HandleServiceUpserted); err != nil {
		return fmt.Errorf("failed to subscribe to catalog.service.upserted: %w", err)
	}
	if err := subscriber.Subscribe("catalog.addon.upserted", h.HandleAddOnUpserted); err != nil {
		return fmt.Errorf("failed to subscribe to catalog.addon.upserted: %w", err)
	}
	if err := subscriber.Subscribe("catalog.barber.upserted", h.HandleBarberUpserted); err != nil {
		return fmt.Errorf("failed to subscribe to catalog.barber.upserted: %w", err)
	}
	if err := subscriber.Subscribe("catalog.dayoff.created", h.HandleDayOffCreated); err != nil {
		return fmt.Errorf("failed to subscribe to catalog.dayoff.created: %w", err)
	}
	return nil
}
