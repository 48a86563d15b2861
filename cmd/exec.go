package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-ticketing/config"
	"event-ticketing/handlers"
	"event-ticketing/monitoring"
	"event-ticketing/security"
	"event-ticketing/services"
	"event-ticketing/utils"

	_ "event-ticketing/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize notifier
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		notifier = services.NewPubNubNotifier(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey)
	} else {
		slog.Warn("PubNub keys not configured, realtime notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	queueService := services.NewQueueService(redisClient, notifier, cfg.BookingTokenTTL)
	eventService := services.NewEventService(app, queueService)
	tokenService := services.NewTokenService(app, cfg.BookingTokenSecret, cfg.BookingTokenTTL)
	inventoryService := services.NewInventoryService()
	bookingService := services.NewBookingService(app, eventService, inventoryService, queueService, tokenService, notifier)
	admissionService := services.NewAdmissionService(eventService, queueService, tokenService, notifier, cfg.PromoteBatchSize, cfg.AdmissionInterval, cfg.TokenSweepInterval)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(queueService, bookingService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	eventHandler := handlers.NewEventHandler(eventService)
	adminHandler := handlers.NewAdminHandler(queueService, eventService, admissionService)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Setup graceful shutdown
	go handleShutdown(cancel, admissionService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if eventID, err := eventService.ActiveQueueEventID(); err == nil {
			if err := queueService.SyncActiveEvent(ctx, eventID); err != nil {
				slog.Error("failed to sync active queue to Redis", "error", err)
			}
		}

		// Background tasks
		admissionService.Start(ctx)
		go queueService.BroadcastPositions(ctx, eventService.ActiveQueueEventID, cfg.QueuePositionUpdate)
		if cfg.EnableMetrics {
			go monitoring.NewMonitor(redisClient).Run(ctx, 15*time.Second)
		}

		g := e.Router.Group("/api/v1")
		g.BindFunc(rateLimiter.Middleware())

		// Waiting room and booking endpoints
		g.POST("/events/{eventId}/start-booking", bookingHandler.StartBooking)
		g.POST("/events/{eventId}/booking", bookingHandler.Book)
		g.GET("/events/{eventId}/queue", queueHandler.GetQueueStatus)
		g.POST("/events/{eventId}/queue/leave", queueHandler.LeaveQueue)
		g.GET("/events/{eventId}/queue/metrics", queueHandler.GetQueueMetrics)

		// Booking lookups
		g.GET("/bookings", bookingHandler.ListBookings)
		g.GET("/bookings/{bookingId}", bookingHandler.GetBooking)
		g.GET("/bookings/{bookingId}/qr-code", bookingHandler.GetQRCode)

		// Host endpoints
		g.POST("/events/{eventId}/queue-active", eventHandler.SetQueueActive)
		g.POST("/events/{eventId}/ticket-batches", eventHandler.CreateTicketBatch)

		// Admin endpoints
		g.GET("/admin/queue-dashboard", adminHandler.QueueDashboard)
		g.POST("/admin/force-promote", adminHandler.ForcePromote)
		g.POST("/admin/events/{eventId}/clear-queue", adminHandler.ClearQueue)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupEventHooks(app, queueService)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupEventHooks keeps Redis queue state consistent with event mutations
// made through the record API, which bypasses EventService.
func setupEventHooks(app *pocketbase.PocketBase, queueService *services.QueueService) {
	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		ctx := e.Request.Context()
		eventID := e.Record.Id

		wasActive := e.Record.Original().GetBool("queue_active")
		isActive := e.Record.GetBool("queue_active")

		if isActive && !wasActive {
			if err := queueService.SyncActiveEvent(ctx, eventID); err != nil {
				slog.Error("failed to sync active queue to Redis", "eventID", eventID, "error", err)
			}
		}

		if wasActive && !isActive {
			if err := queueService.SyncActiveEvent(ctx, ""); err != nil {
				slog.Error("failed to clear active queue in Redis", "error", err)
			}

			// Queue switched off: waiting users would be stranded, drop them.
			if err := queueService.Clear(ctx, eventID); err != nil {
				slog.Error("failed to clear queue after deactivation", "eventID", eventID, "error", err)
				return nil
			}
			slog.Info("cleared queue after deactivation", "eventID", eventID)
		}
		return nil
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		if err := queueService.Clear(e.Request.Context(), e.Record.Id); err != nil {
			slog.Error("failed to clear queue for deleted event", "eventID", e.Record.Id, "error", err)
		}
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, admissionService *services.AdmissionService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
	admissionService.Shutdown()
}
