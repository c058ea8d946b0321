package main // Entry point package

import (
	"log" // Logging library

	_ "github.com/joho/godotenv/autoload" // Load .env into the environment before config.Load runs
	"github.com/labstack/echo/v4"         // Echo web framework

	"github.com/atlasvoyages/gir-availability/internal/commission" // Commission tier resolution service
	"github.com/atlasvoyages/gir-availability/internal/config"     // Internal config loader
	"github.com/atlasvoyages/gir-availability/internal/database"   // MySQL connection helper
	"github.com/atlasvoyages/gir-availability/internal/handler"    // HTTP handlers
	"github.com/atlasvoyages/gir-availability/internal/middleware" // Rate limiting middleware
	"github.com/atlasvoyages/gir-availability/internal/queue"      // RabbitMQ consumer
	"github.com/atlasvoyages/gir-availability/internal/repository" // Database repositories
	"github.com/atlasvoyages/gir-availability/internal/router"     // Route registration
	"github.com/atlasvoyages/gir-availability/internal/scraper"    // Availability page fetcher
	queue_publisher "github.com/atlasvoyages/gir-availability/internal/service" // Event publisher
	"github.com/atlasvoyages/gir-availability/internal/syncer"     // Availability reconciler
)

func main() {
	cfg := config.Load() // Load environment config

	// Open the MySQL connection pool.  All repositories share this pool.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err) // Cannot serve without storage
	}
	defer db.Close()

	// Redis backs the response cache, the rate limiter and the per-circuit
	// sync locks.  A nil or unreachable client degrades those features to
	// no-ops rather than preventing startup.
	rdb := config.NewRedisClient()

	// Repositories over the shared pool.
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	circuitRepo := repository.NewCircuitRepo(db)
	tierRepo := repository.NewTierRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	sourceRepo := repository.NewSourceRepo(db)

	// Domain services.
	resolver := commission.NewService(circuitRepo, tierRepo, bookingRepo)
	fetcher := scraper.NewFetcher(cfg.FetchTimeout)
	reconciler := syncer.NewReconciler(circuitRepo, historyRepo, sourceRepo, fetcher, rdb, queue_publisher.PublishAvailabilitySynced)

	// Handlers.
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	commissionHandler := handler.NewCommissionHandler(resolver)
	syncHandler := handler.NewSyncHandler(reconciler)
	circuitHandler := handler.NewCircuitHandler(circuitRepo, historyRepo, sourceRepo)
	bookingHandler := handler.NewBookingHandler(bookingRepo, circuitRepo, historyRepo)

	// Consume availability.synced events in the background.  The consumer
	// reconnects on its own; a returned error means it gave up for good.
	go func() {
		if err := queue.StartAvailabilityConsumer(); err != nil {
			log.Printf("availability consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance

	// Apply the Redis token bucket to every route before any group-specific
	// middleware runs.
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cacheCfg := config.LoadCacheConfig()
	router.RegisterRoutes(e, circuitHandler)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterAvailability(e, cfg.JWTSecret, commissionHandler, syncHandler, cacheCfg, rdb)
	router.RegisterManagement(e, cfg.JWTSecret, circuitHandler, bookingHandler)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
