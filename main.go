package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"tirta-backend/billing"
	"tirta-backend/cache"
	"tirta-backend/controllers"
	"tirta-backend/database"
	"tirta-backend/middlewares"
	"tirta-backend/pipeline"
	"tirta-backend/routes"
	"tirta-backend/syncer"
	"tirta-backend/validation"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	// ---- Database (system of record)
	database.Connect()
	if err := database.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// ---- Local cache + offline queue
	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "./data/tirta.db"
	}
	store, err := cache.Open(cachePath)
	if err != nil {
		log.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	// ---- Services (constructed once, injected everywhere)
	remote := syncer.NewGormRemote(database.DB)
	manager := syncer.NewManager(remote, store)
	manager.SetLimits(envInt("SYNC_MAX_ATTEMPTS", 0), envInt("SYNC_WINDOW_MONTHS", 0))
	engine := validation.NewEngine(store)
	calculator := billing.NewCalculator(store)
	pipe := pipeline.New(store, calculator)

	// Warm the cache; a failed first sync just means stale snapshots.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := manager.Sync(ctx); err != nil {
			log.Printf("initial sync: %v", err)
		}
	}()

	// ---- Limits (configurable via env)
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	rlMax := envInt("RATE_LIMIT_MAX", 60)
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
	}))

	// ---- Routes
	routes.Register(app, routes.Set{
		Customers: controllers.NewCustomerController(engine, manager),
		Readings:  controllers.NewReadingController(engine, manager, calculator, store),
		Discounts: controllers.NewDiscountController(engine, manager),
		Reports:   controllers.NewReportController(pipe),
		Sync:      controllers.NewSyncController(manager, store),
	})

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Println("API server starting on port", port)
	if err := app.Listen(":" + port); err != nil {
		panic(err)
	}
}
