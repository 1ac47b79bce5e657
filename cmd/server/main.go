package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"campus-backend/internal/auth"
	"campus-backend/internal/config"
	"campus-backend/internal/engine"
	"campus-backend/internal/instrument"
	"campus-backend/internal/metadata"
	"campus-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s)", cfg.Server.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Load presentation metadata
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.DB, reg); err != nil {
		log.Printf("WARN: Failed to load metadata: %v", err)
	}

	// 5. Instrumentation event buffer
	var buffer *instrument.EventBuffer
	if cfg.Instrumentation.Enabled {
		buffer = instrument.NewEventBuffer(db.DB, db.Dialect, cfg.Instrumentation.BufferSize, cfg.Instrumentation.FlushIntervalMs)
		defer buffer.Stop()
	}

	// 6. Engine collaborators
	storeFetcher := engine.NewStoreFetcher(db)
	httpFetcher := engine.NewHTTPFetcher("")
	sources := engine.DataSources{
		Tables:     storeFetcher,
		Queries:    storeFetcher,
		Entities:   storeFetcher,
		Procedures: storeFetcher,
		External:   httpFetcher,
	}
	audit := engine.NewStoreAuditSink(db)
	runner := engine.NewReportRunner(sources, audit)
	options := engine.NewOptionResolver(storeFetcher, httpFetcher)
	forms := engine.NewFormResolver(options)
	tables := engine.NewTableRunner(db)

	// 7. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(instrument.Middleware(cfg.Instrumentation, buffer))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Auth routes (no auth required)
	authHandler := auth.NewAuthHandler(db, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler)

	// 10. Presentation API (auth required)
	authMW := auth.AuthMiddleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()
	handler := engine.NewHandler(db, reg, runner, options, forms, tables, audit, cfg.DefaultLocale)
	engine.RegisterRoutes(app, handler, authMW, adminMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
