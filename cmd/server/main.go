package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"metagrid/internal/apperr"
	"metagrid/internal/client"
	"metagrid/internal/config"
	"metagrid/internal/dataservice"
	"metagrid/internal/schema"
	"metagrid/internal/session"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, backend: %s)", cfg.Server.Port, cfg.Backend.Mode)

	// 2. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 3. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 4. Populate the schema registry and wire the record backend
	reg := schema.NewRegistry()
	backendURL := cfg.Backend.BaseURL

	switch cfg.Backend.Mode {
	case "embedded":
		if err := schema.LoadDir(cfg.Runtime.SchemaDir, reg); err != nil {
			log.Fatalf("Failed to load schemas: %v", err)
		}

		store, err := dataservice.NewStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		if err := store.EnsureTables(ctx, reg); err != nil {
			log.Fatalf("Failed to bootstrap data tables: %v", err)
		}
		log.Println("Embedded data service ready")

		dataservice.RegisterRoutes(app, dataservice.NewHandler(store, reg))
		backendURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	case "remote":
		remote := client.New(cfg.Backend.BaseURL, cfg.Backend.Token)
		schemas := make([]*schema.Schema, 0, len(cfg.Backend.SchemaIDs))
		for _, id := range cfg.Backend.SchemaIDs {
			s, err := remote.FetchSchema(ctx, id)
			if err != nil {
				log.Fatalf("Failed to fetch schema %s: %v", id, err)
			}
			schemas = append(schemas, s)
		}
		reg.Load(schemas)
		log.Printf("Loaded %d schemas from remote backend", len(schemas))

	default:
		log.Fatalf("Unknown backend mode: %s", cfg.Backend.Mode)
	}

	backend := client.New(backendURL, cfg.Backend.Token)

	// 5. Register runtime session routes
	manager := session.NewManager(reg, backend, cfg.Runtime.Debounce())
	session.RegisterRoutes(app, session.NewHandler(manager), session.IdentityMiddleware(cfg.JWTSecret))

	// 6. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}
