package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"lattice-backend/internal/auth"
	"lattice-backend/internal/bus"
	"lattice-backend/internal/config"
	"lattice-backend/internal/engine"
	"lattice-backend/internal/metadata"
	"lattice-backend/internal/store"
	"lattice-backend/internal/user"
	"lattice-backend/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	reg := metadata.NewRegistry(cfg.Database.Prefix)
	if err := user.Register(reg); err != nil {
		log.Fatalf("register models: %v", err)
	}
	reg.Freeze()

	if err := st.DefineAll(ctx, reg); err != nil {
		log.Fatalf("define tables: %v", err)
	}

	norm := engine.NewNormalizer(engine.Limits{
		DefaultLimit: cfg.Engine.DefaultLimit,
		MaxLimit:     cfg.Engine.MaxLimit,
	})
	eng := engine.New(st, reg, norm,
		engine.UniquePolicy{IncludeDeleted: cfg.Engine.UniqueCheckIncludesDeleted},
		cfg.Debug)

	b := bus.New()
	engine.RegisterActions(b, eng)
	user.NewService(eng).RegisterActions(b)
	auth.NewService(eng, cfg.JWTSecret, user.ModelName).RegisterActions(b)

	app := fiber.New(fiber.Config{
		AppName:     "lattice-backend",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.Debug {
		app.Use(logger.New())
	}

	web.Register(app, b, auth.Middleware(cfg.JWTSecret))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s (driver=%s prefix=%s)", addr, st.Dialect.Name(), cfg.Database.Prefix)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
