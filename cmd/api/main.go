package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/router"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.RunMigrations(db, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	images, err := newImageStore(cfg)
	if err != nil {
		log.Fatal("failed to configure image storage", "error", err)
	}

	deps := &api.Dependencies{
		Auth:      service.NewAuthService(db, cfg.JWTSecret, log),
		Catalog:   service.NewCatalogService(db, log),
		Recipes:   service.NewRecipeService(db, images, log),
		Relations: service.NewRelationService(db, log),
		Shopping:  service.NewShoppingListService(db),
		Renderer:  service.TextRenderer{},
		Log:       log,
	}

	// Rate limits need Redis; without it the API runs unlimited.
	if client, err := database.NewRedisClient(cfg, log); err != nil {
		log.Warn("redis unavailable, recipe rate limits disabled", "error", err)
	} else {
		defer client.Close()
		deps.CreateLimiter = middleware.NewRateLimiter(client, middleware.RateLimitConfig{
			Window:    time.Hour,
			Limit:     cfg.RecipeCreateLimit,
			KeyPrefix: "rate_limit:recipe_create",
		})
		deps.ModifyLimiter = middleware.NewRateLimiter(client, middleware.RateLimitConfig{
			Window:    time.Hour,
			Limit:     cfg.RecipeModifyLimit,
			KeyPrefix: "rate_limit:recipe_modify",
		})
	}

	engine := router.SetupRouter(deps, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     middleware.NewMetrics(),
		Ping:        func(ctx context.Context) error { return database.HealthCheck(ctx, db) },
	})
	srv := server.New(cfg, engine, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
		}
	case sig := <-quit:
		log.Info("received signal", "signal", sig.String())
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	closeDB(db, log)
	log.Info("server stopped")
}

func newImageStore(cfg *config.Config) (service.ImageStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s3cfg, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return service.NewS3ImageStore(s3cfg), nil
}

func closeDB(db *gorm.DB, log *logger.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", "error", err)
	}
}
