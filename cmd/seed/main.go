package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
	"gorm.io/gorm"
)

var seedUsers = []struct {
	email, username, first, last string
	staff                        bool
}{
	{"admin@example.com", "admin", "Admin", "User", true},
	{"john.doe@example.com", "johndoe", "John", "Doe", false},
	{"jane.smith@example.com", "janesmith", "Jane", "Smith", false},
}

var seedTags = []struct{ name, color, slug string }{
	{"Breakfast", "orange", "breakfast"},
	{"Lunch", "green", "lunch"},
	{"Dinner", "purple", "dinner"},
}

var seedIngredients = []struct{ name, unit string }{
	{"Salt", "g"},
	{"Sugar", "g"},
	{"Flour", "g"},
	{"Milk", "ml"},
	{"Egg", "pcs"},
	{"Butter", "g"},
	{"Potato", "pcs"},
	{"Onion", "pcs"},
}

func main() {
	password := flag.String("password", "testpassword123", "Password for every seeded user")
	flag.Parse()

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

	ctx := context.Background()
	if err := seed(ctx, db, *password, log); err != nil {
		log.Fatal("seeding failed", "error", err)
	}
	log.Info("seed data ready", "users", len(seedUsers), "tags", len(seedTags), "ingredients", len(seedIngredients))
}

// seed is idempotent: entries that already exist are skipped.
func seed(ctx context.Context, db *gorm.DB, password string, log *logger.Logger) error {
	auth := service.NewAuthService(db, "", log)
	catalog := service.NewCatalogService(db, log)

	for _, u := range seedUsers {
		user, err := auth.Register(ctx, &types.RegisterRequest{
			Email: u.email, Username: u.username, FirstName: u.first, LastName: u.last, Password: password,
		})
		switch {
		case errors.Is(err, service.ErrUserExists):
			log.Debug("user exists, skipping", "username", u.username)
			continue
		case err != nil:
			return fmt.Errorf("failed to create user %s: %w", u.username, err)
		}
		if u.staff {
			if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("is_staff", true).Error; err != nil {
				return fmt.Errorf("failed to promote %s: %w", u.username, err)
			}
		}
	}

	for _, tag := range seedTags {
		if _, err := catalog.CreateTag(ctx, tag.name, tag.color, tag.slug); err != nil && !errors.Is(err, service.ErrCatalogExists) {
			return fmt.Errorf("failed to create tag %s: %w", tag.slug, err)
		}
	}
	for _, ing := range seedIngredients {
		if _, err := catalog.CreateIngredient(ctx, ing.name, ing.unit); err != nil && !errors.Is(err, service.ErrCatalogExists) {
			return fmt.Errorf("failed to create ingredient %s: %w", ing.name, err)
		}
	}
	return nil
}
