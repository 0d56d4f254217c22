package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PNGDataURI is a valid 1x1 PNG encoded the way clients submit recipe images.
const PNGDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "s3cret-pass"

var seq atomic.Int64

func next() int64 { return seq.Add(1) }

// CreateUser inserts a user with a unique email and username.
func CreateUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	n := next()
	user := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Username:     fmt.Sprintf("user%d", n),
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", n),
		PasswordHash: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// CreateStaffUser inserts a user allowed to edit the catalog.
func CreateStaffUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := CreateUser(t, db)
	if err := db.Model(user).Update("is_staff", true).Error; err != nil {
		t.Fatalf("failed to promote user: %v", err)
	}
	user.IsStaff = true
	return user
}

func CreateTag(t *testing.T, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	n := next()
	tag := &models.Tag{
		Name:  fmt.Sprintf("Tag %s", slug),
		Color: fmt.Sprintf("#%06X", n),
		Slug:  slug,
	}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	return tag
}

func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ingredient).Error; err != nil {
		t.Fatalf("failed to create ingredient: %v", err)
	}
	return ingredient
}

// RecipeRequest builds a valid create request for the given associations.
func RecipeRequest(name string, tags []uint, ingredients ...types.IngredientEntry) *types.CreateRecipeRequest {
	return &types.CreateRecipeRequest{
		Name:        name,
		Image:       PNGDataURI,
		Text:        "Mix everything and serve.",
		CookingTime: 15,
		Tags:        tags,
		Ingredients: ingredients,
	}
}

// MemoryImageStore keeps uploaded images in memory.
type MemoryImageStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{Objects: make(map[string][]byte)}
}

func (m *MemoryImageStore) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return "https://media.example.com/" + key, nil
}

func (m *MemoryImageStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	return nil
}

func (m *MemoryImageStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}

// UserID returns a pointer to the user's id, for viewer parameters.
func UserID(u *models.User) *uuid.UUID {
	id := u.ID
	return &id
}
