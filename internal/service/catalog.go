package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"golang.org/x/image/colornames"
	"gorm.io/gorm"
)

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// CatalogService manages the staff-curated tags and ingredients.
type CatalogService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(db *gorm.DB, log *logger.Logger) *CatalogService {
	return &CatalogService{db: db, log: log.With("service", "catalog")}
}

// NormalizeColor accepts "#rrggbb" or an SVG color name and returns upper-case "#RRGGBB".
func NormalizeColor(value string) (string, error) {
	value = strings.TrimSpace(value)
	if hexColorPattern.MatchString(value) {
		return strings.ToUpper(value), nil
	}
	if c, ok := colornames.Map[strings.ToLower(value)]; ok {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B), nil
	}
	return "", ErrInvalidColor
}

func (s *CatalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *CatalogService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

// CreateTag adds a tag. Name, color and slug must each be unused.
func (s *CatalogService) CreateTag(ctx context.Context, name, color, slug string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	hex, err := NormalizeColor(color)
	if err != nil {
		return nil, err
	}
	slug = strings.TrimSpace(slug)
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}

	tag := models.Tag{Name: name, Color: hex, Slug: slug}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrCatalogExists.WithMessage("tag with this name, color or slug already exists")
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	s.log.Info("tag created", "tag_id", tag.ID, "slug", tag.Slug)
	return &tag, nil
}

// ListIngredients returns the catalog ordered by name, optionally restricted
// to names starting with prefix (case-insensitive).
func (s *CatalogService) ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	q := s.db.WithContext(ctx).Model(&models.Ingredient{})
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
	}
	var ingredients []models.Ingredient
	if err := q.Order("name").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrIngredientNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return &ingredient, nil
}

// CreateIngredient adds an ingredient; names are unique across the catalog.
func (s *CatalogService) CreateIngredient(ctx context.Context, name, unit string) (*models.Ingredient, error) {
	name = strings.TrimSpace(name)
	unit = strings.TrimSpace(unit)
	if name == "" {
		return nil, ErrNameRequired
	}
	if unit == "" {
		return nil, ErrNameRequired.WithMessage("measurement_unit is required")
	}

	ingredient := models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := s.db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrCatalogExists.WithMessage("ingredient %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create ingredient: %w", err)
	}
	s.log.Info("ingredient created", "ingredient_id", ingredient.ID)
	return &ingredient, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
