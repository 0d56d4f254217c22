package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/types"
	"gorm.io/gorm"
)

// ShoppingListService sums ingredient amounts across every recipe in a user's cart.
type ShoppingListService struct {
	db *gorm.DB
}

// NewShoppingListService creates a new ShoppingListService instance
func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// BuildShoppingList groups the cart's ingredients by (name, unit) and sums the
// amounts. The result is ordered by name, then unit; an empty cart yields an
// empty list.
func (s *ShoppingListService) BuildShoppingList(ctx context.Context, userID uuid.UUID) ([]types.ShoppingListItem, error) {
	items := make([]types.ShoppingListItem, 0)
	err := s.db.WithContext(ctx).
		Table("carts").
		Select("ingredients.name AS name, ingredients.measurement_unit AS unit, SUM(ingredient_recipes.amount) AS total_amount").
		Joins("JOIN ingredient_recipes ON ingredient_recipes.recipe_id = carts.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = ingredient_recipes.ingredient_id").
		Where("carts.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name, ingredients.measurement_unit").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list: %w", err)
	}
	return items, nil
}

// ShoppingListRenderer turns an aggregated list into a downloadable document.
type ShoppingListRenderer interface {
	ContentType() string
	Filename() string
	Render(w io.Writer, items []types.ShoppingListItem) error
}

// TextRenderer writes one numbered line per item.
type TextRenderer struct{}

func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (TextRenderer) Filename() string { return "shopping_list.txt" }

func (TextRenderer) Render(w io.Writer, items []types.ShoppingListItem) error {
	if _, err := fmt.Fprintln(w, "Shopping list"); err != nil {
		return err
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "\nYour shopping cart is empty.")
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := fmt.Fprintf(w, "%d. %s (%s) - %d\n", i+1, item.Name, item.Unit, item.TotalAmount); err != nil {
			return err
		}
	}
	return nil
}
