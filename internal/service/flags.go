package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/models"
	"gorm.io/gorm"
)

// ViewerFlags answers "has this viewer favorited / carted / subscribed" for a
// whole page of targets with one query per relation.
type ViewerFlags struct {
	db *gorm.DB
}

// NewViewerFlags creates a new ViewerFlags instance
func NewViewerFlags(db *gorm.DB) *ViewerFlags {
	return &ViewerFlags{db: db}
}

// Favorited returns the subset of recipeIDs the viewer has favorited.
func (f *ViewerFlags) Favorited(ctx context.Context, viewer *uuid.UUID, recipeIDs []uint) (map[uint]bool, error) {
	return recipeSet(f.db.WithContext(ctx), &models.Favorite{}, viewer, recipeIDs)
}

// InCart returns the subset of recipeIDs in the viewer's shopping cart.
func (f *ViewerFlags) InCart(ctx context.Context, viewer *uuid.UUID, recipeIDs []uint) (map[uint]bool, error) {
	return recipeSet(f.db.WithContext(ctx), &models.Cart{}, viewer, recipeIDs)
}

// Subscribed returns the subset of authorIDs the viewer follows.
func (f *ViewerFlags) Subscribed(ctx context.Context, viewer *uuid.UUID, authorIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if viewer == nil || len(authorIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	err := f.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id IN ?", *viewer, authorIDs).
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func recipeSet(db *gorm.DB, model interface{}, viewer *uuid.UUID, recipeIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if viewer == nil || len(recipeIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := db.Model(model).
		Where("user_id = ? AND recipe_id IN ?", *viewer, recipeIDs).
		Pluck("recipe_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe flags: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
