package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"gorm.io/gorm"
)

// RelationKind selects the (user, recipe) relation table a toggle acts on.
type RelationKind int

const (
	RelationFavorite RelationKind = iota + 1
	RelationCart
)

func (k RelationKind) String() string {
	switch k {
	case RelationFavorite:
		return "favorite"
	case RelationCart:
		return "shopping_cart"
	default:
		return "unknown"
	}
}

func (k RelationKind) model(userID uuid.UUID, recipeID uint) (interface{}, error) {
	switch k {
	case RelationFavorite:
		return &models.Favorite{UserID: userID, RecipeID: recipeID}, nil
	case RelationCart:
		return &models.Cart{UserID: userID, RecipeID: recipeID}, nil
	default:
		return nil, fmt.Errorf("unknown relation kind %d", int(k))
	}
}

// RelationService manages favorites, shopping carts and author subscriptions.
// Every (user, target) pair exists at most once.
type RelationService struct {
	db    *gorm.DB
	flags *ViewerFlags
	log   *logger.Logger
}

// NewRelationService creates a new RelationService instance
func NewRelationService(db *gorm.DB, log *logger.Logger) *RelationService {
	return &RelationService{db: db, flags: NewViewerFlags(db), log: log.With("service", "relations")}
}

// AddRecipeRelation records that user favorited or carted the recipe.
func (s *RelationService) AddRecipeRelation(ctx context.Context, kind RelationKind, userID uuid.UUID, recipeID uint) (*types.ShortRecipe, error) {
	row, err := kind.model(userID, recipeID)
	if err != nil {
		return nil, err
	}

	var recipe models.Recipe
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&recipe, recipeID).Error; err != nil {
			if isNotFound(err) {
				return ErrRecipeNotFound
			}
			return fmt.Errorf("failed to load recipe: %w", err)
		}

		var count int64
		if err := tx.Model(row).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check %s: %w", kind, err)
		}
		if count > 0 {
			return ErrRelationExists.WithMessage("recipe is already in %s", kind)
		}

		if err := tx.Create(row).Error; err != nil {
			// a concurrent insert lost the race on the unique pair
			if isDuplicate(err) {
				return ErrRelationExists.WithMessage("recipe is already in %s", kind)
			}
			return fmt.Errorf("failed to add %s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("relation added", "kind", kind.String(), "user_id", userID, "recipe_id", recipeID)
	short := ShortRecipeView(&recipe)
	return &short, nil
}

// RemoveRecipeRelation deletes the (user, recipe) pair; it must exist.
func (s *RelationService) RemoveRecipeRelation(ctx context.Context, kind RelationKind, userID uuid.UUID, recipeID uint) error {
	row, err := kind.model(userID, recipeID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to load recipe: %w", err)
		}
		if n == 0 {
			return ErrRecipeNotFound
		}

		res := tx.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(row)
		if res.Error != nil {
			return fmt.Errorf("failed to remove %s: %w", kind, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRelationAbsent.WithMessage("recipe is not in %s", kind)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("relation removed", "kind", kind.String(), "user_id", userID, "recipe_id", recipeID)
	return nil
}

// Follow subscribes user to author and returns the author's subscription view
// with at most recipesLimit recipes (0 means all).
func (s *RelationService) Follow(ctx context.Context, userID, authorID uuid.UUID, recipesLimit int) (*types.SubscriptionResponse, error) {
	if userID == authorID {
		return nil, ErrSelfFollow
	}

	var author models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&author, "id = ?", authorID).Error; err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load author: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Follow{}).Where("user_id = ? AND author_id = ?", userID, authorID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if count > 0 {
			return ErrRelationExists.WithMessage("already subscribed to this author")
		}

		if err := tx.Create(&models.Follow{UserID: userID, AuthorID: authorID}).Error; err != nil {
			if isDuplicate(err) {
				return ErrRelationExists.WithMessage("already subscribed to this author")
			}
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscribed", "user_id", userID, "author_id", authorID)
	views, err := s.subscriptionViews(ctx, []models.User{author}, map[uuid.UUID]bool{authorID: true}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Unfollow removes the subscription; it must exist.
func (s *RelationService) Unfollow(ctx context.Context, userID, authorID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", authorID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to load author: %w", err)
		}
		if n == 0 {
			return ErrUserNotFound
		}

		res := tx.Where("user_id = ? AND author_id = ?", userID, authorID).Delete(&models.Follow{})
		if res.Error != nil {
			return fmt.Errorf("failed to unsubscribe: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRelationAbsent.WithMessage("not subscribed to this author")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("unsubscribed", "user_id", userID, "author_id", authorID)
	return nil
}

// ListSubscriptions returns one page of the authors user follows, ordered by username.
func (s *RelationService) ListSubscriptions(ctx context.Context, userID uuid.UUID, recipesLimit, page, limit int) (*types.Page[types.SubscriptionResponse], error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows.author_id = users.id").
		Where("follows.user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	page, limit = normalizePage(page, limit)
	var authors []models.User
	if err := q.Order("users.username").Offset((page - 1) * limit).Limit(limit).Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subscribed := make(map[uuid.UUID]bool, len(authors))
	for _, a := range authors {
		subscribed[a.ID] = true
	}
	views, err := s.subscriptionViews(ctx, authors, subscribed, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &types.Page[types.SubscriptionResponse]{Count: total, Results: views}, nil
}

// ListUsers returns one page of all users ordered by username, with the
// viewer's subscription flag on each.
func (s *RelationService) ListUsers(ctx context.Context, viewer *uuid.UUID, page, limit int) (*types.Page[types.UserResponse], error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	page, limit = normalizePage(page, limit)
	var users []models.User
	if err := q.Order("users.username").Order("users.id").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subscribed, err := s.flags.Subscribed(ctx, viewer, ids)
	if err != nil {
		return nil, err
	}
	views := make([]types.UserResponse, len(users))
	for i := range users {
		views[i] = UserView(&users[i], subscribed[users[i].ID])
	}
	return &types.Page[types.UserResponse]{Count: total, Results: views}, nil
}

// DescribeUser returns the public view of a user as seen by viewer.
func (s *RelationService) DescribeUser(ctx context.Context, viewer *uuid.UUID, user *models.User) (*types.UserResponse, error) {
	subscribed, err := s.flags.Subscribed(ctx, viewer, []uuid.UUID{user.ID})
	if err != nil {
		return nil, err
	}
	view := UserView(user, subscribed[user.ID])
	return &view, nil
}

func (s *RelationService) subscriptionViews(ctx context.Context, authors []models.User, subscribed map[uuid.UUID]bool, recipesLimit int) ([]types.SubscriptionResponse, error) {
	out := make([]types.SubscriptionResponse, 0, len(authors))
	if len(authors) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}
	var counts []struct {
		AuthorID uuid.UUID
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", ids).
		Group("author_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count author recipes: %w", err)
	}
	totals := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		totals[c.AuthorID] = c.Total
	}

	for i := range authors {
		a := &authors[i]
		q := s.db.WithContext(ctx).Where("author_id = ?", a.ID).Order("created_at DESC").Order("id DESC")
		if recipesLimit > 0 {
			q = q.Limit(recipesLimit)
		}
		var recipes []models.Recipe
		if err := q.Find(&recipes).Error; err != nil {
			return nil, fmt.Errorf("failed to load author recipes: %w", err)
		}

		view := types.SubscriptionResponse{
			UserResponse: UserView(a, subscribed[a.ID]),
			Recipes:      make([]types.ShortRecipe, 0, len(recipes)),
			RecipesCount: totals[a.ID],
		}
		for j := range recipes {
			view.Recipes = append(view.Recipes, ShortRecipeView(&recipes[j]))
		}
		out = append(out, view)
	}
	return out, nil
}

// UserView maps a user to its public representation.
func UserView(u *models.User, subscribed bool) types.UserResponse {
	return types.UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

func TagView(t *models.Tag) types.TagResponse {
	return types.TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func IngredientView(i *models.Ingredient) types.IngredientResponse {
	return types.IngredientResponse{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func ShortRecipeView(r *models.Recipe) types.ShortRecipe {
	return types.ShortRecipe{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}
