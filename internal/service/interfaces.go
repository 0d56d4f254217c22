package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ValidateToken(token string) (*types.TokenClaims, error)
	GenerateToken(claims *types.TokenClaims) (string, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SetPassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

// ICatalogService defines the interface for tag and ingredient operations
type ICatalogService interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
	CreateTag(ctx context.Context, name, color, slug string) (*models.Tag, error)
	ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error)
	CreateIngredient(ctx context.Context, name, unit string) (*models.Ingredient, error)
}

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, authorID uuid.UUID, req *types.CreateRecipeRequest) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, actorID uuid.UUID, recipeID uint, req *types.UpdateRecipeRequest) (*models.Recipe, error)
	DeleteRecipe(ctx context.Context, actorID uuid.UUID, recipeID uint) error
	GetRecipe(ctx context.Context, id uint) (*models.Recipe, error)
	ListRecipes(ctx context.Context, viewer *uuid.UUID, filter types.RecipeFilter) ([]models.Recipe, int64, error)
	Describe(ctx context.Context, viewer *uuid.UUID, recipes []models.Recipe) ([]types.RecipeResponse, error)
}

// IRelationService defines the interface for favorites, cart and subscriptions
type IRelationService interface {
	AddRecipeRelation(ctx context.Context, kind RelationKind, userID uuid.UUID, recipeID uint) (*types.ShortRecipe, error)
	RemoveRecipeRelation(ctx context.Context, kind RelationKind, userID uuid.UUID, recipeID uint) error
	Follow(ctx context.Context, userID, authorID uuid.UUID, recipesLimit int) (*types.SubscriptionResponse, error)
	Unfollow(ctx context.Context, userID, authorID uuid.UUID) error
	ListSubscriptions(ctx context.Context, userID uuid.UUID, recipesLimit, page, limit int) (*types.Page[types.SubscriptionResponse], error)
	DescribeUser(ctx context.Context, viewer *uuid.UUID, user *models.User) (*types.UserResponse, error)
	ListUsers(ctx context.Context, viewer *uuid.UUID, page, limit int) (*types.Page[types.UserResponse], error)
}

// IShoppingListService defines the interface for shopping list aggregation
type IShoppingListService interface {
	BuildShoppingList(ctx context.Context, userID uuid.UUID) ([]types.ShoppingListItem, error)
}

var (
	_ IAuthService         = (*AuthService)(nil)
	_ ICatalogService      = (*CatalogService)(nil)
	_ IRecipeService       = (*RecipeService)(nil)
	_ IRelationService     = (*RelationService)(nil)
	_ IShoppingListService = (*ShoppingListService)(nil)
)
