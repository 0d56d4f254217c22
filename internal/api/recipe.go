package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// RecipeHandler handles recipe CRUD, favorites, the shopping cart and its download.
type RecipeHandler struct {
	auth          service.IAuthService
	recipes       service.IRecipeService
	relations     service.IRelationService
	shopping      service.IShoppingListService
	renderer      service.ShoppingListRenderer
	createLimiter *middleware.RateLimiter
	modifyLimiter *middleware.RateLimiter
	log           *logger.Logger
}

// NewRecipeHandler creates a new RecipeHandler instance
func NewRecipeHandler(deps *Dependencies) *RecipeHandler {
	renderer := deps.Renderer
	if renderer == nil {
		renderer = service.TextRenderer{}
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &RecipeHandler{
		auth:          deps.Auth,
		recipes:       deps.Recipes,
		relations:     deps.Relations,
		shopping:      deps.Shopping,
		renderer:      renderer,
		createLimiter: deps.CreateLimiter,
		modifyLimiter: deps.ModifyLimiter,
		log:           log,
	}
}

// RegisterRoutes registers recipe routes
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	authed := middleware.AuthMiddleware(h.auth)
	optional := middleware.OptionalAuth(h.auth)

	recipes := router.Group("/recipes")
	{
		recipes.GET("", optional, h.ListRecipes)
		recipes.POST("", authed, h.createLimiter.RateLimitMiddleware(), h.CreateRecipe)
		recipes.GET("/download_shopping_cart", authed, h.DownloadShoppingCart)
		recipes.GET("/:id", optional, h.GetRecipe)
		recipes.PATCH("/:id", authed, h.modifyLimiter.PerRecipeRateLimitMiddleware(), h.UpdateRecipe)
		recipes.DELETE("/:id", authed, h.modifyLimiter.PerRecipeRateLimitMiddleware(), h.DeleteRecipe)

		recipes.POST("/:id/favorite", authed, h.addRelation(service.RelationFavorite))
		recipes.DELETE("/:id/favorite", authed, h.removeRelation(service.RelationFavorite))
		recipes.POST("/:id/shopping_cart", authed, h.addRelation(service.RelationCart))
		recipes.DELETE("/:id/shopping_cart", authed, h.removeRelation(service.RelationCart))
	}
}

// ListRecipes returns one page of recipes matching the query filters.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	filter := types.RecipeFilter{
		AuthorID:         c.Query("author"),
		TagSlugs:         c.QueryArray("tags"),
		IsFavorited:      queryBool(c, "is_favorited"),
		IsInShoppingCart: queryBool(c, "is_in_shopping_cart"),
		Search:           c.Query("search"),
		Page:             queryInt(c, "page", 1),
		Limit:            queryInt(c, "limit", 0),
	}
	viewer := middleware.Viewer(c)

	recipes, total, err := h.recipes.ListRecipes(c.Request.Context(), viewer, filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	views, err := h.recipes.Describe(c.Request.Context(), viewer, recipes)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.Page[types.RecipeResponse]{Count: total, Results: views})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	recipe, err := h.recipes.GetRecipe(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondRecipe(c, http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipe, err := h.recipes.CreateRecipe(c.Request.Context(), userID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondRecipe(c, http.StatusCreated, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req types.UpdateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipe, err := h.recipes.UpdateRecipe(c.Request.Context(), userID, id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondRecipe(c, http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.recipes.DeleteRecipe(c.Request.Context(), userID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) addRelation(kind service.RelationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		short, err := h.relations.AddRecipeRelation(c.Request.Context(), kind, userID, id)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, short)
	}
}

func (h *RecipeHandler) removeRelation(kind service.RelationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := h.relations.RemoveRecipeRelation(c.Request.Context(), kind, userID, id); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DownloadShoppingCart renders the caller's aggregated shopping list as an attachment.
func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.shopping.BuildShoppingList(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.log.Debug("rendering shopping list", "user_id", userID, "items", len(items))
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, items); err != nil {
		_ = c.Error(fmt.Errorf("failed to render shopping list: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.renderer.Filename()))
	c.Data(http.StatusOK, h.renderer.ContentType(), buf.Bytes())
}

func (h *RecipeHandler) respondRecipe(c *gin.Context, status int, recipe *models.Recipe) {
	views, err := h.recipes.Describe(c.Request.Context(), middleware.Viewer(c), []models.Recipe{*recipe})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, views[0])
}
