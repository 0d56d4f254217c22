package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *service.AuthService
	images *testhelpers.MemoryImageStore
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupTestDatabase(t)
	log := logger.Nop()
	images := testhelpers.NewMemoryImageStore()
	auth := service.NewAuthService(db, testJWTSecret, log)

	router := gin.New()
	router.Use(middleware.ErrorHandler(log))
	RegisterRoutes(router.Group("/api"), &Dependencies{
		Auth:      auth,
		Catalog:   service.NewCatalogService(db, log),
		Recipes:   service.NewRecipeService(db, images, log),
		Relations: service.NewRelationService(db, log),
		Shopping:  service.NewShoppingListService(db),
		Log:       log,
	})
	return &testEnv{router: router, db: db, auth: auth, images: images}
}

// tokenFor issues a token for an existing user.
func (e *testEnv) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := e.auth.GenerateToken(&types.TokenClaims{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// createRecipe posts a valid recipe and returns its id.
func (e *testEnv) createRecipe(t *testing.T, token, name string, tag *models.Tag, ingredient *models.Ingredient, amount int) uint {
	t.Helper()
	req := testhelpers.RecipeRequest(name, []uint{tag.ID}, types.IngredientEntry{ID: ingredient.ID, Amount: amount})
	w := e.do(t, http.MethodPost, "/api/recipes", token, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[types.RecipeResponse](t, w).ID
}
