package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type stubValidator struct {
	claims *types.TokenClaims
}

func (s stubValidator) ValidateToken(token string) (*types.TokenClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func newAuthRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		if id, ok := UserID(c); ok {
			c.String(http.StatusOK, id.String())
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	router.GET("/", handlers...)
	return router
}

func doGet(router http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	id := uuid.New()
	v := stubValidator{claims: &types.TokenClaims{UserID: id}}
	router := newAuthRouter(AuthMiddleware(v))

	assert.Equal(t, http.StatusUnauthorized, doGet(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "Bearer bad").Code)

	rr := doGet(router, "Bearer good")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, id.String(), rr.Body.String())

	rr = doGet(router, "Token good")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOptionalAuth(t *testing.T) {
	id := uuid.New()
	router := newAuthRouter(OptionalAuth(stubValidator{claims: &types.TokenClaims{UserID: id}}))

	rr := doGet(router, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())

	assert.Equal(t, id.String(), doGet(router, "Bearer good").Body.String())
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "Bearer bad").Code)
}

type stubUsers map[uuid.UUID]*models.User

func (s stubUsers) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

func TestRequireStaff(t *testing.T) {
	staffID, regularID, demotedID := uuid.New(), uuid.New(), uuid.New()
	users := stubUsers{
		staffID:   {ID: staffID, IsStaff: true},
		regularID: {ID: regularID},
		demotedID: {ID: demotedID},
	}
	check := func(claims *types.TokenClaims) int {
		router := newAuthRouter(AuthMiddleware(stubValidator{claims: claims}), RequireStaff(users))
		return doGet(router, "Bearer good").Code
	}

	assert.Equal(t, http.StatusOK, check(&types.TokenClaims{UserID: staffID}), "stored flag wins over the claim")
	assert.Equal(t, http.StatusForbidden, check(&types.TokenClaims{UserID: regularID}))
	assert.Equal(t, http.StatusForbidden, check(&types.TokenClaims{UserID: demotedID, IsStaff: true}))
	assert.Equal(t, http.StatusUnauthorized, check(&types.TokenClaims{UserID: uuid.New(), IsStaff: true}))
}
