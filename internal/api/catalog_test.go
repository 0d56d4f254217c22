package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestCreateTagIsStaffOnly(t *testing.T) {
	env := setupTestRouter(t)
	cook := env.tokenFor(t, testhelpers.CreateUser(t, env.db))
	staff := env.tokenFor(t, testhelpers.CreateStaffUser(t, env.db))

	body := map[string]string{"name": "Breakfast", "color": "orange", "slug": "breakfast"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/tags", "", body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/tags", cook, body).Code)

	w := env.do(t, http.MethodPost, "/api/tags", staff, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tag := decode[types.TagResponse](t, w)
	assert.Equal(t, "#FFA500", tag.Color)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/tags/%d", tag.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "breakfast", decode[types.TagResponse](t, w).Slug)

	w = env.do(t, http.MethodGet, "/api/tags", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.TagResponse](t, w), 1)
}

func TestDemotedStaffLosesWriteAccess(t *testing.T) {
	env := setupTestRouter(t)
	user := testhelpers.CreateStaffUser(t, env.db)
	token := env.tokenFor(t, user)

	w := env.do(t, http.MethodPost, "/api/ingredients", token, map[string]string{"name": "Egg", "measurement_unit": "pcs"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, env.db.Model(user).Update("is_staff", false).Error)

	w = env.do(t, http.MethodPost, "/api/ingredients", token, map[string]string{"name": "Milk", "measurement_unit": "ml"})
	assert.Equal(t, http.StatusForbidden, w.Code, "token issued before demotion")
}

func TestCreateTagRejectsBadSlug(t *testing.T) {
	env := setupTestRouter(t)
	staff := env.tokenFor(t, testhelpers.CreateStaffUser(t, env.db))

	w := env.do(t, http.MethodPost, "/api/tags", staff, map[string]string{"name": "Bad", "color": "#000000", "slug": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListIngredientsByPrefix(t *testing.T) {
	env := setupTestRouter(t)
	testhelpers.CreateIngredient(t, env.db, "Salt", "g")
	testhelpers.CreateIngredient(t, env.db, "Sugar", "g")
	testhelpers.CreateIngredient(t, env.db, "Milk", "ml")

	w := env.do(t, http.MethodGet, "/api/ingredients?name=s", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	names := []string{}
	for _, i := range decode[[]types.IngredientResponse](t, w) {
		names = append(names, i.Name)
	}
	assert.ElementsMatch(t, []string{"Salt", "Sugar"}, names)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/ingredients/999", "", nil).Code)
}

func TestCreateIngredient(t *testing.T) {
	env := setupTestRouter(t)
	staff := env.tokenFor(t, testhelpers.CreateStaffUser(t, env.db))

	w := env.do(t, http.MethodPost, "/api/ingredients", staff, map[string]string{"name": "Egg", "measurement_unit": "pcs"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "pcs", decode[types.IngredientResponse](t, w).MeasurementUnit)

	w = env.do(t, http.MethodPost, "/api/ingredients", staff, map[string]string{"name": "Egg", "measurement_unit": "pcs"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
