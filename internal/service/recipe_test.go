package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recipeFixture struct {
	db     *gorm.DB
	svc    *service.RecipeService
	images *testhelpers.MemoryImageStore
	author *models.User
	salt   *models.Ingredient
	flour  *models.Ingredient
	milk   *models.Ingredient
	lunch  *models.Tag
	dinner *models.Tag
}

func setupRecipeTest(t *testing.T) *recipeFixture {
	db := testhelpers.SetupTestDatabase(t)
	images := testhelpers.NewMemoryImageStore()
	return &recipeFixture{
		db:     db,
		svc:    service.NewRecipeService(db, images, logger.Nop()),
		images: images,
		author: testhelpers.CreateUser(t, db),
		salt:   testhelpers.CreateIngredient(t, db, "Salt", "g"),
		flour:  testhelpers.CreateIngredient(t, db, "Flour", "g"),
		milk:   testhelpers.CreateIngredient(t, db, "Milk", "ml"),
		lunch:  testhelpers.CreateTag(t, db, "lunch"),
		dinner: testhelpers.CreateTag(t, db, "dinner"),
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateRecipePersistsAssociations(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	req := testhelpers.RecipeRequest("Pancakes", []uint{f.lunch.ID, f.dinner.ID},
		types.IngredientEntry{ID: f.flour.ID, Amount: 200},
		types.IngredientEntry{ID: f.milk.ID, Amount: 300},
		types.IngredientEntry{ID: f.salt.ID, Amount: 2},
	)
	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, req)
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", recipe.Name)
	assert.Equal(t, f.author.ID, recipe.AuthorID)
	require.NotNil(t, recipe.Author)
	assert.Equal(t, f.author.Username, recipe.Author.Username)
	assert.Contains(t, recipe.Image, "recipes/images/")
	assert.Equal(t, 1, f.images.Len())
	assert.Nil(t, recipe.Embedding)

	var rows []models.IngredientRecipe
	require.NoError(t, f.db.Where("recipe_id = ?", recipe.ID).Find(&rows).Error)
	require.Len(t, rows, 3)
	amounts := map[uint]int{}
	for _, r := range rows {
		amounts[r.IngredientID] = r.Amount
	}
	assert.Equal(t, map[uint]int{f.flour.ID: 200, f.milk.ID: 300, f.salt.ID: 2}, amounts)
	assert.Equal(t, int64(2), countRows(t, f.db.Where("recipe_id = ?", recipe.ID), &models.TagRecipe{}))

	require.Len(t, recipe.IngredientAmounts, 3)
	assert.Equal(t, "Flour", recipe.IngredientAmounts[0].Ingredient.Name)
	require.Len(t, recipe.TagLinks, 2)
	assert.Equal(t, "lunch", recipe.TagLinks[0].Tag.Slug)
}

func TestCreateRecipeValidation(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	tags := []uint{f.lunch.ID}
	salt := types.IngredientEntry{ID: f.salt.ID, Amount: 5}

	tests := []struct {
		name    string
		mutate  func(r *types.CreateRecipeRequest)
		wantErr error
	}{
		{"empty tags", func(r *types.CreateRecipeRequest) { r.Tags = []uint{} }, service.ErrEmptyTags},
		{"nil tags", func(r *types.CreateRecipeRequest) { r.Tags = nil }, service.ErrEmptyTags},
		{"duplicate tags", func(r *types.CreateRecipeRequest) { r.Tags = []uint{f.lunch.ID, f.lunch.ID} }, service.ErrDuplicateTags},
		{"unknown tag", func(r *types.CreateRecipeRequest) { r.Tags = []uint{f.lunch.ID, 9999} }, service.ErrUnknownTag},
		{"empty ingredients", func(r *types.CreateRecipeRequest) { r.Ingredients = nil }, service.ErrEmptyIngredients},
		{"duplicate ingredients", func(r *types.CreateRecipeRequest) {
			r.Ingredients = []types.IngredientEntry{{ID: f.salt.ID, Amount: 1}, {ID: f.salt.ID, Amount: 3}}
		}, service.ErrDuplicateIngredients},
		{"unknown ingredient", func(r *types.CreateRecipeRequest) {
			r.Ingredients = []types.IngredientEntry{salt, {ID: 9999, Amount: 1}}
		}, service.ErrUnknownIngredient},
		{"zero amount", func(r *types.CreateRecipeRequest) {
			r.Ingredients = []types.IngredientEntry{{ID: f.salt.ID, Amount: 0}}
		}, service.ErrInvalidAmount},
		{"zero cooking time", func(r *types.CreateRecipeRequest) { r.CookingTime = 0 }, service.ErrInvalidCookingTime},
		{"blank name", func(r *types.CreateRecipeRequest) { r.Name = "   " }, service.ErrNameRequired},
		{"blank text", func(r *types.CreateRecipeRequest) { r.Text = "" }, service.ErrTextRequired},
		{"missing image", func(r *types.CreateRecipeRequest) { r.Image = "" }, service.ErrImageRequired},
		{"not an image", func(r *types.CreateRecipeRequest) { r.Image = "data:image/png;base64,aGVsbG8gd29ybGQ=" }, service.ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testhelpers.RecipeRequest("Soup", tags, salt)
			tt.mutate(req)

			recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, req)
			assert.Nil(t, recipe)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, service.KindValidation, service.KindOf(err))

			assert.Zero(t, countRows(t, f.db, &models.Recipe{}))
			assert.Zero(t, countRows(t, f.db, &models.IngredientRecipe{}))
			assert.Zero(t, countRows(t, f.db, &models.TagRecipe{}))
			assert.Zero(t, f.images.Len())
		})
	}
}

func TestCreateRecipeDiscardsImageOnFailure(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	author := testhelpers.CreateUser(t, db)
	salt := testhelpers.CreateIngredient(t, db, "Salt", "g")
	tag := testhelpers.CreateTag(t, db, "snack")

	images := new(testhelpers.MockImageStore)
	images.On("Save", mock.Anything, mock.AnythingOfType("string"), "image/png", mock.Anything).
		Return("", errors.New("bucket unavailable"))
	svc := service.NewRecipeService(db, images, logger.Nop())

	_, err := svc.CreateRecipe(context.Background(), author.ID,
		testhelpers.RecipeRequest("Chips", []uint{tag.ID}, types.IngredientEntry{ID: salt.ID, Amount: 1}))
	require.Error(t, err)
	assert.Zero(t, service.KindOf(err))
	assert.Zero(t, countRows(t, db, &models.Recipe{}))
	images.AssertExpectations(t)
	images.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdateRecipeReplacesAssociations(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Bread", []uint{f.lunch.ID},
		types.IngredientEntry{ID: f.flour.ID, Amount: 500},
		types.IngredientEntry{ID: f.salt.ID, Amount: 10},
	))
	require.NoError(t, err)

	newName := "Milk bread"
	updated, err := f.svc.UpdateRecipe(ctx, f.author.ID, recipe.ID, &types.UpdateRecipeRequest{
		Name:        &newName,
		Tags:        []uint{f.dinner.ID},
		Ingredients: []types.IngredientEntry{{ID: f.flour.ID, Amount: 450}, {ID: f.milk.ID, Amount: 250}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Milk bread", updated.Name)
	assert.Equal(t, recipe.Text, updated.Text)
	assert.Equal(t, recipe.Image, updated.Image)

	var rows []models.IngredientRecipe
	require.NoError(t, f.db.Where("recipe_id = ?", recipe.ID).Order("ingredient_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	got := map[uint]int{}
	for _, r := range rows {
		got[r.IngredientID] = r.Amount
	}
	assert.Equal(t, map[uint]int{f.flour.ID: 450, f.milk.ID: 250}, got)

	var tagIDs []uint
	require.NoError(t, f.db.Model(&models.TagRecipe{}).Where("recipe_id = ?", recipe.ID).Pluck("tag_id", &tagIDs).Error)
	assert.Equal(t, []uint{f.dinner.ID}, tagIDs)
}

func TestUpdateRecipeReplacesImage(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Soup", []uint{f.lunch.ID},
		types.IngredientEntry{ID: f.salt.ID, Amount: 5}))
	require.NoError(t, err)
	oldKey := service.ImageKeyFromURL(recipe.Image)
	require.Contains(t, f.images.Objects, oldKey)

	image := testhelpers.PNGDataURI
	updated, err := f.svc.UpdateRecipe(ctx, f.author.ID, recipe.ID, &types.UpdateRecipeRequest{
		Image:       &image,
		Tags:        []uint{f.lunch.ID},
		Ingredients: []types.IngredientEntry{{ID: f.salt.ID, Amount: 5}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, recipe.Image, updated.Image)
	assert.Equal(t, 1, f.images.Len())
	assert.NotContains(t, f.images.Objects, oldKey)
	assert.Contains(t, f.images.Objects, service.ImageKeyFromURL(updated.Image))
}

func TestUpdateRecipeRequiresAssociations(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Tea", []uint{f.lunch.ID},
		types.IngredientEntry{ID: f.milk.ID, Amount: 50}))
	require.NoError(t, err)

	_, err = f.svc.UpdateRecipe(ctx, f.author.ID, recipe.ID, &types.UpdateRecipeRequest{Tags: []uint{f.lunch.ID}})
	assert.ErrorIs(t, err, service.ErrIngredientsRequired)

	_, err = f.svc.UpdateRecipe(ctx, f.author.ID, recipe.ID, &types.UpdateRecipeRequest{
		Ingredients: []types.IngredientEntry{{ID: f.milk.ID, Amount: 50}},
	})
	assert.ErrorIs(t, err, service.ErrTagsRequired)

	_, err = f.svc.UpdateRecipe(ctx, f.author.ID, recipe.ID, &types.UpdateRecipeRequest{
		Tags:        []uint{f.lunch.ID},
		Ingredients: []types.IngredientEntry{{ID: f.milk.ID, Amount: 50}, {ID: 4242, Amount: 1}},
	})
	assert.ErrorIs(t, err, service.ErrUnknownIngredient)

	// the failed updates left the original association set in place
	var rows []models.IngredientRecipe
	require.NoError(t, f.db.Where("recipe_id = ?", recipe.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 50, rows[0].Amount)
}

func TestUpdateRecipeForbiddenForNonAuthor(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	stranger := testhelpers.CreateUser(t, f.db)

	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Stew", []uint{f.dinner.ID},
		types.IngredientEntry{ID: f.salt.ID, Amount: 3}))
	require.NoError(t, err)

	hijacked := "Hijacked"
	_, err = f.svc.UpdateRecipe(ctx, stranger.ID, recipe.ID, &types.UpdateRecipeRequest{
		Name:        &hijacked,
		Tags:        []uint{f.lunch.ID},
		Ingredients: []types.IngredientEntry{{ID: f.flour.ID, Amount: 1}},
	})
	assert.ErrorIs(t, err, service.ErrForbidden)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))

	after, err := f.svc.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stew", after.Name)
	require.Len(t, after.IngredientAmounts, 1)
	assert.Equal(t, f.salt.ID, after.IngredientAmounts[0].IngredientID)

	err = f.svc.DeleteRecipe(ctx, stranger.ID, recipe.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestUpdateRecipeNotFound(t *testing.T) {
	f := setupRecipeTest(t)
	_, err := f.svc.UpdateRecipe(context.Background(), f.author.ID, 404, &types.UpdateRecipeRequest{})
	assert.ErrorIs(t, err, service.ErrRecipeNotFound)
}

func TestDeleteRecipeRemovesDependents(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	fan := testhelpers.CreateUser(t, f.db)

	recipe, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Pie", []uint{f.dinner.ID},
		types.IngredientEntry{ID: f.flour.ID, Amount: 300}))
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Favorite{UserID: fan.ID, RecipeID: recipe.ID}).Error)
	require.NoError(t, f.db.Create(&models.Cart{UserID: fan.ID, RecipeID: recipe.ID}).Error)

	require.NoError(t, f.svc.DeleteRecipe(ctx, f.author.ID, recipe.ID))

	assert.Zero(t, countRows(t, f.db, &models.Recipe{}))
	assert.Zero(t, countRows(t, f.db, &models.IngredientRecipe{}))
	assert.Zero(t, countRows(t, f.db, &models.TagRecipe{}))
	assert.Zero(t, countRows(t, f.db, &models.Favorite{}))
	assert.Zero(t, countRows(t, f.db, &models.Cart{}))
	assert.Equal(t, int64(3), countRows(t, f.db, &models.Ingredient{}))
	assert.Zero(t, f.images.Len(), "recipe image should be removed from storage")

	_, err = f.svc.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, service.ErrRecipeNotFound)
}

func TestListRecipesFilters(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	other := testhelpers.CreateUser(t, f.db)
	salt := types.IngredientEntry{ID: f.salt.ID, Amount: 1}

	soup, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Tomato soup", []uint{f.lunch.ID}, salt))
	require.NoError(t, err)
	roast, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Roast", []uint{f.dinner.ID}, salt))
	require.NoError(t, err)
	salad, err := f.svc.CreateRecipe(ctx, other.ID, testhelpers.RecipeRequest("Salad", []uint{f.lunch.ID, f.dinner.ID}, salt))
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Favorite{UserID: other.ID, RecipeID: soup.ID}).Error)
	require.NoError(t, f.db.Create(&models.Cart{UserID: other.ID, RecipeID: roast.ID}).Error)

	ids := func(rs []models.Recipe) []uint {
		out := make([]uint, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	yes, no := true, false

	all, total, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uint{salad.ID, roast.ID, soup.ID}, ids(all))

	byAuthor, _, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{AuthorID: f.author.ID.String()})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{soup.ID, roast.ID}, ids(byAuthor))

	byTag, total, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{TagSlugs: []string{"lunch"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []uint{soup.ID, salad.ID}, ids(byTag))

	anyTag, total, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{TagSlugs: []string{"lunch", "dinner"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, anyTag, 3)

	favs, _, err := f.svc.ListRecipes(ctx, testhelpers.UserID(other), types.RecipeFilter{IsFavorited: &yes})
	require.NoError(t, err)
	assert.Equal(t, []uint{soup.ID}, ids(favs))

	notFavs, _, err := f.svc.ListRecipes(ctx, testhelpers.UserID(other), types.RecipeFilter{IsFavorited: &no})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{roast.ID, salad.ID}, ids(notFavs))

	// anonymous viewers cannot filter by relations
	anon, _, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{IsInShoppingCart: &yes})
	require.NoError(t, err)
	assert.Len(t, anon, 3)

	cart, _, err := f.svc.ListRecipes(ctx, testhelpers.UserID(other), types.RecipeFilter{IsInShoppingCart: &yes})
	require.NoError(t, err)
	assert.Equal(t, []uint{roast.ID}, ids(cart))

	found, _, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{Search: "tomato"})
	require.NoError(t, err)
	assert.Equal(t, []uint{soup.ID}, ids(found))

	page2, total, err := f.svc.ListRecipes(ctx, nil, types.RecipeFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uint{soup.ID}, ids(page2))
}

func TestDescribeComputesViewerFlags(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	viewer := testhelpers.CreateUser(t, f.db)
	salt := types.IngredientEntry{ID: f.salt.ID, Amount: 7}

	first, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("First", []uint{f.lunch.ID}, salt))
	require.NoError(t, err)
	second, err := f.svc.CreateRecipe(ctx, f.author.ID, testhelpers.RecipeRequest("Second", []uint{f.dinner.ID}, salt))
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&models.Favorite{UserID: viewer.ID, RecipeID: first.ID}).Error)
	require.NoError(t, f.db.Create(&models.Cart{UserID: viewer.ID, RecipeID: second.ID}).Error)
	require.NoError(t, f.db.Create(&models.Follow{UserID: viewer.ID, AuthorID: f.author.ID}).Error)

	views, err := f.svc.Describe(ctx, testhelpers.UserID(viewer), []models.Recipe{*first, *second})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].IsFavorited)
	assert.False(t, views[0].IsInShoppingCart)
	assert.False(t, views[1].IsFavorited)
	assert.True(t, views[1].IsInShoppingCart)
	assert.True(t, views[0].Author.IsSubscribed)
	require.Len(t, views[0].Ingredients, 1)
	assert.Equal(t, types.RecipeIngredient{ID: f.salt.ID, Name: "Salt", MeasurementUnit: "g", Amount: 7}, views[0].Ingredients[0])
	require.Len(t, views[0].Tags, 1)
	assert.Equal(t, "lunch", views[0].Tags[0].Slug)

	anon, err := f.svc.Describe(ctx, nil, []models.Recipe{*first})
	require.NoError(t, err)
	assert.False(t, anon[0].IsFavorited)
	assert.False(t, anon[0].Author.IsSubscribed)

	var nobody *uuid.UUID
	empty, err := f.svc.Describe(ctx, nobody, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
