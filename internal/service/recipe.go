package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 6
	maxPageSize     = 100
)

// RecipeService handles the recipe aggregate: a recipe row together with its
// ingredient and tag association rows, always written as one unit.
type RecipeService struct {
	db     *gorm.DB
	images ImageStore
	flags  *ViewerFlags
	log    *logger.Logger
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, images ImageStore, log *logger.Logger) *RecipeService {
	return &RecipeService{
		db:     db,
		images: images,
		flags:  NewViewerFlags(db),
		log:    log.With("service", "recipes"),
	}
}

// CreateRecipe validates the submission and persists the recipe with all of
// its associations in a single transaction.
func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uuid.UUID, req *types.CreateRecipeRequest) (*models.Recipe, error) {
	name, text, err := validateRecipeFields(req.Name, req.Text, req.CookingTime)
	if err != nil {
		return nil, err
	}
	if err := validateTagIDs(req.Tags); err != nil {
		return nil, err
	}
	if err := validateIngredientEntries(req.Ingredients); err != nil {
		return nil, err
	}
	img, err := DecodeImage(req.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        name,
		Text:        text,
		CookingTime: req.CookingTime,
		Embedding:   recipeEmbedding(s.db, name, text),
	}

	var uploaded string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTagsExist(tx, req.Tags); err != nil {
			return err
		}
		if err := ensureIngredientsExist(tx, req.Ingredients); err != nil {
			return err
		}

		key := img.Key()
		url, err := s.images.Save(ctx, key, img.ContentType, img.Data)
		if err != nil {
			return err
		}
		uploaded = key
		recipe.Image = url

		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return replaceAssociations(tx, recipe.ID, req.Ingredients, req.Tags)
	})
	if err != nil {
		s.discardImage(ctx, uploaded)
		return nil, err
	}

	s.log.Info("recipe created", "recipe_id", recipe.ID, "author_id", authorID,
		"ingredients", len(req.Ingredients), "tags", len(req.Tags))
	return s.GetRecipe(ctx, recipe.ID)
}

// UpdateRecipe replaces the recipe's ingredient and tag sets and applies any
// supplied scalar fields. Both association sets are mandatory.
func (s *RecipeService) UpdateRecipe(ctx context.Context, actorID uuid.UUID, recipeID uint, req *types.UpdateRecipeRequest) (*models.Recipe, error) {
	if _, err := s.authorize(ctx, s.db, actorID, recipeID); err != nil {
		return nil, err
	}

	if req.Ingredients == nil {
		return nil, ErrIngredientsRequired
	}
	if req.Tags == nil {
		return nil, ErrTagsRequired
	}
	if err := validateTagIDs(req.Tags); err != nil {
		return nil, err
	}
	if err := validateIngredientEntries(req.Ingredients); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		return nil, ErrTextRequired
	}
	if req.CookingTime != nil && *req.CookingTime < 1 {
		return nil, ErrInvalidCookingTime
	}
	var img *DecodedImage
	if req.Image != nil {
		decoded, err := DecodeImage(*req.Image)
		if err != nil {
			return nil, err
		}
		img = decoded
	}

	var uploaded, replaced string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.authorize(ctx, tx, actorID, recipeID)
		if err != nil {
			return err
		}
		if err := ensureTagsExist(tx, req.Tags); err != nil {
			return err
		}
		if err := ensureIngredientsExist(tx, req.Ingredients); err != nil {
			return err
		}

		if req.Name != nil {
			recipe.Name = strings.TrimSpace(*req.Name)
		}
		if req.Text != nil {
			recipe.Text = strings.TrimSpace(*req.Text)
		}
		if req.CookingTime != nil {
			recipe.CookingTime = *req.CookingTime
		}
		if img != nil {
			key := img.Key()
			url, err := s.images.Save(ctx, key, img.ContentType, img.Data)
			if err != nil {
				return err
			}
			uploaded = key
			replaced = ImageKeyFromURL(recipe.Image)
			recipe.Image = url
		}
		recipe.Embedding = recipeEmbedding(tx, recipe.Name, recipe.Text)

		if err := tx.Omit(clause.Associations).Save(recipe).Error; err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		return replaceAssociations(tx, recipe.ID, req.Ingredients, req.Tags)
	})
	if err != nil {
		s.discardImage(ctx, uploaded)
		return nil, err
	}
	s.discardImage(ctx, replaced)

	s.log.Info("recipe updated", "recipe_id", recipeID, "author_id", actorID)
	return s.GetRecipe(ctx, recipeID)
}

// DeleteRecipe removes a recipe and every row that references it.
func (s *RecipeService) DeleteRecipe(ctx context.Context, actorID uuid.UUID, recipeID uint) error {
	var image string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.authorize(ctx, tx, actorID, recipeID)
		if err != nil {
			return err
		}
		image = recipe.Image
		for _, model := range []interface{}{
			&models.IngredientRecipe{},
			&models.TagRecipe{},
			&models.Favorite{},
			&models.Cart{},
		} {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete recipe relations: %w", err)
			}
		}
		if err := tx.Delete(&models.Recipe{}, recipeID).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.discardImage(ctx, ImageKeyFromURL(image))
	s.log.Info("recipe deleted", "recipe_id", recipeID, "author_id", actorID)
	return nil
}

// GetRecipe loads a recipe with its author, ingredients and tags.
func (s *RecipeService) GetRecipe(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := withGraph(s.db.WithContext(ctx)).First(&recipe, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &recipe, nil
}

// ListRecipes returns one page of recipes, newest first, narrowed by filter.
// With a search term, postgres orders by embedding distance instead.
func (s *RecipeService) ListRecipes(ctx context.Context, viewer *uuid.UUID, filter types.RecipeFilter) ([]models.Recipe, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Recipe{})

	if filter.AuthorID != "" {
		q = q.Where("recipes.author_id = ?", filter.AuthorID)
	}
	if len(filter.TagSlugs) > 0 {
		tagged := s.db.Model(&models.TagRecipe{}).
			Select("tag_recipes.recipe_id").
			Joins("JOIN tags ON tags.id = tag_recipes.tag_id").
			Where("tags.slug IN ?", filter.TagSlugs)
		q = q.Where("recipes.id IN (?)", tagged)
	}
	if viewer != nil {
		q = relationFilter(s.db, q, &models.Favorite{}, *viewer, filter.IsFavorited)
		q = relationFilter(s.db, q, &models.Cart{}, *viewer, filter.IsInShoppingCart)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(recipes.name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(search))+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var ordered *gorm.DB
	if strings.TrimSpace(filter.Search) != "" && supportsVectors(s.db) {
		ordered = q.Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "recipes.embedding <-> ?, recipes.created_at DESC, recipes.id DESC",
			Vars: []interface{}{GenerateEmbedding(filter.Search)},
		}})
	} else {
		ordered = q.Order("recipes.created_at DESC").Order("recipes.id DESC")
	}

	var recipes []models.Recipe
	err := withGraph(ordered).Offset((page - 1) * limit).Limit(limit).Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, total, nil
}

// Describe builds the response view of recipes for viewer, resolving the
// favorite, cart and subscription flags in batch.
func (s *RecipeService) Describe(ctx context.Context, viewer *uuid.UUID, recipes []models.Recipe) ([]types.RecipeResponse, error) {
	ids := make([]uint, 0, len(recipes))
	authors := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
		authors = append(authors, r.AuthorID)
	}

	favorited, err := s.flags.Favorited(ctx, viewer, ids)
	if err != nil {
		return nil, err
	}
	inCart, err := s.flags.InCart(ctx, viewer, ids)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.flags.Subscribed(ctx, viewer, authors)
	if err != nil {
		return nil, err
	}

	out := make([]types.RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		resp := types.RecipeResponse{
			ID:               r.ID,
			Tags:             make([]types.TagResponse, 0, len(r.TagLinks)),
			Ingredients:      make([]types.RecipeIngredient, 0, len(r.IngredientAmounts)),
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
			CreatedAt:        r.CreatedAt,
		}
		if r.Author != nil {
			resp.Author = UserView(r.Author, subscribed[r.AuthorID])
		}
		for _, link := range r.TagLinks {
			if link.Tag != nil {
				resp.Tags = append(resp.Tags, TagView(link.Tag))
			}
		}
		for _, ir := range r.IngredientAmounts {
			if ir.Ingredient == nil {
				continue
			}
			resp.Ingredients = append(resp.Ingredients, types.RecipeIngredient{
				ID:              ir.IngredientID,
				Name:            ir.Ingredient.Name,
				MeasurementUnit: ir.Ingredient.MeasurementUnit,
				Amount:          ir.Amount,
			})
		}
		out = append(out, resp)
	}
	return out, nil
}

// authorize loads the recipe and checks that actor wrote it.
func (s *RecipeService) authorize(ctx context.Context, db *gorm.DB, actorID uuid.UUID, recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	if recipe.AuthorID != actorID {
		return nil, ErrForbidden
	}
	return &recipe, nil
}

func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove orphaned recipe image", "key", key, "error", err)
	}
}

// replaceAssociations clears the recipe's ingredient and tag rows and bulk-inserts the new sets.
func replaceAssociations(tx *gorm.DB, recipeID uint, entries []types.IngredientEntry, tagIDs []uint) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.IngredientRecipe{}).Error; err != nil {
		return fmt.Errorf("failed to clear recipe ingredients: %w", err)
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.TagRecipe{}).Error; err != nil {
		return fmt.Errorf("failed to clear recipe tags: %w", err)
	}

	amounts := make([]models.IngredientRecipe, 0, len(entries))
	for _, e := range entries {
		amounts = append(amounts, models.IngredientRecipe{RecipeID: recipeID, IngredientID: e.ID, Amount: e.Amount})
	}
	if err := tx.Omit(clause.Associations).Create(&amounts).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateIngredients
		}
		return fmt.Errorf("failed to insert recipe ingredients: %w", err)
	}

	links := make([]models.TagRecipe, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.TagRecipe{RecipeID: recipeID, TagID: id})
	}
	if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateTags
		}
		return fmt.Errorf("failed to insert recipe tags: %w", err)
	}
	return nil
}

func validateRecipeFields(name, text string, cookingTime int) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrNameRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", ErrTextRequired
	}
	if cookingTime < 1 {
		return "", "", ErrInvalidCookingTime
	}
	return name, text, nil
}

func validateTagIDs(ids []uint) error {
	if len(ids) == 0 {
		return ErrEmptyTags
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return ErrDuplicateTags.WithMessage("tag %d is listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateIngredientEntries(entries []types.IngredientEntry) error {
	if len(entries) == 0 {
		return ErrEmptyIngredients
	}
	seen := make(map[uint]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			return ErrDuplicateIngredients.WithMessage("ingredient %d is listed more than once", e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Amount < 1 {
			return ErrInvalidAmount.WithMessage("amount for ingredient %d must be at least 1", e.ID)
		}
	}
	return nil
}

func ensureTagsExist(tx *gorm.DB, ids []uint) error {
	missing, err := missingIDs(tx, &models.Tag{}, ids)
	if err != nil {
		return fmt.Errorf("failed to check tags: %w", err)
	}
	if len(missing) > 0 {
		return ErrUnknownTag.WithMessage("tag %d does not exist", missing[0])
	}
	return nil
}

func ensureIngredientsExist(tx *gorm.DB, entries []types.IngredientEntry) error {
	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	missing, err := missingIDs(tx, &models.Ingredient{}, ids)
	if err != nil {
		return fmt.Errorf("failed to check ingredients: %w", err)
	}
	if len(missing) > 0 {
		return ErrUnknownIngredient.WithMessage("ingredient %d does not exist", missing[0])
	}
	return nil
}

// missingIDs returns the ids (in input order) that have no row in model's table.
func missingIDs(tx *gorm.DB, model interface{}, ids []uint) ([]uint, error) {
	var found []uint
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[uint]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// relationFilter keeps (want=true) or drops (want=false) recipes the viewer has in model's table.
func relationFilter(db, q *gorm.DB, model interface{}, viewer uuid.UUID, want *bool) *gorm.DB {
	if want == nil {
		return q
	}
	sub := db.Model(model).Select("recipe_id").Where("user_id = ?", viewer)
	if *want {
		return q.Where("recipes.id IN (?)", sub)
	}
	return q.Where("recipes.id NOT IN (?)", sub)
}

func withGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("IngredientAmounts", func(db *gorm.DB) *gorm.DB {
			return db.Order("ingredient_recipes.id")
		}).
		Preload("IngredientAmounts.Ingredient").
		Preload("TagLinks", func(db *gorm.DB) *gorm.DB {
			return db.Order("tag_recipes.id")
		}).
		Preload("TagLinks.Tag")
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
