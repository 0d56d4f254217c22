package types

// IngredientEntry is one (ingredient, amount) pair of a recipe write request
type IngredientEntry struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// CreateRecipeRequest represents the request body for creating a recipe.
// Image is a data URI ("data:image/png;base64,...").
type CreateRecipeRequest struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Text        string            `json:"text"`
	CookingTime int               `json:"cooking_time"`
	Tags        []uint            `json:"tags"`
	Ingredients []IngredientEntry `json:"ingredients"`
}

// UpdateRecipeRequest represents the request body for updating a recipe.
// Scalar fields are optional; tags and ingredients must always be supplied.
type UpdateRecipeRequest struct {
	Name        *string           `json:"name,omitempty"`
	Image       *string           `json:"image,omitempty"`
	Text        *string           `json:"text,omitempty"`
	CookingTime *int              `json:"cooking_time,omitempty"`
	Tags        []uint            `json:"tags"`
	Ingredients []IngredientEntry `json:"ingredients"`
}

// CreateTagRequest represents the request body for creating a tag
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"required"`
	Slug  string `json:"slug" binding:"required"`
}

// CreateIngredientRequest represents the request body for creating an ingredient
type CreateIngredientRequest struct {
	Name            string `json:"name" binding:"required"`
	MeasurementUnit string `json:"measurement_unit" binding:"required"`
}

// RegisterRequest represents the request body for user registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the request body for obtaining a token
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SetPasswordRequest represents the request body for changing one's password
type SetPasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// RecipeFilter narrows a recipe listing. The relation flags are ignored for
// anonymous viewers; false excludes the viewer's favorites or cart.
type RecipeFilter struct {
	AuthorID         string
	TagSlugs         []string
	IsFavorited      *bool
	IsInShoppingCart *bool
	Search           string
	Page             int
	Limit            int
}
