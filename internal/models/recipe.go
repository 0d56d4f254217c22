package models

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

type Recipe struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	AuthorID    uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author      *User            `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string           `gorm:"size:200;not null" json:"name"`
	Image       string           `gorm:"size:255;not null" json:"image"`
	Text        string           `gorm:"type:text;not null" json:"text"`
	CookingTime int              `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1" json:"cooking_time"`
	Embedding   *pgvector.Vector `gorm:"type:vector(3)" json:"-"`

	IngredientAmounts []IngredientRecipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	TagLinks          []TagRecipe        `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// IngredientRecipe links an ingredient to a recipe with an amount; the pair is unique.
type IngredientRecipe struct {
	ID           uint        `gorm:"primarykey" json:"-"`
	RecipeID     uint        `gorm:"not null;uniqueIndex:idx_ingredient_recipe_pair" json:"recipe_id"`
	IngredientID uint        `gorm:"not null;uniqueIndex:idx_ingredient_recipe_pair;index" json:"ingredient_id"`
	Ingredient   *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"-"`
	Amount       int         `gorm:"not null;check:chk_ingredient_recipes_amount,amount >= 1" json:"amount"`
}

func (IngredientRecipe) TableName() string {
	return "ingredient_recipes"
}

// TagRecipe links a tag to a recipe; the pair is unique.
type TagRecipe struct {
	ID       uint `gorm:"primarykey" json:"-"`
	RecipeID uint `gorm:"not null;uniqueIndex:idx_tag_recipe_pair" json:"recipe_id"`
	TagID    uint `gorm:"not null;uniqueIndex:idx_tag_recipe_pair;index" json:"tag_id"`
	Tag      *Tag `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TagRecipe) TableName() string {
	return "tag_recipes"
}
