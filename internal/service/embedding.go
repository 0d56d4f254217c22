package service

import (
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// GenerateEmbedding returns a simple deterministic embedding for the given text:
// total length, vowels and consonants.
func GenerateEmbedding(text string) pgvector.Vector {
	text = strings.ToLower(text)
	var vowels, consonants float32
	for _, r := range text {
		if strings.ContainsRune("aeiou", r) {
			vowels++
		} else if r >= 'a' && r <= 'z' {
			consonants++
		}
	}
	length := float32(len([]rune(text)))
	return pgvector.NewVector([]float32{length, vowels, consonants})
}

// recipeEmbedding is nil unless the database can store vectors.
func recipeEmbedding(db *gorm.DB, name, text string) *pgvector.Vector {
	if !supportsVectors(db) {
		return nil
	}
	v := GenerateEmbedding(name + " " + text)
	return &v
}

func supportsVectors(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
