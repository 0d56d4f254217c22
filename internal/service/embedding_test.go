package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateEmbedding(t *testing.T) {
	v := GenerateEmbedding("Borscht")
	assert.Equal(t, []float32{7, 1, 6}, v.Slice())

	// case and non-letters do not change the vowel/consonant split
	w := GenerateEmbedding("BORSCHT!")
	assert.Equal(t, []float32{8, 1, 6}, w.Slice())
}
