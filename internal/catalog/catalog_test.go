package catalog_test

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"civico/backend/internal/catalog"
	"civico/backend/internal/models"
)

func activeTypes() []models.ComplaintType {
	return []models.ComplaintType{
		{ID: 1, Name: "Recolección de basura", Keywords: pq.StringArray{"basura", "aseo", "trash"}, Active: true},
		{ID: 2, Name: "Alumbrado público", Keywords: pq.StringArray{"alumbrado", "luz", "poste"}, Active: true},
		{ID: 3, Name: "Vías y baches", Keywords: pq.StringArray{"bache", "calle"}, Active: true},
	}
}

func TestResolve_NumericID(t *testing.T) {
	id, ok := catalog.Resolve("2", activeTypes())

	assert.True(t, ok)
	assert.Equal(t, uint(2), id)
}

func TestResolve_NumericIDNotInCatalog(t *testing.T) {
	_, ok := catalog.Resolve("9", activeTypes())
	assert.False(t, ok)
}

// TestResolve_LabelSubstring matches in both directions: hint inside the
// label and label inside the hint.
func TestResolve_LabelSubstring(t *testing.T) {
	id, ok := catalog.Resolve("alumbrado", activeTypes())
	assert.True(t, ok)
	assert.Equal(t, uint(2), id)

	id, ok = catalog.Resolve("problema de recolección de basura en mi barrio", activeTypes())
	assert.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestResolve_Keyword(t *testing.T) {
	id, ok := catalog.Resolve("hay un bache enorme", activeTypes())

	assert.True(t, ok)
	assert.Equal(t, uint(3), id)
}

// TestResolve_WasteSynonymFallback: common waste words map to the waste type
// even when neither label nor keywords matched first.
func TestResolve_WasteSynonymFallback(t *testing.T) {
	types := []models.ComplaintType{
		{ID: 7, Name: "Basura y desechos", Active: true},
		{ID: 8, Name: "Alumbrado", Active: true},
	}

	id, ok := catalog.Resolve("garbage everywhere", types)

	assert.True(t, ok)
	assert.Equal(t, uint(7), id)
}

func TestResolve_Miss(t *testing.T) {
	_, ok := catalog.Resolve("quiero renovar mi licencia", activeTypes())
	assert.False(t, ok)

	_, ok = catalog.Resolve("   ", activeTypes())
	assert.False(t, ok)
}
