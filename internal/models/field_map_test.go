package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"civico/backend/internal/models"
)

func TestFieldMap_MissingFields(t *testing.T) {
	f := models.FieldMap{}
	assert.ElementsMatch(t,
		[]string{models.FieldTypeID, models.FieldDescription, models.FieldLatitude, models.FieldLongitude},
		f.MissingFields())
	assert.False(t, f.Complete())

	f = models.FieldMap{
		models.FieldTypeID:      float64(2),
		models.FieldDescription: "poste sin luz",
		models.FieldLatitude:    -0.93,
		models.FieldLongitude:   -78.61,
	}
	assert.Empty(t, f.MissingFields())
	assert.True(t, f.Complete())
}

// TestFieldMap_NumericTolerance: values arrive as float64 from JSON but may
// be ints when set in-process; both must read back.
func TestFieldMap_NumericTolerance(t *testing.T) {
	f := models.FieldMap{models.FieldTypeID: 3, models.FieldLatitude: float64(-0.5)}

	id, ok := f.TypeID()
	assert.True(t, ok)
	assert.Equal(t, uint(3), id)

	lat, ok := f.Float(models.FieldLatitude)
	assert.True(t, ok)
	assert.Equal(t, -0.5, lat)

	_, ok = f.Float(models.FieldLongitude)
	assert.False(t, ok)
}

func TestFieldMap_ValueScanRoundTrip(t *testing.T) {
	f := models.FieldMap{
		models.FieldDescription: "basura acumulada",
		models.FieldLatitude:    -0.93,
		models.FieldEvidences:   []any{map[string]any{"attachment_id": "a1"}},
	}

	raw, err := f.Value()
	assert.NoError(t, err)

	var back models.FieldMap
	assert.NoError(t, back.Scan(raw))
	assert.Equal(t, "basura acumulada", back.String(models.FieldDescription))

	lat, ok := back.Float(models.FieldLatitude)
	assert.True(t, ok)
	assert.Equal(t, -0.93, lat)

	evs, ok := back[models.FieldEvidences].([]any)
	assert.True(t, ok)
	assert.Len(t, evs, 1)
}

func TestValidateKeys_RejectsUnknown(t *testing.T) {
	assert.NoError(t, models.ValidateKeys(models.FieldMap{models.FieldReference: "frente al parque"}))
	assert.Error(t, models.ValidateKeys(models.FieldMap{"status": "approved"}))
}

func TestFieldMap_CloneDoesNotAlias(t *testing.T) {
	orig := models.FieldMap{models.FieldDescription: "a"}
	cp := orig.Clone()
	cp[models.FieldDescription] = "b"

	assert.Equal(t, "a", orig.String(models.FieldDescription))
}
