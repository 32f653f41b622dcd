package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/reference"
)

func nameField(value string, conf float64) entity.ClassifiedField {
	return entity.ClassifiedField{
		Kind:       constants.FieldName,
		Value:      value,
		Confidence: conf,
	}
}

func TestValidateExactMatch(t *testing.T) {
	ref := reference.BuiltinSet()
	fields := []entity.ClassifiedField{nameField("PARACETAMOL", 0.70)}

	out := Validate(fields, ref, Config{})

	require.Len(t, out, 1)
	f := out[0]
	assert.Equal(t, "Paracetamol", f.Value)
	assert.Equal(t, "Paracetamol", f.Normalized)
	assert.False(t, f.Corrected, "an exact match is a confirmation, not a correction")
	assert.InDelta(t, 0.95, f.Confidence, 1e-9)
	require.NotNil(t, f.Ref)
	assert.Equal(t, "Acetaminophen", f.Ref.GenericName)
	assert.Equal(t, "Analgesic", f.Ref.Category)
}

func TestValidateExactMatchKeepsHigherConfidence(t *testing.T) {
	ref := reference.BuiltinSet()
	fields := []entity.ClassifiedField{nameField("aspirin", 0.97)}

	out := Validate(fields, ref, Config{})

	assert.Equal(t, "Aspirin", out[0].Value)
	assert.InDelta(t, 0.97, out[0].Confidence, 1e-9)
}

func TestValidateFuzzyCorrection(t *testing.T) {
	ref := reference.BuiltinSet()

	t.Run("raises low confidence", func(t *testing.T) {
		out := Validate([]entity.ClassifiedField{nameField("Paracetmol", 0.60)}, ref, Config{})
		f := out[0]
		assert.Equal(t, "Paracetamol", f.Value)
		assert.Equal(t, "Paracetamol", f.Normalized)
		assert.True(t, f.Corrected)
		assert.Greater(t, f.Confidence, 0.75)
		assert.Less(t, f.Confidence, 0.95)
		require.NotNil(t, f.Ref)
	})

	t.Run("never lowers confidence", func(t *testing.T) {
		out := Validate([]entity.ClassifiedField{nameField("Paracetmol", 0.90)}, ref, Config{})
		f := out[0]
		assert.True(t, f.Corrected)
		assert.InDelta(t, 0.90, f.Confidence, 1e-9)
	})

	t.Run("dropped letter", func(t *testing.T) {
		out := Validate([]entity.ClassifiedField{nameField("Amoxicilin", 0.65)}, ref, Config{})
		f := out[0]
		assert.Equal(t, "Amoxicillin", f.Value)
		assert.True(t, f.Corrected)
	})
}

func TestValidateGenericNameMatch(t *testing.T) {
	ref := reference.BuiltinSet()

	t.Run("exact generic attaches the entry", func(t *testing.T) {
		out := Validate([]entity.ClassifiedField{nameField("ACETAMINOPHEN", 0.60)}, ref, Config{})
		f := out[0]
		assert.Equal(t, "Acetaminophen", f.Value)
		assert.False(t, f.Corrected)
		assert.InDelta(t, 0.95, f.Confidence, 1e-9)
		require.NotNil(t, f.Ref)
		assert.Equal(t, "Paracetamol", f.Ref.Name)
	})

	t.Run("fuzzy generic corrects to the generic spelling", func(t *testing.T) {
		out := Validate([]entity.ClassifiedField{nameField("Acetaminophn", 0.60)}, ref, Config{})
		f := out[0]
		assert.Equal(t, "Acetaminophen", f.Value)
		assert.True(t, f.Corrected)
		require.NotNil(t, f.Ref)
		assert.Equal(t, "Paracetamol", f.Ref.Name)
	})
}

func TestValidateUnknownNamePassesThrough(t *testing.T) {
	ref := reference.BuiltinSet()
	fields := []entity.ClassifiedField{nameField("Xyzzyqq", 0.55)}

	out := Validate(fields, ref, Config{})

	f := out[0]
	assert.Equal(t, "Xyzzyqq", f.Value)
	assert.InDelta(t, 0.55, f.Confidence, 1e-9)
	assert.False(t, f.Corrected)
	assert.Nil(t, f.Ref)
}

func TestValidateLeavesOtherKindsAlone(t *testing.T) {
	ref := reference.BuiltinSet()
	fields := []entity.ClassifiedField{{
		Kind:       constants.FieldManufacturer,
		Value:      "Paracetmol Pharma", // close to a medicine name, still a maker
		Confidence: 0.50,
	}}

	out := Validate(fields, ref, Config{})

	assert.Equal(t, "Paracetmol Pharma", out[0].Value)
	assert.False(t, out[0].Corrected)
	assert.Nil(t, out[0].Ref)
}

func TestValidateNilReference(t *testing.T) {
	fields := []entity.ClassifiedField{nameField("Paracetamol", 0.70)}

	out := Validate(fields, nil, Config{})

	assert.Equal(t, fields, out)
}
