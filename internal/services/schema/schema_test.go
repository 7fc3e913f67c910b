package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldCatalog(t *testing.T) {
	t.Run("Should require plate, date, time and reader for LPR", func(t *testing.T) {
		assert.Equal(t, []string{FieldMatricula, FieldFecha, FieldHora, FieldIDLector}, RequiredFields(KindLPR))
	})

	t.Run("Should treat the reader id as optional for GPS", func(t *testing.T) {
		assert.False(t, IsRequired(KindGPS, FieldIDLector))
		assert.Contains(t, OptionalFields(KindGPS), FieldIDLector)
	})

	t.Run("Should require only the plate for external data", func(t *testing.T) {
		assert.Equal(t, []string{FieldMatricula}, RequiredFields(KindExterno))
		assert.Empty(t, OptionalFields(KindExterno))
	})

	t.Run("Should list required fields before optional in AllFields", func(t *testing.T) {
		all := AllFields(KindLPR)
		require.Len(t, all, 9)
		assert.Equal(t, FieldMatricula, all[0])
		assert.Equal(t, FieldCoordenadaY, all[8])
	})

	t.Run("Should reject unknown kinds", func(t *testing.T) {
		assert.True(t, KindGPXKML.Valid())
		assert.False(t, ImportKind("VIDEO").Valid())
	})
}

func TestAliases(t *testing.T) {
	t.Run("Should recognize common plate column spellings", func(t *testing.T) {
		terms := Aliases(FieldMatricula)
		assert.Contains(t, terms, "plate")
		assert.Contains(t, terms, "patente")
	})

	t.Run("Should have no aliases for fields mapped manually", func(t *testing.T) {
		assert.Empty(t, Aliases(FieldSentido))
		assert.Empty(t, Aliases(FieldAltitud))
	})

	t.Run("Should return a copy that callers can mutate safely", func(t *testing.T) {
		first := Aliases(FieldFecha)
		first[0] = "mutated"
		assert.Equal(t, "fecha", Aliases(FieldFecha)[0])
	})

	// Auto-mapping claims headers greedily, so a spelling listed under two
	// fields would make the outcome depend on field order. Every term must
	// belong to exactly one field.
	t.Run("Should never share a spelling between two fields", func(t *testing.T) {
		owner := make(map[string]string)
		for _, kind := range Kinds {
			for _, field := range AllFields(kind) {
				for _, term := range Aliases(field) {
					if prev, taken := owner[term]; taken && prev != field {
						t.Errorf("alias %q belongs to both %s and %s", term, prev, field)
					}
					owner[term] = field
				}
			}
		}
	})
}

func TestCombinedFormats(t *testing.T) {
	t.Run("Should accept every declared layout", func(t *testing.T) {
		for _, layout := range CombinedFormats {
			assert.True(t, ValidCombinedFormat(layout), layout)
		}
	})

	t.Run("Should reject layouts without seconds", func(t *testing.T) {
		assert.False(t, ValidCombinedFormat("DD/MM/YYYY HH:mm"))
	})
}
