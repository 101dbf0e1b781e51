package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail(" Alice@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		pin, err := RandomDigits(6)
		require.NoError(t, err)
		require.Len(t, pin, 6)
		assert.NotEqual(t, byte('0'), pin[0])
		for _, c := range pin {
			assert.GreaterOrEqual(t, c, '0')
			assert.LessOrEqual(t, c, '9')
		}
	}
}

func TestRandomDigitsDefaultsLength(t *testing.T) {
	pin, err := RandomDigits(0)
	require.NoError(t, err)
	assert.Len(t, pin, 6)
}

func TestRemoveEmptyStrings(t *testing.T) {
	cleaned := RemoveEmptyStrings(map[string]string{
		"firstName": "Alice",
		"lastName":  "",
	})
	assert.Equal(t, map[string]string{"firstName": "Alice"}, cleaned)
	assert.Empty(t, RemoveEmptyStrings(nil))
}

func TestToNullString(t *testing.T) {
	assert.False(t, ToNullString("").Valid)
	ns := ToNullString("x")
	assert.True(t, ns.Valid)
	assert.Equal(t, "x", ns.String)
}
