package words

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

func TestDefaultLoadsEmbeddedLists(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	assert.True(t, b.Supports("en"))
	assert.True(t, b.Supports("es"))
	assert.False(t, b.Supports("xx"))
}

func TestDrawExcludesPrevious(t *testing.T) {
	b := New(map[string][]string{"en": {"ocean", "river"}})

	w, err := b.Draw(fixedRand(0), "en", "ocean")
	require.NoError(t, err)
	assert.Equal(t, "river", w)

	w, err = b.Draw(fixedRand(0), "en", "")
	require.NoError(t, err)
	assert.Equal(t, "ocean", w)
}

func TestDrawUnsupported(t *testing.T) {
	b := New(nil)
	_, err := b.Draw(fixedRand(0), "en", "")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}
