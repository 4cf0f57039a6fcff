package catalog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/gamerank/internal/catalog"
)

func TestDecode(t *testing.T) {
	const doc = `
games:
  - id: b
    name: Bravo
    categories: [puzzle]
    difficulty: 4
    similar: [a]
  - id: a
    name: Alpha
    categories: [puzzle, classic]
    difficulty: 2
`
	c, err := catalog.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	games := c.Games()
	assert.Equal(t, "b", games[0].ID, "declaration order should be kept")
	assert.Equal(t, "a", games[1].ID)
	assert.Equal(t, []string{"a"}, games[0].Adjacent)
	assert.Equal(t, []string{"b", "a"}, c.InCategory("puzzle"))
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"difficulty out of range": "games:\n  - id: a\n    difficulty: 6\n",
		"duplicate id":            "games:\n  - id: a\n    difficulty: 1\n  - id: a\n    difficulty: 2\n",
		"unknown field":           "games:\n  - id: a\n    difficulty: 1\n    rating: 3\n",
	}

	for name, doc := range tests {
		doc := doc
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Decode(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	c := catalog.Default()
	require.Equal(t, 11, c.Len())

	g, ok := c.Get("chess")
	require.True(t, ok)
	assert.Equal(t, 5, g.Difficulty)
	assert.Equal(t, []string{"tictactoe", "checkers"}, g.Adjacent)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	c, err := catalog.Load("")
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Games(), c.Games())
}
