package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 1, CountTokens(""))
	assert.Equal(t, 5, CountTokens("open from nine to"))
	assert.Equal(t, 250, CountTokens(strings.Repeat("x", 1000)))
}

func TestTruncate(t *testing.T) {
	short := "Opening hours are nine to five."
	assert.Equal(t, short, Truncate(short, 100))

	words := strings.Repeat("menu ", 400)
	got := Truncate(words, 30)
	assert.Equal(t, 22, len(strings.Fields(got)))
	assert.LessOrEqual(t, CountTokens(got), 30)

	blob := strings.Repeat("é", 1000)
	got = Truncate(blob, 10)
	assert.Equal(t, 40, len([]rune(got)))

	assert.Empty(t, Truncate(short, 0))
}
