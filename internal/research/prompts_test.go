package research

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	input := strings.Repeat("observação", 20)
	got := truncate(input, 100)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 100, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(input, got))
}

func TestTruncateLeavesShortValuesAlone(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	multibyte := "região é chave"
	assert.Equal(t, multibyte, truncate(multibyte, 100))
}
