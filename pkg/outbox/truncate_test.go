package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", truncateString("abc", 0))
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "ab", truncateString("abcd", 2))
	// multi-byte runes are never split
	assert.Equal(t, "é", truncateString("éé", 3))
}
