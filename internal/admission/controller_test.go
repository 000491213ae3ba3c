package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt64AcceptsIntAndInt64(t *testing.T) {
	v, err := toInt64(int64(5))
	assert.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = toInt64(5)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestToInt64RejectsUnknownType(t *testing.T) {
	_, err := toInt64("nope")
	assert.Error(t, err)
}

func TestNewQueueTokenIsURLSafeAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		tok, err := newQueueToken()
		assert.NoError(t, err)
		assert.NotEmpty(t, tok)
		assert.False(t, seen[tok], "queue token must be unique per call")
		seen[tok] = true
	}
}
