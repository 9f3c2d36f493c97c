package cmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitN(t *testing.T) {
	assert.Equal(t, []string{"signer", "create", "pass word"}, SplitN("signer  create pass word", 3))
	assert.Equal(t, []string{"deposit", "", ""}, SplitN("deposit", 3))
	assert.Equal(t, []string{"a", "b c", "d e"}, SplitN("a 'b c' d e", 3))
	assert.Equal(t, []string{"", ""}, SplitN("", 2))
	assert.Equal(t, []string{"signer", "restore", "pw", "w1 w2"}, SplitN("signer restore pw 'w1 w2'", 4))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Position", "pos"))
	assert.False(t, Contains("activity", "dep"))
	assert.True(t, IsInArray([]string{"create", "open"}, "open"))
}
