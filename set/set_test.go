package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Of("a", "b", "a")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))

	s.Insert("c")
	assert.True(t, s.Contains("c"))
	assert.Equal(t, 3, s.Len())
}

func TestSetZeroValue(t *testing.T) {
	var s Set[int]
	assert.False(t, s.Contains(1))
	assert.Zero(t, s.Len())

	s.Insert(1)
	assert.True(t, s.Contains(1))
}
