package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_KeepsMostRecent(t *testing.T) {
	b := New[int](3)
	_, ok := b.Oldest()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	assert.True(t, b.Full())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Slice())

	oldest, _ := b.Oldest()
	newest, _ := b.Newest()
	assert.Equal(t, 3, oldest)
	assert.Equal(t, 5, newest)
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	b := New[string](2)
	b.Push("a")
	c := b.Clone()
	c.Push("b")
	c.Push("c")

	assert.Equal(t, []string{"a"}, b.Slice())
	assert.Equal(t, []string{"b", "c"}, c.Slice())
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(7)
	b.Push(8)
	assert.Equal(t, 1, b.Cap())
	assert.Equal(t, []int{8}, b.Slice())
}
