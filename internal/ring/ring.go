// Package ring provides a fixed-capacity buffer that keeps the most recent
// values. Timelines and wealth histories use it instead of truncating slices
// after every append.
package ring

// Buffer keeps the last Cap() values pushed into it.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New creates an empty buffer with the given capacity (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, overwriting the oldest value when full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.start+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % len(b.items)
}

// Len returns the number of stored values.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Full reports whether the buffer holds Cap() values.
func (b *Buffer[T]) Full() bool { return b.size == len(b.items) }

// At returns the i-th value, oldest first.
func (b *Buffer[T]) At(i int) T {
	return b.items[(b.start+i)%len(b.items)]
}

// Oldest returns the oldest value and false if empty.
func (b *Buffer[T]) Oldest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(0), true
}

// Newest returns the most recent value and false if empty.
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Clone returns an independent copy.
func (b *Buffer[T]) Clone() *Buffer[T] {
	c := &Buffer[T]{items: make([]T, len(b.items)), start: b.start, size: b.size}
	copy(c.items, b.items)
	return c
}
