package focus

type number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// RollingBuffer is a FIFO of bounded capacity. Pushing onto a full buffer evicts the
// oldest value.
type RollingBuffer[T number] struct {
	data  []T
	start int
	size  int
}

// NewRollingBuffer creates a buffer holding at most capacity values.
// A capacity below 1 is raised to 1.
func NewRollingBuffer[T number](capacity int) *RollingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingBuffer[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest value once the buffer is full.
func (b *RollingBuffer[T]) Push(v T) {
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

// Len returns the number of values currently held.
func (b *RollingBuffer[T]) Len() int { return b.size }

// Cap returns the configured capacity.
func (b *RollingBuffer[T]) Cap() int { return len(b.data) }

// Mean returns the arithmetic mean of the current contents, or 0 when empty.
func (b *RollingBuffer[T]) Mean() float64 {
	if b.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < b.size; i++ {
		sum += float64(b.data[(b.start+i)%len(b.data)])
	}
	return sum / float64(b.size)
}

// Values returns a copy of the contents, oldest first.
func (b *RollingBuffer[T]) Values() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.data[(b.start+i)%len(b.data)]
	}
	return out
}

// Reset empties the buffer without changing its capacity.
func (b *RollingBuffer[T]) Reset() {
	clear(b.data)
	b.start = 0
	b.size = 0
}
