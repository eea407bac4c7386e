// Package ringbuf provides a bounded, overwrite-oldest window used for
// per-instrument indicator history. A Window is owned by one goroutine and
// is not safe for concurrent use.
package ringbuf

// Window keeps the most recent Cap() values pushed into it.
type Window[T any] struct {
	buf  []T
	head uint64 // total values ever pushed

	// Dropped counts values evicted by newer pushes (for metrics).
	dropped uint64
}

// New creates a window holding at most capacity values. Minimum capacity is 1.
func New[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the window is full.
func (w *Window[T]) Push(v T) {
	n := uint64(len(w.buf))
	if w.head >= n {
		w.dropped++
	}
	w.buf[w.head%n] = v
	w.head++
}

// Len returns the number of values currently held.
func (w *Window[T]) Len() int {
	if w.head < uint64(len(w.buf)) {
		return int(w.head)
	}
	return len(w.buf)
}

// Cap returns the window capacity.
func (w *Window[T]) Cap() int {
	return len(w.buf)
}

// Pushed returns the total number of values ever pushed.
func (w *Window[T]) Pushed() uint64 {
	return w.head
}

// Dropped returns the number of values evicted so far.
func (w *Window[T]) Dropped() uint64 {
	return w.dropped
}

// At returns the i-th held value, oldest first. It panics when i is out of
// range, like a slice index.
func (w *Window[T]) At(i int) T {
	n := w.Len()
	if i < 0 || i >= n {
		panic("ringbuf: index out of range")
	}
	start := w.head - uint64(n)
	return w.buf[(start+uint64(i))%uint64(len(w.buf))]
}

// Last returns the newest value and false when the window is empty.
func (w *Window[T]) Last() (T, bool) {
	if w.head == 0 {
		var zero T
		return zero, false
	}
	return w.At(w.Len() - 1), true
}

// Slice copies the held values into a new slice, oldest first.
func (w *Window[T]) Slice() []T {
	n := w.Len()
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = w.At(i)
	}
	return out
}

// Tail copies the newest k values (or fewer when not available), oldest first.
func (w *Window[T]) Tail(k int) []T {
	n := w.Len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	out := make([]T, k)
	for i := 0; i < k; i++ {
		out[i] = w.At(n - k + i)
	}
	return out
}

// Reset empties the window.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head = 0
	w.dropped = 0
}
