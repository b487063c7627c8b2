package generate

// Window is a fixed-length context of raw token indices backed by a ring
// buffer. Push drops the oldest index and appends the newest without
// reallocating, so Len never changes after construction.
type Window struct {
	buf  []int
	head int
}

// NewWindow copies the trailing size indices of seed. It panics if seed is
// shorter than size; callers validate first.
func NewWindow(seed []int, size int) *Window {
	if size <= 0 || len(seed) < size {
		panic("generate: seed shorter than window")
	}
	buf := make([]int, size)
	copy(buf, seed[len(seed)-size:])
	return &Window{buf: buf}
}

func (w *Window) Len() int { return len(w.buf) }

// Push slides the window forward by one token.
func (w *Window) Push(idx int) {
	w.buf[w.head] = idx
	w.head++
	if w.head == len(w.buf) {
		w.head = 0
	}
}

// At returns the i-th index counting from the oldest.
func (w *Window) At(i int) int {
	j := w.head + i
	if j >= len(w.buf) {
		j -= len(w.buf)
	}
	return w.buf[j]
}

// Indices returns the window contents oldest first.
func (w *Window) Indices() []int {
	out := make([]int, len(w.buf))
	n := copy(out, w.buf[w.head:])
	copy(out[n:], w.buf[:w.head])
	return out
}

// Normalize writes index/scale for every position, oldest first, into dst
// and returns it. A non-positive scale yields zeros. dst is grown as needed.
func (w *Window) Normalize(dst []float32, scale float32) []float32 {
	if cap(dst) < len(w.buf) {
		dst = make([]float32, len(w.buf))
	}
	dst = dst[:len(w.buf)]
	for i := range dst {
		if scale > 0 {
			dst[i] = float32(w.At(i)) / scale
		} else {
			dst[i] = 0
		}
	}
	return dst
}
