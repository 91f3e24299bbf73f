package proc

// tailBuffer is an io.Writer that retains only the last max bytes written,
// so arbitrarily chatty tools cannot exhaust memory.
type tailBuffer struct {
	max     int
	buf     []byte
	dropped bool
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1024
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		b.dropped = true
		return n, nil
	}
	if len(b.buf)+n > b.max {
		drop := len(b.buf) + n - b.max
		b.buf = b.buf[:copy(b.buf, b.buf[drop:])]
		b.dropped = true
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// String returns the retained tail, prefixed with a marker when earlier
// output was discarded.
func (b *tailBuffer) String() string {
	if b.dropped {
		return "[... earlier output dropped ...]\n" + string(b.buf)
	}
	return string(b.buf)
}
