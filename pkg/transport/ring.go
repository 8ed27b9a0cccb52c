package transport

// Ring is the transmit staging buffer. It's not safe for concurrent use,
// only the holder of StateTransmitting may touch it.
type Ring struct {
	buf []byte
	rd  int
	n   int
}

// NewRing creates a Ring holding up to size bytes.
func NewRing(size int) *Ring {
	return &Ring{buf: make([]byte, size)}
}

// Reset discards all bytes.
func (r *Ring) Reset() {
	r.rd, r.n = 0, 0
}

// Put appends as much of p as fits and returns the count.
func (r *Ring) Put(p []byte) int {
	var put int
	for len(p) > 0 && r.n < len(r.buf) {
		wr := (r.rd + r.n) % len(r.buf)
		end := len(r.buf)
		if wr < r.rd {
			end = r.rd
		}
		c := copy(r.buf[wr:end], p)
		r.n += c
		put += c
		p = p[c:]
	}
	return put
}

// Unput withdraws the last n bytes appended.
func (r *Ring) Unput(n int) {
	if n > r.n {
		n = r.n
	}
	if n > 0 {
		r.n -= n
	}
	if r.n == 0 {
		r.rd = 0
	}
}

// Claim returns the contiguous span of staged bytes starting at the read
// position, at most max bytes if max > 0. The span stays valid until
// Advance.
func (r *Ring) Claim(max int) []byte {
	if r.n == 0 {
		return nil
	}
	end := r.rd + r.n
	if end > len(r.buf) {
		end = len(r.buf)
	}
	if max > 0 && end-r.rd > max {
		end = r.rd + max
	}
	return r.buf[r.rd:end]
}

// Advance frees n bytes from the read position and returns the count
// actually freed.
func (r *Ring) Advance(n int) int {
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return 0
	}
	r.rd = (r.rd + n) % len(r.buf)
	r.n -= n
	if r.n == 0 {
		r.rd = 0
	}
	return n
}

// Len is the number of staged bytes.
func (r *Ring) Len() int {
	return r.n
}

// Space is the number of bytes Put can still accept.
func (r *Ring) Space() int {
	return len(r.buf) - r.n
}

// Cap is the capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
