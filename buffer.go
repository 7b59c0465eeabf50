package mayus

// bytePool implements a leaky pool of []byte in the form of a bounded channel
type bytePool struct {
	c    chan []byte
	size int
}

// newBytePool creates a new bytePool bounded to the given maxSize, with new
// byte arrays sized based on width.
func newBytePool(maxSize int, size int) *bytePool {
	return &bytePool{
		c:    make(chan []byte, maxSize),
		size: size,
	}
}

// Get gets a []byte from the bytePool, or creates a new one if none are available in the pool.
func (bp *bytePool) Get() (b []byte) {
	select {
	case b = <-bp.c:
	// reuse existing buffer
	default:
		// create new buffer
		b = make([]byte, bp.size)
	}
	return
}

// Put returns the given Buffer to the bytePool.
func (bp *bytePool) Put(b []byte) {
	if cap(b) < bp.size {
		return
	}
	select {
	case bp.c <- b[:bp.size]:
		// buffer went back into pool
	default:
		// buffer didn't go back into pool, just discard
	}
}
