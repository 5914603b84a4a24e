package protocol

import "sync"

// FIFO is a bounded, mutex-protected single-producer/single-consumer byte
// ring buffer holding accepted packet payloads in arrival order. It plays
// the role of the kernel kfifo in the original driver (recommended capacity
// >= 1024), adapted here to Go's concurrency model: the edge-watcher
// goroutine is the sole producer, Read callers are the sole consumers, and
// a small mutex plus a buffered wake channel substitute for the lock-free
// SPSC primitive and wait-queue of the original — the standard library has
// no lock-free ring buffer, so a mutex-guarded one is the idiomatic
// substitute.
type FIFO struct {
	mu    sync.Mutex
	buf   []byte
	read  int
	write int
	size  int

	wake chan struct{}
}

// NewFIFO creates a FIFO with the given capacity (one slot is always left
// empty to distinguish full from empty).
func NewFIFO(capacity int) *FIFO {
	return &FIFO{
		buf:  make([]byte, capacity+1),
		size: capacity + 1,
		wake: make(chan struct{}, 1),
	}
}

// Avail returns the number of free bytes available for writing.
func (f *FIFO) Avail() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail()
}

func (f *FIFO) avail() int {
	return f.size - f.available() - 1
}

func (f *FIFO) available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// PutAll appends data atomically: either every byte is stored, or (if there
// is insufficient space) nothing is stored and ok is false. This enforces
// "only a fully-stored payload counts" at the buffer level — callers never
// observe a partial write landing in the FIFO.
func (f *FIFO) PutAll(data []byte) (ok bool) {
	f.mu.Lock()
	if f.avail() < len(data) {
		f.mu.Unlock()
		return false
	}
	for _, b := range data {
		f.buf[f.write] = b
		f.write = (f.write + 1) % f.size
	}
	f.mu.Unlock()

	if len(data) > 0 {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
	return true
}

// Read drains up to len(p) bytes into p, returning the number read. It
// never blocks; callers needing to wait for data use Wake().
func (f *FIFO) Read(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for n < len(p) && f.read != f.write {
		p[n] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		n++
	}
	return n
}

// IsEmpty reports whether the FIFO currently holds no data.
func (f *FIFO) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read == f.write
}

// Wake returns the channel that receives a notification whenever data is
// appended to the FIFO — the Go-idiomatic analogue of the original's
// wait_event/wake_up pair and of poll() readiness.
func (f *FIFO) Wake() <-chan struct{} {
	return f.wake
}

// Reset clears the FIFO. Two consecutive resets are idempotent (testable
// property 5).
func (f *FIFO) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = 0
	f.write = 0
}
