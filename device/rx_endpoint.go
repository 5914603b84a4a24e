package device

import (
	"context"
	"log"
	"sync"

	"epaperlink/protocol"
)

// RXEndpoint wraps a protocol.RXState with the exclusive-open semantics of
// /dev/epaper_rx, running the state machine's edge-consumption loop in its
// own goroutine for the endpoint's lifetime (the Go analogue of the
// original's clock-edge interrupt handler).
type RXEndpoint struct {
	mu     sync.Mutex
	state  *protocol.RXState
	lines  protocol.RXLines
	open   bool
	runner sync.WaitGroup
}

// NewRXEndpoint creates an RX endpoint bound to a physical-layer backend,
// not yet opened.
func NewRXEndpoint(lines protocol.RXLines, fifoCapacity int, timing protocol.TimingTable, logger *log.Logger) *RXEndpoint {
	return &RXEndpoint{
		state: protocol.NewRXState(fifoCapacity, timing, logger),
		lines: lines,
	}
}

// Open acquires exclusive access, mirroring rx_open's mutex_trylock, resets
// the state machine, and starts the edge-consumption goroutine.
func (e *RXEndpoint) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return protocol.ErrBusy
	}
	e.open = true
	e.state.Reset()

	e.runner.Add(1)
	go func() {
		defer e.runner.Done()
		e.state.Run(e.lines)
	}()
	return nil
}

// Close releases exclusive access and waits for the edge-consumption
// goroutine to exit (which happens once the backend's Ticks channel
// closes) before returning.
func (e *RXEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return nil
	}
	e.open = false
	err := e.lines.Close()
	e.runner.Wait()
	return err
}

// Read drains up to len(p) bytes already accepted into the FIFO. If the
// FIFO is empty, Read blocks until data arrives or ctx is cancelled,
// returning ctx.Err() in the latter case — the Go analogue of rx_read
// blocking on data_waitqueue and returning -EINTR on signal.
func (e *RXEndpoint) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n := e.state.FIFO().Read(p)
		if n > 0 {
			return n, nil
		}
		select {
		case <-e.state.FIFO().Wake():
			continue
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// TryRead drains up to len(p) bytes without blocking, mirroring an
// O_NONBLOCK read: 0 bytes and no error means "nothing available right
// now."
func (e *RXEndpoint) TryRead(p []byte) int {
	return e.state.FIFO().Read(p)
}

// Ready returns a channel that receives a notification when data is
// appended to the FIFO (at most one notification is pending at a time), the
// Go analogue of rx_poll's POLLIN/EPOLLIN readiness. Read waits on the same
// channel, so a notification taken by one is not seen by the other.
func (e *RXEndpoint) Ready() <-chan struct{} {
	return e.state.FIFO().Wake()
}

// Reset forces the state machine back to IDLE, the 0x1001 RX
// ioctl-equivalent.
func (e *RXEndpoint) Reset() {
	e.state.Reset()
}

// ImageReady reports whether the FIFO currently holds data, the 0x1002 RX
// ioctl-equivalent ("image ready" 1/0).
func (e *RXEndpoint) ImageReady() bool {
	return !e.state.FIFO().IsEmpty()
}

// Stats returns a snapshot of the RX-side counters for diagnostics.
func (e *RXEndpoint) Stats() protocol.RXStatsCounters {
	return e.state.Stats()
}
