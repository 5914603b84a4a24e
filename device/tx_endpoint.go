// Package device reproduces the /dev/epaper_tx and /dev/epaper_rx
// character-device surface as an in-process Go API: exclusive open,
// blocking read/write with context cancellation standing in for -EINTR,
// and ioctl-equivalent methods for status/statistics.
package device

import (
	"context"
	"log"
	"sync"

	"epaperlink/protocol"
)

// TXEndpoint wraps a protocol.TXSession with the exclusive-open semantics
// of /dev/epaper_tx.
type TXEndpoint struct {
	mu      sync.Mutex
	session *protocol.TXSession
	open    bool
}

// NewTXEndpoint creates a TX endpoint bound to a physical-layer backend,
// not yet opened.
func NewTXEndpoint(lines protocol.TXLines, timing protocol.TimingTable, logger *log.Logger) *TXEndpoint {
	return &TXEndpoint{session: protocol.NewTXSession(lines, timing, logger)}
}

// Open acquires exclusive access, mirroring tx_open's mutex_trylock: a
// second Open while the endpoint is already open returns protocol.ErrBusy
// rather than blocking.
func (e *TXEndpoint) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return protocol.ErrBusy
	}
	e.open = true
	e.session.ResetState()
	return nil
}

// Close releases exclusive access and waits for any in-flight write to
// settle before tearing down the physical-layer backend.
func (e *TXEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return nil
	}
	e.open = false
	return e.session.Close()
}

// Write sends data in <=31-byte packets, performing a handshake on first
// use. ctx is checked once, before the write starts; cancelling it later
// does not stop the write, which runs through every packet to completion
// or retry exhaustion.
func (e *TXEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.session.Write(data)
}

// Status is the GET_STATUS ioctl-equivalent.
func (e *TXEndpoint) Status() protocol.TXStatus {
	return e.session.Status()
}

// Stats is the GET_STATS ioctl-equivalent.
func (e *TXEndpoint) Stats() protocol.TXStats {
	return e.session.Stats()
}

// ResetStats is the RESET_STATS ioctl-equivalent.
func (e *TXEndpoint) ResetStats() {
	e.session.ResetStats()
}

// ResetState is the RESET_STATE ioctl-equivalent.
func (e *TXEndpoint) ResetState() {
	e.session.ResetState()
}
