package protocol

import "time"

// TXLines is the physical-layer surface the TX session engine drives. A
// backend (see package line) turns SendByte into three ticks of the data
// and clock lines and WaitAck into watching for an edge on the shared ACK
// line. None of protocol's logic depends on how a given backend reaches
// the wire — real GPIO, a serial bridge, or an in-memory loopback all
// satisfy this interface identically.
type TXLines interface {
	// SendByte drives one byte onto the wire as three 3-bit ticks,
	// honoring the backend's configured tick hold time.
	SendByte(b byte) error

	// WaitAck blocks until an ACK/NACK pulse edge arrives or timeout
	// elapses. ok reports ACK (true) vs NACK (false); err is non-nil when
	// no ACK/NACK was received: the wait timed out or the backend failed
	// while waiting.
	WaitAck(timeout time.Duration) (ok bool, err error)

	Close() error
}

// RXLines is the physical-layer surface the RX state machine consumes.
type RXLines interface {
	// Ticks streams sampled 3-bit values, one per accepted clock rising
	// edge (the GPIO backend debounces the clock line; the loopback and
	// serial-bridge backends pass every tick through). The channel is
	// closed when the backend is closed.
	Ticks() <-chan uint8

	// SendAck emits one ACK (success=true) or NACK (success=false) pulse
	// on the shared ACK line. Both responses produce a pulse; the GPIO
	// backend asserts the line for the full AckPulseAssert on an ACK and
	// for a quarter of it on a NACK, and the serial bridge sends distinct
	// ACK and NACK bytes.
	SendAck(success bool) error

	Close() error
}
