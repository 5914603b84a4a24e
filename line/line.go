// Package line provides physical-layer backends for the bit-serial link: a
// real GPIO chardev backend, a serial-port bridge for bench testing without
// wired GPIO, and an in-memory loopback for unit tests. Each backend
// satisfies protocol.TXLines or protocol.RXLines structurally. protocol
// never imports line, so line importing protocol (for the shared tick
// codec) introduces no cycle.
package line

import "time"

// Config collects the line-level parameters every backend needs: which
// pins/paths to use and what timing to honor. Backends that don't need a
// field (e.g. Loopback ignores PinData/PinClock/PinAck) simply leave it
// unused.
type Config struct {
	// Chip is the gpiocdev chip name (e.g. "gpiochip0").
	Chip string

	// PinData holds the three data-line offsets, PinClock the clock-line
	// offset, and PinAck the shared ACK-line offset.
	PinData  [3]int
	PinClock int
	PinAck   int

	// Device is the serial device path for the serialbridge backend (e.g.
	// "/dev/ttyUSB0").
	Device string
	Baud   int

	// ClockHold, AckPulseAssert, and AckPulseRelease mirror
	// protocol.TimingTable's fields of the same name; duplicated here so a
	// GPIO backend can be configured without constructing a full
	// TimingTable.
	ClockHold       time.Duration
	AckPulseAssert  time.Duration
	AckPulseRelease time.Duration
}
