// Package protocol implements the bit-serial link protocol shared by the TX
// and RX endpoints: the tick codec, CRC32, packet framing, the RX state
// machine, and the TX session engine.
package protocol

import "time"

// Version identifies the wire format implemented by this package.
const Version = "1.0.0"

// Wire-level constants.
const (
	// SyncByte is the handshake SYN byte sent before any packet traffic.
	SyncByte = 0x16

	// MaxPayload is the largest data_len a packet may carry.
	MaxPayload = 31

	// HeaderSize is seq_num + data_len, in bytes.
	HeaderSize = 2

	// CRCSize is the size of the little-endian trailing CRC32 field.
	CRCSize = 4

	// NoiseSeqThreshold: a byte read in IDLE state greater than this value
	// is treated as line noise rather than a sequence number.
	NoiseSeqThreshold = 250

	// InvalidTickLimit: consecutive tick values outside 0..7 before the
	// codec forces a state reset.
	InvalidTickLimit = 10

	// ClockBurstLimit: clock edges observed within one second before the
	// codec treats the line as bursting and forces a reset.
	ClockBurstLimit = 1000
)

// TimingTable collects every timing-critical duration used by the codec, the
// ACK/NACK signalling, the RX watchdog, and the TX session engine into one
// named table ("configurable timing"). Every duration here is a minimum
// guaranteed hold; a HAL backend may hold longer, never shorter.
type TimingTable struct {
	// ClockHold is the minimum settle/hold time for data and clock line
	// levels during one tick (data settle, clock high, clock low, and the
	// inter-tick gap each use this value).
	ClockHold time.Duration

	// InterByteGap is the minimum pause between two consecutive bytes on
	// the wire, giving the RX side time to flush the previous byte.
	InterByteGap time.Duration

	// AckPulseAssert is how long the ACK line is held asserted for one
	// ACK/NACK pulse.
	AckPulseAssert time.Duration

	// AckPulseRelease is how long the ACK line is held released after a
	// pulse before another pulse may begin.
	AckPulseRelease time.Duration

	// AckDebounce is the TX-side ACK edge debounce interval. No session or
	// backend in this module applies it: ACK edges are not debounced.
	AckDebounce time.Duration

	// ClockDebounce is the RX-side clock edge debounce interval. RXState
	// does not apply it; the GPIO backend debounces the clock line by
	// line.Config.ClockHold, and the other backends do not debounce.
	ClockDebounce time.Duration

	// StateWatchdog is how long the RX state machine may sit in any
	// non-IDLE state before being forced back to IDLE.
	StateWatchdog time.Duration

	// AckWait is how long the TX side waits for an ACK/NACK pulse after
	// sending the final CRC byte of a packet.
	AckWait time.Duration

	// HandshakeTimeout is how long the TX side waits for a SYN-ACK during
	// one handshake attempt.
	HandshakeTimeout time.Duration

	// HandshakeAttempts is the maximum number of SYN attempts before the
	// handshake gives up.
	HandshakeAttempts int

	// HandshakeBackoff is the pause between two handshake attempts.
	HandshakeBackoff time.Duration

	// RetryLimit is the maximum number of transmission attempts of one
	// packet, the first send included, before the TX session gives up and
	// surfaces an error.
	RetryLimit int

	// BackoffBase and BackoffStep define the linear retry backoff:
	// delay(attempt) = BackoffBase + BackoffStep*attempt.
	BackoffBase time.Duration
	BackoffStep time.Duration
}

// DefaultTiming returns the design-point timing values: 5µs tick hold, 2ms
// inter-byte gap, 4-6ms ACK pulse assert / 0.8-1.2ms release, 2ms TX ACK
// debounce, 1ms RX clock debounce, 500ms state watchdog, 300ms ACK wait and
// handshake wait, 5 handshake attempts with an ~80ms backoff, 5 retries
// with a 50+10*attempt ms linear backoff.
func DefaultTiming() TimingTable {
	return TimingTable{
		ClockHold:         5 * time.Microsecond,
		InterByteGap:      2 * time.Millisecond,
		AckPulseAssert:    5 * time.Millisecond,
		AckPulseRelease:   1 * time.Millisecond,
		AckDebounce:       2 * time.Millisecond,
		ClockDebounce:     1 * time.Millisecond,
		StateWatchdog:     500 * time.Millisecond,
		AckWait:           300 * time.Millisecond,
		HandshakeTimeout:  300 * time.Millisecond,
		HandshakeAttempts: 5,
		HandshakeBackoff:  80 * time.Millisecond,
		RetryLimit:        5,
		BackoffBase:       50 * time.Millisecond,
		BackoffStep:       10 * time.Millisecond,
	}
}

// RetryBackoff returns the pause before retry attempt n (1-based), per the
// linear backoff rule.
func (t TimingTable) RetryBackoff(attempt int) time.Duration {
	return t.BackoffBase + t.BackoffStep*time.Duration(attempt)
}

// Packet is the in-memory representation of one on-wire packet.
type Packet struct {
	SeqNum uint8
	Data   []byte
	CRC32  uint32
}

// DataLen returns the wire data_len field for this packet.
func (p *Packet) DataLen() int {
	return len(p.Data)
}
