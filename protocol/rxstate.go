package protocol

import (
	"log"
	"sync"
	"time"
)

// rxPhase enumerates the RX state machine's states.
type rxPhase int

const (
	rxIdle rxPhase = iota
	rxSeq
	rxLen
	rxData
	rxCRC
)

// RXState is the receive-side state machine: IDLE -> SEQ -> LEN -> DATA ->
// CRC, byte-driven, with a per-state watchdog and a bounded output FIFO.
// Exactly one goroutine (Run's caller) feeds it ticks; the watchdog fires on
// its own goroutine, so state mutation is guarded by mu to protect the RX
// state triplet from concurrent access.
type RXState struct {
	mu sync.Mutex

	phase        rxPhase
	expectedSeq  uint8
	assembler    BitAssembler
	packetSeq    uint8
	packetLen    uint8
	packetData   [MaxPayload]byte
	dataIndex    int
	crc          uint32
	crcByteCount int

	watchdog *time.Timer
	timing   TimingTable

	fifo  *FIFO
	stats RXStatsCounters

	errorDetected bool

	// tickWindowStart/tickWindowCount implement the clock-burst detector
	// (>1000 edges/sec forces a reset), counted here rather than in the
	// line backend because forcing a *state machine* reset is a protocol
	// decision, not a line-level one.
	tickWindowStart time.Time
	tickWindowCount int

	logger *log.Logger
}

// RXStatsCounters are the RX-side diagnostic counters. Unlike TX, there is
// no separate GET_STATS ioctl for RX; they are surfaced through
// RXState.Stats and RXEndpoint.Stats.
type RXStatsCounters struct {
	PacketsAccepted uint32
	PacketsRejected uint32
	CRCMismatches   uint32
	SeqMismatches   uint32
	ForcedResets    uint32
}

// NewRXState creates an RX state machine with the given FIFO capacity and
// timing table.
func NewRXState(fifoCapacity int, timing TimingTable, logger *log.Logger) *RXState {
	if logger == nil {
		logger = log.Default()
	}
	return &RXState{
		fifo:   NewFIFO(fifoCapacity),
		timing: timing,
		logger: logger,
	}
}

// FIFO returns the accepted-payload byte FIFO.
func (s *RXState) FIFO() *FIFO {
	return s.fifo
}

// Stats returns a snapshot of the RX-side counters.
func (s *RXState) Stats() RXStatsCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run consumes ticks from lines until the channel closes, driving the state
// machine and emitting ACK/NACK pulses via lines.SendAck. It is intended to
// run in its own goroutine for the lifetime of an open RX endpoint.
func (s *RXState) Run(lines RXLines) {
	for d := range lines.Ticks() {
		s.feedTick(d, lines)
	}
}

func (s *RXState) feedTick(d uint8, lines RXLines) {
	now := time.Now()

	s.mu.Lock()
	if s.tickWindowStart.IsZero() || now.Sub(s.tickWindowStart) >= time.Second {
		s.tickWindowStart = now
		s.tickWindowCount = 1
	} else {
		s.tickWindowCount++
		if s.tickWindowCount > ClockBurstLimit {
			s.logger.Printf("epaperlink/protocol: clock burst detected (%d/s), resetting", s.tickWindowCount)
			s.resetLocked()
			s.tickWindowStart = time.Time{}
			s.tickWindowCount = 0
			s.mu.Unlock()
			return
		}
	}

	b, ok, needsReset := s.assembler.Feed(d)
	if needsReset {
		s.logger.Printf("epaperlink/protocol: too many consecutive invalid ticks, resetting")
		s.resetLocked()
		s.mu.Unlock()
		return
	}
	if !ok {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.handleByte(b, lines)
}

// handleByte drives one assembled byte through the state machine. It
// acquires mu for the duration of the transition, matching the original's
// spinlock-guarded critical section, but (unlike a hardware spinlock) never
// drops work: Run has exactly one caller, so there is no concurrent second
// writer to race against — the mutex here protects against the watchdog
// goroutine, not against a second tick producer.
func (s *RXState) handleByte(b byte, lines RXLines) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case rxIdle:
		s.handleIdleLocked(b, lines)

	case rxSeq:
		// b is data_len. Always advance to the LEN state; the byte that
		// follows is either the first payload byte or (data_len == 0)
		// the first CRC byte — decided when that byte arrives.
		s.packetLen = b
		s.armWatchdogLocked()
		if b > MaxPayload {
			s.logger.Printf("epaperlink/protocol: invalid data_len %d for seq %d", b, s.packetSeq)
			s.stats.PacketsRejected++
			s.sendAckUnlocked(lines, false)
			s.resetLocked()
			return
		}
		s.dataIndex = 0
		s.phase = rxLen

	case rxLen:
		s.handleFirstPayloadOrCRCByteLocked(b, lines)

	case rxData:
		s.appendDataByteLocked(b, lines)

	case rxCRC:
		s.handleCRCByteLocked(b, lines)
	}
}

func (s *RXState) handleIdleLocked(b byte, lines RXLines) {
	if b == SyncByte {
		s.sendAckUnlocked(lines, true)
		return
	}
	if b > NoiseSeqThreshold {
		return
	}
	s.packetSeq = b
	s.phase = rxSeq
	s.armWatchdogLocked()
}

// handleFirstPayloadOrCRCByteLocked processes the byte received while in the
// LEN state: the first payload byte when data_len > 0, or — when
// data_len == 0 — the first (least-significant) CRC byte. This is the one
// place this implementation diverges from
// original_source/drivers/rx_driver.c, which double-counts that byte and
// silently drops it: the C driver sets crc32 from this byte but leaves
// crc_byte_count at 0, so the very next CRC-state byte overwrites it rather
// than landing in the next position. Always reading exactly 4 CRC bytes
// total, counted across the LEN and CRC states, is the correct behavior.
func (s *RXState) handleFirstPayloadOrCRCByteLocked(b byte, lines RXLines) {
	s.armWatchdogLocked()

	if s.packetLen == 0 {
		s.crc = uint32(b)
		s.crcByteCount = 1
		s.phase = rxCRC
		return
	}

	s.packetData[0] = b
	s.dataIndex = 1
	if s.dataIndex >= int(s.packetLen) {
		s.phase = rxCRC
		s.crcByteCount = 0
	} else {
		s.phase = rxData
	}
}

func (s *RXState) appendDataByteLocked(b byte, lines RXLines) {
	if s.dataIndex >= int(s.packetLen) || s.dataIndex >= MaxPayload {
		s.logger.Printf("epaperlink/protocol: data index overflow, resetting")
		s.resetLocked()
		return
	}
	s.packetData[s.dataIndex] = b
	s.dataIndex++
	s.armWatchdogLocked()

	if s.dataIndex >= int(s.packetLen) {
		s.phase = rxCRC
		s.crcByteCount = 0
	} else {
		s.phase = rxData
	}
}

func (s *RXState) handleCRCByteLocked(b byte, lines RXLines) {
	if s.crcByteCount >= CRCSize {
		s.resetLocked()
		return
	}

	s.crc |= uint32(b) << uint(8*s.crcByteCount)
	s.crcByteCount++

	if s.crcByteCount < CRCSize {
		s.armWatchdogLocked()
		return
	}

	payload := append([]byte(nil), s.packetData[:s.packetLen]...)
	expected := PacketCRC(s.packetSeq, payload)

	if expected != s.crc {
		s.logger.Printf("epaperlink/protocol: CRC mismatch for seq %d", s.packetSeq)
		s.stats.CRCMismatches++
		s.sendAckUnlocked(lines, false)
		s.resetLocked()
		return
	}

	if s.packetSeq != s.expectedSeq {
		s.logger.Printf("epaperlink/protocol: seq mismatch: expected %d, got %d", s.expectedSeq, s.packetSeq)
		s.stats.SeqMismatches++
		s.sendAckUnlocked(lines, false)
		s.resetLocked()
		return
	}

	if !s.fifo.PutAll(payload) {
		s.logger.Printf("epaperlink/protocol: FIFO full, rejecting seq %d", s.packetSeq)
		s.stats.PacketsRejected++
		s.sendAckUnlocked(lines, false)
		s.resetLocked()
		return
	}

	s.expectedSeq++
	s.stats.PacketsAccepted++
	s.sendAckUnlocked(lines, true)
	s.resetLocked()
}

func (s *RXState) sendAckUnlocked(lines RXLines, success bool) {
	if err := lines.SendAck(success); err != nil {
		s.logger.Printf("epaperlink/protocol: failed to send ACK/NACK: %v", err)
	}
}

// armWatchdogLocked (re-)arms the per-state timer; expiry forces a reset to
// IDLE without emitting any signal.
func (s *RXState) armWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdog = time.AfterFunc(s.timing.StateWatchdog, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.phase == rxIdle {
			return
		}
		s.logger.Printf("epaperlink/protocol: state watchdog expired in phase %d, resetting to IDLE", s.phase)
		s.resetLocked()
	})
}

// resetLocked clears current_state, bit_position, byte_accumulator,
// crc_byte_count, and the packet assembly buffer. It does not reset
// expected_seq: sequence continuity survives mid-packet corruption.
func (s *RXState) resetLocked() {
	s.phase = rxIdle
	s.assembler.Reset()
	s.crcByteCount = 0
	s.crc = 0
	s.dataIndex = 0
	s.packetLen = 0
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

// Reset forces the state machine back to IDLE, exactly as resetLocked does,
// and additionally clears the FIFO, for use by the RX device endpoint's
// 0x1001 reset ioctl-equivalent and by device-open — per spec, that ioctl
// resets state "and clears the buffer," unlike the internal resets taken on
// a mid-packet CRC/sequence/length error, which must leave already-accepted
// payloads in the FIFO alone. Two consecutive resets are idempotent
// (testable property 5).
func (s *RXState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.fifo.Reset()
}

// ExpectedSeq returns the next sequence number the state machine will
// accept, for diagnostics and tests.
func (s *RXState) ExpectedSeq() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expectedSeq
}
