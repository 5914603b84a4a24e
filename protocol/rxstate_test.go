package protocol

import (
	"testing"
	"time"
)

// fakeRXLines is a minimal RXLines a test can drive tick-by-tick, recording
// every ACK/NACK the state machine emits.
type fakeRXLines struct {
	ticks chan uint8
	acks  []bool
}

func newFakeRXLines() *fakeRXLines {
	return &fakeRXLines{ticks: make(chan uint8, 256)}
}

func (f *fakeRXLines) Ticks() <-chan uint8 { return f.ticks }
func (f *fakeRXLines) SendAck(success bool) error {
	f.acks = append(f.acks, success)
	return nil
}
func (f *fakeRXLines) Close() error { close(f.ticks); return nil }

func feedBytes(f *fakeRXLines, bs ...byte) {
	for _, b := range bs {
		for _, tick := range TickEncode(b) {
			f.ticks <- tick
		}
	}
}

func testTiming() TimingTable {
	t := DefaultTiming()
	t.StateWatchdog = 2 * time.Second
	return t
}

func packetBytes(seq, dataLen byte, data []byte) []byte {
	crc := PacketCRC(seq, data)
	out := []byte{seq, dataLen}
	out = append(out, data...)
	out = append(out, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	return out
}

func TestRXStateAcceptsValidPacket(t *testing.T) {
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	feedBytes(lines, packetBytes(0, 2, []byte("AB"))...)
	lines.Close()
	<-done

	buf := make([]byte, 2)
	n := s.FIFO().Read(buf)
	if n != 2 || string(buf) != "AB" {
		t.Fatalf("got %q (%d bytes), want \"AB\"", buf[:n], n)
	}
	if s.ExpectedSeq() != 1 {
		t.Errorf("expected seq to advance to 1, got %d", s.ExpectedSeq())
	}
	if len(lines.acks) != 1 || !lines.acks[0] {
		t.Errorf("expected exactly one ACK, got %v", lines.acks)
	}
}

func TestRXStateZeroLengthPayload(t *testing.T) {
	// Regression test for the zero-length-payload CRC handling bug present
	// in the original driver: this implementation must consume exactly 4
	// CRC bytes total (none lost to double-counting) and accept the packet.
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	feedBytes(lines, packetBytes(0, 0, nil)...)
	lines.Close()
	<-done

	if s.ExpectedSeq() != 1 {
		t.Errorf("expected seq to advance to 1 for an accepted zero-length packet, got %d", s.ExpectedSeq())
	}
	if len(lines.acks) != 1 || !lines.acks[0] {
		t.Errorf("expected exactly one ACK for the zero-length packet, got %v", lines.acks)
	}
}

// TestScenarioS3CRCCorruptionNacksAndDiscardsRetry is testable scenario S3:
// a corrupted CRC produces a NACK and no FIFO output, and a subsequent
// clean retransmission of the same packet is accepted.
func TestScenarioS3CRCCorruptionNacksAndDiscardsRetry(t *testing.T) {
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	corrupted := packetBytes(0, 2, []byte("AB"))
	corrupted[len(corrupted)-1] ^= 0xFF // flip a bit in the CRC's top byte
	feedBytes(lines, corrupted...)

	clean := packetBytes(0, 2, []byte("AB"))
	feedBytes(lines, clean...)
	lines.Close()
	<-done

	buf := make([]byte, 16)
	n := s.FIFO().Read(buf)
	if n != 2 || string(buf[:n]) != "AB" {
		t.Fatalf("expected FIFO to contain \"AB\" exactly once, got %q", buf[:n])
	}
	if len(lines.acks) != 2 || lines.acks[0] || !lines.acks[1] {
		t.Fatalf("expected NACK then ACK, got %v", lines.acks)
	}
}

// TestScenarioS4DuplicateSequenceRejected is testable scenario S4: replaying
// seq=0 after it has already been accepted must be NACKed and must not
// duplicate FIFO output, while expected_seq stays at 1.
func TestScenarioS4DuplicateSequenceRejected(t *testing.T) {
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	pkt := packetBytes(0, 2, []byte("AB"))
	feedBytes(lines, pkt...)
	feedBytes(lines, pkt...)
	lines.Close()
	<-done

	buf := make([]byte, 16)
	n := s.FIFO().Read(buf)
	if n != 2 || string(buf[:n]) != "AB" {
		t.Fatalf("expected FIFO to contain \"AB\" exactly once, got %q", buf[:n])
	}
	if s.ExpectedSeq() != 1 {
		t.Errorf("expected seq to remain at 1 after a rejected duplicate, got %d", s.ExpectedSeq())
	}
	if len(lines.acks) != 2 || !lines.acks[0] || lines.acks[1] {
		t.Fatalf("expected ACK then NACK, got %v", lines.acks)
	}
}

func TestRXStateResetClearsFIFO(t *testing.T) {
	// Per spec.md §4.6/§6, the 0x1001 RX ioctl-equivalent resets state "and
	// clears the buffer" -- unlike the internal resets taken on a mid-packet
	// CRC/sequence/length error, which must leave already-accepted payloads
	// alone.
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	feedBytes(lines, packetBytes(0, 2, []byte("AB"))...)
	lines.Close()
	<-done

	if s.FIFO().IsEmpty() {
		t.Fatalf("expected FIFO to hold the accepted payload before Reset")
	}

	s.Reset()

	if !s.FIFO().IsEmpty() {
		t.Errorf("expected Reset to clear the FIFO, but it still holds data")
	}
}

func TestRXStateResetIdempotent(t *testing.T) {
	s := NewRXState(64, testTiming(), nil)
	s.Reset()
	s.Reset()
	if s.phase != rxIdle {
		t.Errorf("expected phase IDLE after two resets, got %v", s.phase)
	}
}

func TestRXStateInvalidLengthRejected(t *testing.T) {
	lines := newFakeRXLines()
	s := NewRXState(64, testTiming(), nil)

	done := make(chan struct{})
	go func() { s.Run(lines); close(done) }()

	feedBytes(lines, 0, 200) // seq=0, data_len=200 > MaxPayload
	lines.Close()
	<-done

	if len(lines.acks) != 1 || lines.acks[0] {
		t.Fatalf("expected a NACK for an over-long data_len, got %v", lines.acks)
	}
	stats := s.Stats()
	if stats.PacketsRejected != 1 {
		t.Errorf("expected PacketsRejected=1, got %d", stats.PacketsRejected)
	}
}
