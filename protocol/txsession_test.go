package protocol

import (
	"errors"
	"testing"
	"time"
)

// fakeTXLines is a scripted TXLines: each WaitAck call consumes the next
// scripted response (or times out if the script is exhausted).
type fakeTXLines struct {
	sentBytes  []byte
	ackScript  []bool
	ackCalls   int
	closeCalls int
}

func (f *fakeTXLines) SendByte(b byte) error {
	f.sentBytes = append(f.sentBytes, b)
	return nil
}

func (f *fakeTXLines) WaitAck(timeout time.Duration) (bool, error) {
	if f.ackCalls >= len(f.ackScript) {
		return false, errors.New("fakeTXLines: ack wait timed out")
	}
	ok := f.ackScript[f.ackCalls]
	f.ackCalls++
	return ok, nil
}

func (f *fakeTXLines) Close() error {
	f.closeCalls++
	return nil
}

func fastTestTiming() TimingTable {
	timing := DefaultTiming()
	timing.HandshakeBackoff = time.Millisecond
	timing.BackoffBase = time.Millisecond
	timing.BackoffStep = time.Millisecond
	return timing
}

func TestTXSessionHandshakeSucceedsFirstTry(t *testing.T) {
	lines := &fakeTXLines{ackScript: []bool{true}}
	s := NewTXSession(lines, fastTestTiming(), nil)

	if err := s.Handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if len(lines.sentBytes) != 1 || lines.sentBytes[0] != SyncByte {
		t.Errorf("expected a single SYN byte sent, got %v", lines.sentBytes)
	}
}

func TestTXSessionHandshakeRetriesOnNack(t *testing.T) {
	lines := &fakeTXLines{ackScript: []bool{false, false, true}}
	timing := fastTestTiming()
	timing.HandshakeAttempts = 5
	s := NewTXSession(lines, timing, nil)

	if err := s.Handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if len(lines.sentBytes) != 3 {
		t.Errorf("expected 3 SYN attempts, got %d", len(lines.sentBytes))
	}
}

func TestTXSessionHandshakeExhaustsToConnRefused(t *testing.T) {
	lines := &fakeTXLines{ackScript: []bool{false, false}}
	timing := fastTestTiming()
	timing.HandshakeAttempts = 2
	s := NewTXSession(lines, timing, nil)

	err := s.Handshake()
	if !errors.Is(err, ErrConnRefused) {
		t.Fatalf("expected ErrConnRefused, got %v", err)
	}
}

func TestTXSessionHandshakeExhaustsToHostUnreachable(t *testing.T) {
	lines := &fakeTXLines{ackScript: nil} // every WaitAck times out
	timing := fastTestTiming()
	timing.HandshakeAttempts = 2
	s := NewTXSession(lines, timing, nil)

	err := s.Handshake()
	if !errors.Is(err, ErrHostUnreachable) {
		t.Fatalf("expected ErrHostUnreachable, got %v", err)
	}
}

func TestTXSessionWriteChunksAndRetries(t *testing.T) {
	// handshake ack, then packet 1 nack+ack, packet 2 ack.
	lines := &fakeTXLines{ackScript: []bool{true, false, true, true}}
	s := NewTXSession(lines, fastTestTiming(), nil)

	data := make([]byte, 40)
	for i := range data {
		data[i] = 0xAA
	}

	n, err := s.Write(data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 40 {
		t.Errorf("expected 40 bytes written, got %d", n)
	}
	stats := s.Stats()
	if stats.TotalRetries != 1 {
		t.Errorf("expected exactly 1 retry, got %d", stats.TotalRetries)
	}
	if stats.TotalPacketsSent != 2 {
		t.Errorf("expected 2 packets sent, got %d", stats.TotalPacketsSent)
	}
}

func TestTXSessionWritePartialSuccessOnFailure(t *testing.T) {
	timing := fastTestTiming()
	timing.RetryLimit = 1
	// handshake ack, packet 1 ack, packet 2 never acked (exhausts retries).
	lines := &fakeTXLines{ackScript: []bool{true, true}}
	s := NewTXSession(lines, timing, nil)

	data := make([]byte, 40)
	n, err := s.Write(data)
	if err != nil {
		t.Fatalf("expected partial success without error, got %v", err)
	}
	if n != 31 {
		t.Errorf("expected partial write of 31 bytes (first packet only), got %d", n)
	}
}

func TestTXSessionFailureTriggersFreshHandshakeOnNextWrite(t *testing.T) {
	// Per spec.md §4.4 ("the next write triggers a fresh handshake"), an
	// unrecoverable packet failure must clear handshakeComplete, not just
	// errorState, so a subsequent Write re-handshakes instead of assuming
	// the stale session is still good.
	timing := fastTestTiming()
	timing.RetryLimit = 1
	lines := &fakeTXLines{ackScript: []bool{true, false}}
	s := NewTXSession(lines, timing, nil)

	if _, err := s.Write([]byte("x")); err == nil {
		t.Fatalf("expected first write to fail after exhausting its single attempt")
	}
	if s.handshakeComplete {
		t.Fatalf("expected handshakeComplete to be cleared after an unrecoverable packet failure")
	}

	lines.ackScript = append(lines.ackScript, true, true)
	n, err := s.Write([]byte("y"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n != 1 {
		t.Errorf("expected second write to succeed with 1 byte, got %d", n)
	}

	if got := s.Stats().SuccessfulHandshakes; got != 2 {
		t.Errorf("expected a fresh handshake on the second write (2 total successful handshakes), got %d", got)
	}
}

func TestTXSessionResetState(t *testing.T) {
	lines := &fakeTXLines{ackScript: []bool{true, true}}
	s := NewTXSession(lines, fastTestTiming(), nil)

	if _, err := s.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.ResetState()
	if s.Status().LastSeqSent != 0 || s.handshakeComplete {
		t.Errorf("expected state cleared after ResetState")
	}
}
