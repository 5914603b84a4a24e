package protocol_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"epaperlink/device"
	"epaperlink/line"
	"epaperlink/protocol"
)

func fastTiming() protocol.TimingTable {
	timing := protocol.DefaultTiming()
	timing.ClockHold = 0
	timing.InterByteGap = 0
	timing.AckPulseAssert = 0
	timing.AckPulseRelease = 0
	timing.AckDebounce = 0
	timing.ClockDebounce = 0
	timing.StateWatchdog = 2 * time.Second
	timing.AckWait = 500 * time.Millisecond
	timing.HandshakeTimeout = 500 * time.Millisecond
	timing.HandshakeBackoff = time.Millisecond
	timing.BackoffBase = time.Millisecond
	timing.BackoffStep = time.Millisecond
	return timing
}

func newLinkedEndpoints(t *testing.T) (*device.TXEndpoint, *device.RXEndpoint) {
	t.Helper()
	tx, rx := line.NewLoopbackPair(8)
	timing := fastTiming()

	txEndpoint := device.NewTXEndpoint(tx, timing, nil)
	rxEndpoint := device.NewRXEndpoint(rx, 4096, timing, nil)

	if err := txEndpoint.Open(); err != nil {
		t.Fatalf("tx open: %v", err)
	}
	if err := rxEndpoint.Open(); err != nil {
		t.Fatalf("rx open: %v", err)
	}
	t.Cleanup(func() {
		txEndpoint.Close()
		rxEndpoint.Close()
	})
	return txEndpoint, rxEndpoint
}

func drain(t *testing.T, rx *device.RXEndpoint, want int, timeout time.Duration) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := make([]byte, 0, want)
	buf := make([]byte, 256)
	for len(out) < want {
		n, err := rx.Read(ctx, buf)
		if err != nil {
			t.Fatalf("read: %v (got %d/%d bytes)", err, len(out), want)
		}
		out = append(out, buf[:n]...)
	}
	return out
}

// TestRoundTripProperty is testable property 4: for all byte sequences B
// with |B| <= 31*255, sending B from TX and reading it back at RX in the
// absence of induced errors yields exactly B. Sequences are drawn here with
// |B| <= 400.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 400).Draw(rt, "data")
		tx, rx := newLinkedEndpoints(t)

		n, err := tx.Write(context.Background(), data)
		if err != nil {
			rt.Fatalf("write: %v", err)
		}
		if n != len(data) {
			rt.Fatalf("write returned %d, want %d", n, len(data))
		}

		if len(data) == 0 {
			return
		}
		got := drain(t, rx, len(data), 5*time.Second)
		if string(got) != string(data) {
			rt.Fatalf("round-trip mismatch: got %d bytes, want %d", len(got), len(data))
		}
	})
}

// TestExpectedSeqMonotonic is testable property 2/7, checked from the TX
// side: after five packets are delivered in a clean session, TX's last sent
// sequence number is 4 (seq 0..4, one per packet).
func TestExpectedSeqMonotonic(t *testing.T) {
	tx, rx := newLinkedEndpoints(t)

	data := make([]byte, 31*5)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := tx.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	drain(t, rx, len(data), 5*time.Second)

	status := tx.Status()
	if status.LastSeqSent != 4 {
		t.Errorf("expected last seq sent 4 after 5 packets (seq 0..4), got %d", status.LastSeqSent)
	}
}

// TestScenarioS1 is the literal handshake + one short packet scenario.
func TestScenarioS1(t *testing.T) {
	tx, rx := newLinkedEndpoints(t)

	n, err := tx.Write(context.Background(), []byte("AB"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected write to report 2 bytes, got %d", n)
	}

	got := drain(t, rx, 2, 5*time.Second)
	if string(got) != "AB" {
		t.Errorf("expected FIFO to contain \"AB\", got %q", got)
	}
}

// TestScenarioS2 is the two-chunk payload scenario: 40 bytes of 0xAA splits
// into a 31-byte and a 9-byte packet.
func TestScenarioS2(t *testing.T) {
	tx, rx := newLinkedEndpoints(t)

	data := make([]byte, 40)
	for i := range data {
		data[i] = 0xAA
	}

	n, err := tx.Write(context.Background(), data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 40 {
		t.Fatalf("expected write to report 40 bytes, got %d", n)
	}

	got := drain(t, rx, 40, 5*time.Second)
	for i, b := range got {
		if b != 0xAA {
			t.Fatalf("byte %d: got 0x%02x, want 0xAA", i, b)
		}
	}
}

// TestScenarioS4 is the endpoint-level companion of the duplicate-sequence
// scenario: two one-byte payloads are written through the same TX session
// and each is delivered at RX, after which TX's last sent sequence number
// is 1 (one distinct seq_num per write). Literal wire replay of a sequence
// number is covered by the RX state machine unit tests.
func TestScenarioS4SeqAdvancesOncePerAcceptedPacket(t *testing.T) {
	tx, rx := newLinkedEndpoints(t)

	if _, err := tx.Write(context.Background(), []byte("x")); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	drain(t, rx, 1, 5*time.Second)

	if _, err := tx.Write(context.Background(), []byte("y")); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	drain(t, rx, 1, 5*time.Second)

	st := tx.Status()
	if st.LastSeqSent != 1 {
		t.Errorf("expected seq 1 after two accepted packets, got %d", st.LastSeqSent)
	}
}

// TestScenarioS5 is the handshake-failure scenario: with no RX attached,
// the TX's handshake must exhaust its attempts and surface
// ErrHostUnreachable.
func TestScenarioS5HandshakeFailsWithNoReceiver(t *testing.T) {
	tx, _ := line.NewLoopbackPair(0)
	timing := fastTiming()
	timing.HandshakeAttempts = 2
	timing.HandshakeTimeout = 50 * time.Millisecond
	timing.HandshakeBackoff = time.Millisecond

	endpoint := device.NewTXEndpoint(tx, timing, nil)
	if err := endpoint.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer endpoint.Close()

	_, err := endpoint.Write(context.Background(), []byte("x"))
	if !errors.Is(err, protocol.ErrHostUnreachable) {
		t.Fatalf("expected ErrHostUnreachable with no receiver attached, got %v", err)
	}
}
