package line

import (
	"bufio"
	"fmt"
	"time"

	tarmserial "github.com/tarm/serial"

	hostserial "epaperlink/host/serial"
	"epaperlink/protocol"
)

// SerialTX and SerialRX are a bench-test backend pair: instead of bit-
// banging raw GPIO, each side rides a USB-serial adapter through the
// host/serial.Port abstraction (a native-serial wrapper around
// github.com/tarm/serial), one byte on the wire per tick (three per
// SendByte) and one framing byte per ACK/NACK pulse. This lets the protocol and session-layer
// logic be exercised against real hardware-adjacent latency without
// requiring a three-data-line-plus-clock-plus-ack GPIO harness — useful on
// a bench where only a USB-serial pair is at hand.
type SerialTX struct {
	port   hostserial.Port
	reader *bufio.Reader
}

type SerialRX struct {
	port   hostserial.Port
	reader *bufio.Reader
	ticks  chan uint8
	done   chan struct{}
}

const (
	serialAck  = 0xA5
	serialNack = 0x5A
)

// bridgePort is the bit-serial link's own hostserial.Port implementation: a
// thin wrapper around github.com/tarm/serial.Port, opened with the bridge's
// own timing rather than a Klipper-style MCU baud rate. It replaces a
// separate, teacher-identical native-port file with one adapted directly
// to this backend.
type bridgePort struct {
	conn *tarmserial.Port
}

func openBridgePort(cfg Config) (hostserial.Port, error) {
	conn, err := tarmserial.OpenPort(&tarmserial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	return &bridgePort{conn: conn}, nil
}

func (p *bridgePort) Read(b []byte) (int, error)  { return p.conn.Read(b) }
func (p *bridgePort) Write(b []byte) (int, error) { return p.conn.Write(b) }
func (p *bridgePort) Close() error                { return p.conn.Close() }

// Flush is a no-op: tarm/serial's Port exposes no flush call, same as the
// teacher's native-port wrapper.
func (p *bridgePort) Flush() error { return nil }

// OpenSerialTX opens cfg.Device at cfg.Baud as the TX side of a serial
// bridge pair.
func OpenSerialTX(cfg Config) (*SerialTX, error) {
	port, err := openBridgePort(cfg)
	if err != nil {
		return nil, fmt.Errorf("line: opening serial bridge %s: %w", cfg.Device, err)
	}
	return &SerialTX{port: port, reader: bufio.NewReader(port)}, nil
}

// OpenSerialRX opens cfg.Device at cfg.Baud as the RX side of a serial
// bridge pair, and starts the background reader that turns incoming bytes
// into a tick stream.
func OpenSerialRX(cfg Config) (*SerialRX, error) {
	port, err := openBridgePort(cfg)
	if err != nil {
		return nil, fmt.Errorf("line: opening serial bridge %s: %w", cfg.Device, err)
	}
	r := &SerialRX{
		port:   port,
		reader: bufio.NewReader(port),
		ticks:  make(chan uint8, 64),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

// SendByte writes one byte as three tick bytes (0..7 each), preserving the
// same 3-bit tick framing the GPIO backend uses over wires, just carried as
// whole bytes on a serial link instead of line levels — so the RX side's
// protocol.BitAssembler works identically regardless of which backend fed
// it.
func (t *SerialTX) SendByte(b byte) error {
	for _, tick := range protocol.TickEncode(b) {
		if _, err := t.port.Write([]byte{tick}); err != nil {
			return err
		}
	}
	return nil
}

// WaitAck reads the single ack/nack framing byte the RX side writes after
// accepting or rejecting a packet.
func (t *SerialTX) WaitAck(timeout time.Duration) (bool, error) {
	type result struct {
		b   byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := t.reader.ReadByte()
		done <- result{b, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, r.err
		}
		return r.b == serialAck, nil
	case <-time.After(timeout):
		return false, fmt.Errorf("line: serial ack wait timed out after %v", timeout)
	}
}

func (t *SerialTX) Close() error {
	return t.port.Close()
}

func (r *SerialRX) readLoop() {
	defer close(r.ticks)
	for {
		b, err := r.reader.ReadByte()
		if err != nil {
			return
		}
		select {
		case r.ticks <- b:
		case <-r.done:
			return
		}
	}
}

func (r *SerialRX) Ticks() <-chan uint8 {
	return r.ticks
}

func (r *SerialRX) SendAck(success bool) error {
	b := byte(serialNack)
	if success {
		b = serialAck
	}
	_, err := r.port.Write([]byte{b})
	return err
}

func (r *SerialRX) Close() error {
	close(r.done)
	return r.port.Close()
}
