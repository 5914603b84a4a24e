//go:build linux

package line

import (
	"errors"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"epaperlink/protocol"
)

// GPIOTX drives the link over real GPIO lines via the Linux GPIO character
// device, using github.com/warthog618/go-gpiocdev for line request/edge
// handling instead of the raw /sys/class/gpio or direct register access the
// original kernel module used — the chardev API is the supported userspace
// path and needs no custom driver.
type GPIOTX struct {
	data  *gpiocdev.Lines
	clock *gpiocdev.Line
	ack   *gpiocdev.Line

	timing Config

	ackMu     sync.Mutex
	ackRiseAt time.Time

	ackEvents chan bool
	closeOnce sync.Once
}

// NewGPIOTX opens the three data lines, the clock line, and the ack line as
// outputs/input respectively.
func NewGPIOTX(cfg Config) (*GPIOTX, error) {
	data, err := gpiocdev.RequestLines(cfg.Chip, cfg.PinData[:], gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		return nil, err
	}

	clock, err := gpiocdev.RequestLine(cfg.Chip, cfg.PinClock, gpiocdev.AsOutput(0))
	if err != nil {
		data.Close()
		return nil, err
	}

	t := &GPIOTX{data: data, clock: clock, timing: cfg, ackEvents: make(chan bool, 1)}

	ack, err := gpiocdev.RequestLine(cfg.Chip, cfg.PinAck, gpiocdev.AsInput,
		gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(t.handleAckEdge))
	if err != nil {
		clock.Close()
		data.Close()
		return nil, err
	}
	t.ack = ack

	return t, nil
}

// handleAckEdge implements spec §4.5's TX-side rule: "an edge on the ACK
// line wakes the waiter; the waiter reads the line level to decide ACK vs
// NACK." Since the line's only observable signal across a NACK is the
// rising/falling pair RX produces for every pulse (see GPIORX.SendAck), the
// level is reconstructed here from pulse width: a long assert (ACK) versus
// a short one (NACK), split at half of AckPulseAssert.
func (t *GPIOTX) handleAckEdge(evt gpiocdev.LineEvent) {
	if evt.Type == gpiocdev.LineEventRisingEdge {
		t.ackMu.Lock()
		t.ackRiseAt = time.Now()
		t.ackMu.Unlock()
		return
	}
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}

	t.ackMu.Lock()
	rise := t.ackRiseAt
	t.ackRiseAt = time.Time{}
	t.ackMu.Unlock()
	if rise.IsZero() {
		return
	}

	success := time.Since(rise) >= t.timing.AckPulseAssert/2
	t.pushAckEvent(success)
}

func (t *GPIOTX) pushAckEvent(success bool) {
	select {
	case t.ackEvents <- success:
	default:
		select {
		case <-t.ackEvents:
		default:
		}
		t.ackEvents <- success
	}
}

// SendByte drives one byte as three 3-bit ticks, holding each tick for
// timing.ClockHold before pulsing the clock line.
func (t *GPIOTX) SendByte(b byte) error {
	for _, tick := range protocol.TickEncode(b) {
		values := []int{int(tick & 1), int((tick >> 1) & 1), int((tick >> 2) & 1)}
		if err := t.data.SetValues(values); err != nil {
			return err
		}
		time.Sleep(t.timing.ClockHold)

		if err := t.clock.SetValue(1); err != nil {
			return err
		}
		time.Sleep(t.timing.ClockHold)
		if err := t.clock.SetValue(0); err != nil {
			return err
		}
		time.Sleep(t.timing.ClockHold)
	}
	return nil
}

func (t *GPIOTX) WaitAck(timeout time.Duration) (bool, error) {
	select {
	case ok := <-t.ackEvents:
		return ok, nil
	case <-time.After(timeout):
		return false, errors.New("line: gpio ack wait timed out")
	}
}

func (t *GPIOTX) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if e := t.ack.Close(); e != nil {
			err = e
		}
		if e := t.clock.Close(); e != nil {
			err = e
		}
		if e := t.data.Close(); e != nil {
			err = e
		}
	})
	return err
}

// GPIORX consumes clock edges and samples the data lines into a tick
// stream, and drives the ack line for ACK/NACK pulses.
type GPIORX struct {
	data  *gpiocdev.Lines
	clock *gpiocdev.Line
	ack   *gpiocdev.Line

	timing Config

	ticks     chan uint8
	closeOnce sync.Once
}

// NewGPIORX opens the three data lines and clock as inputs and the ack
// line as an output (the RX side drives ack, the TX side drives
// clock/data).
func NewGPIORX(cfg Config) (*GPIORX, error) {
	r := &GPIORX{timing: cfg, ticks: make(chan uint8, 64)}

	data, err := gpiocdev.RequestLines(cfg.Chip, cfg.PinData[:], gpiocdev.AsInput)
	if err != nil {
		return nil, err
	}
	r.data = data

	ack, err := gpiocdev.RequestLine(cfg.Chip, cfg.PinAck, gpiocdev.AsOutput(0))
	if err != nil {
		data.Close()
		return nil, err
	}
	r.ack = ack

	clock, err := gpiocdev.RequestLine(cfg.Chip, cfg.PinClock, gpiocdev.AsInput,
		gpiocdev.WithRisingEdge, gpiocdev.WithEventHandler(r.handleClockEdge),
		gpiocdev.WithDebounce(cfg.ClockHold))
	if err != nil {
		ack.Close()
		data.Close()
		return nil, err
	}
	r.clock = clock

	return r, nil
}

func (r *GPIORX) handleClockEdge(gpiocdev.LineEvent) {
	values := make([]int, 3)
	if err := r.data.Values(values); err != nil {
		return
	}
	d := uint8(values[0]) | uint8(values[1])<<1 | uint8(values[2])<<2
	select {
	case r.ticks <- d:
	default:
	}
}

func (r *GPIORX) Ticks() <-chan uint8 {
	return r.ticks
}

// SendAck pulses the ack line using the level-coded scheme: asserted for
// AckPulseAssert on ACK, a short marker pulse on NACK, then released for
// AckPulseRelease either way. A NACK still rises and falls the line (rather
// than leaving it untouched) so the edge-triggered TX side in handleAckEdge
// always observes a pulse to time and classify.
func (r *GPIORX) SendAck(success bool) error {
	width := r.timing.AckPulseAssert
	if !success {
		width = r.timing.AckPulseAssert / 4
	}

	if err := r.ack.SetValue(1); err != nil {
		return err
	}
	time.Sleep(width)
	if err := r.ack.SetValue(0); err != nil {
		return err
	}
	time.Sleep(r.timing.AckPulseRelease)
	return nil
}

func (r *GPIORX) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if e := r.clock.Close(); e != nil {
			err = e
		}
		if e := r.ack.Close(); e != nil {
			err = e
		}
		if e := r.data.Close(); e != nil {
			err = e
		}
		close(r.ticks)
	})
	return err
}
