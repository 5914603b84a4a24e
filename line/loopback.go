package line

import (
	"errors"
	"sync"
	"time"

	"epaperlink/protocol"
)

// ErrClosed is returned by loopback operations after Close.
var ErrClosed = errors.New("line: closed")

// LoopbackTX and LoopbackRX form an in-memory paired link with no GPIO and
// no serial port involved, for exercising protocol.TXSession/RXState in
// tests at full speed. Closing either side unblocks the other.
type LoopbackTX struct {
	ticks   chan<- uint8
	acks    <-chan bool
	closeMu sync.Mutex
	closed  bool
	close   func()
}

type LoopbackRX struct {
	ticks   <-chan uint8
	acks    chan bool
	closeMu sync.Mutex
	closed  bool
	close   func()
}

// NewLoopbackPair creates a connected TX/RX pair. tickBuffer sizes the
// channel between them; 0 gives fully synchronous (unbuffered) delivery,
// matching the hand-clocked line's inherently synchronous nature.
func NewLoopbackPair(tickBuffer int) (*LoopbackTX, *LoopbackRX) {
	ticks := make(chan uint8, tickBuffer)
	acks := make(chan bool, 1)
	done := make(chan struct{})

	var once sync.Once
	closeFn := func() {
		once.Do(func() { close(done) })
	}

	tx := &LoopbackTX{ticks: ticks, acks: acks, close: closeFn}
	rx := &LoopbackRX{ticks: ticks, acks: acks, close: closeFn}

	go func() {
		<-done
		close(ticks)
	}()

	return tx, rx
}

func (t *LoopbackTX) SendByte(b byte) error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return ErrClosed
	}
	t.closeMu.Unlock()

	for _, tick := range protocol.TickEncode(b) {
		select {
		case t.ticks <- tick:
		case <-time.After(time.Second):
			return errors.New("line: loopback send timed out, is the RX side reading?")
		}
	}
	return nil
}

func (t *LoopbackTX) WaitAck(timeout time.Duration) (bool, error) {
	select {
	case ok := <-t.acks:
		return ok, nil
	case <-time.After(timeout):
		return false, errors.New("line: ack wait timed out")
	}
}

func (t *LoopbackTX) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.close()
	return nil
}

func (r *LoopbackRX) Ticks() <-chan uint8 {
	return r.ticks
}

func (r *LoopbackRX) SendAck(success bool) error {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return ErrClosed
	}
	r.closeMu.Unlock()

	select {
	case r.acks <- success:
	default:
		select {
		case <-r.acks:
		default:
		}
		r.acks <- success
	}
	return nil
}

func (r *LoopbackRX) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.close()
	return nil
}
