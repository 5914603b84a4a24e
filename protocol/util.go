package protocol

import (
	"sync/atomic"
	"time"
)

func atomicIncr32(p *uint32) {
	atomic.AddUint32(p, 1)
}

func atomicAdd32(p *uint32, delta uint32) {
	atomic.AddUint32(p, delta)
}

// sleep is a thin wrapper over time.Sleep, kept as a named indirection so
// the retry/backoff paths read as a single vocabulary with the rest of the
// session engine rather than reaching into time directly mid-logic.
func sleep(d time.Duration) {
	time.Sleep(d)
}
