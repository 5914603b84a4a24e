package protocol

import "sync/atomic"

// TXStats mirrors struct tx_statistics from original_source/tx_driver.c,
// exposed through the TX endpoint's GET_STATS ioctl-equivalent.
type TXStats struct {
	TotalPacketsSent     uint32
	TotalBytesSent       uint32
	TotalRetries         uint32
	SuccessfulHandshakes uint32
	FailedHandshakes     uint32
	Timeouts             uint32
	NacksReceived        uint32
}

// txStatsCounters holds the same fields as atomics so the edge-watcher and
// caller goroutines can update them without a separate lock.
type txStatsCounters struct {
	totalPacketsSent     uint32
	totalBytesSent       uint32
	totalRetries         uint32
	successfulHandshakes uint32
	failedHandshakes     uint32
	timeouts             uint32
	nacksReceived        uint32
}

func (c *txStatsCounters) snapshot() TXStats {
	return TXStats{
		TotalPacketsSent:     atomic.LoadUint32(&c.totalPacketsSent),
		TotalBytesSent:       atomic.LoadUint32(&c.totalBytesSent),
		TotalRetries:         atomic.LoadUint32(&c.totalRetries),
		SuccessfulHandshakes: atomic.LoadUint32(&c.successfulHandshakes),
		FailedHandshakes:     atomic.LoadUint32(&c.failedHandshakes),
		Timeouts:             atomic.LoadUint32(&c.timeouts),
		NacksReceived:        atomic.LoadUint32(&c.nacksReceived),
	}
}

func (c *txStatsCounters) reset() {
	atomic.StoreUint32(&c.totalPacketsSent, 0)
	atomic.StoreUint32(&c.totalBytesSent, 0)
	atomic.StoreUint32(&c.totalRetries, 0)
	atomic.StoreUint32(&c.successfulHandshakes, 0)
	atomic.StoreUint32(&c.failedHandshakes, 0)
	atomic.StoreUint32(&c.timeouts, 0)
	atomic.StoreUint32(&c.nacksReceived, 0)
}

// TXStatus mirrors struct tx_status_info: the GET_STATUS ioctl-equivalent.
type TXStatus struct {
	TransmissionActive bool
	HandshakeComplete  bool
	ErrorState         bool
	LastSeqSent        uint8
	RetryCount         int
}
