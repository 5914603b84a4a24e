package protocol

import (
	"fmt"
	"log"
	"sync"
)

// TXSession is the transmit-side session engine: handshake, per-packet
// retry/backoff, and multi-packet chunking, grounded on
// original_source/drivers/tx_driver.c's perform_handshake/send_packet/
// tx_write, in the general "write, then block on a bounded wait for the
// acknowledging event" shape.
type TXSession struct {
	mu sync.Mutex

	lines  TXLines
	timing TimingTable
	logger *log.Logger

	seqNum            uint8
	handshakeComplete bool
	errorState        bool
	status            TXStatus
	stats             txStatsCounters
}

// NewTXSession creates a TX session bound to a physical-layer backend.
func NewTXSession(lines TXLines, timing TimingTable, logger *log.Logger) *TXSession {
	if logger == nil {
		logger = log.Default()
	}
	return &TXSession{lines: lines, timing: timing, logger: logger}
}

// Handshake sends the SYN byte and waits for an ACK, retrying up to
// HandshakeAttempts times with HandshakeBackoff between attempts, per
// perform_handshake. The final attempt's outcome picks the error:
// ErrHostUnreachable when it timed out or its SYN could not be sent,
// ErrConnRefused when the receiver NACKed it.
func (s *TXSession) Handshake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handshakeComplete {
		return nil
	}

	var lastErr error = ErrConnRefused
	for attempt := 1; attempt <= s.timing.HandshakeAttempts; attempt++ {
		s.logger.Printf("epaperlink/protocol: handshake attempt %d/%d", attempt, s.timing.HandshakeAttempts)

		if err := s.lines.SendByte(SyncByte); err != nil {
			lastErr = ErrTimeout
			s.logger.Printf("epaperlink/protocol: handshake SYN not sent (attempt %d): %v", attempt, err)
			continue
		}

		ok, err := s.lines.WaitAck(s.timing.HandshakeTimeout)
		switch {
		case err != nil:
			lastErr = ErrTimeout
			s.logger.Printf("epaperlink/protocol: handshake timeout (attempt %d)", attempt)
		case ok:
			s.handshakeComplete = true
			s.status.HandshakeComplete = true
			atomicIncr32(&s.stats.successfulHandshakes)
			s.logger.Printf("epaperlink/protocol: handshake successful")
			return nil
		default:
			lastErr = ErrComm
			s.logger.Printf("epaperlink/protocol: handshake NACK (attempt %d)", attempt)
		}

		if attempt < s.timing.HandshakeAttempts {
			sleep(s.timing.HandshakeBackoff)
		}
	}

	atomicIncr32(&s.stats.failedHandshakes)
	if lastErr == ErrTimeout {
		s.logger.Printf("epaperlink/protocol: handshake failed: receiver not responding after %d attempts", s.timing.HandshakeAttempts)
		return newLinkError(KindHostUnreachable, 0, s.timing.HandshakeAttempts, ErrHostUnreachable)
	}
	s.logger.Printf("epaperlink/protocol: handshake failed: receiver rejected connection after %d attempts", s.timing.HandshakeAttempts)
	return newLinkError(KindConnRefused, 0, s.timing.HandshakeAttempts, ErrConnRefused)
}

// sendPacketLocked sends one packet with the retry/backoff loop from
// send_packet, assuming mu is already held.
func (s *TXSession) sendPacketLocked(p *Packet) error {
	p.CRC32 = PacketCRC(p.SeqNum, p.Data)

	s.status.LastSeqSent = p.SeqNum
	s.status.RetryCount = 0
	s.status.TransmissionActive = true

	var lastErr error
	for retry := 0; retry < s.timing.RetryLimit; retry++ {
		s.logger.Printf("epaperlink/protocol: sending packet seq=%d len=%d crc=0x%08x attempt=%d",
			p.SeqNum, p.DataLen(), p.CRC32, retry+1)

		if err := s.writePacketBytesLocked(p); err != nil {
			lastErr = err
		} else {
			ok, err := s.lines.WaitAck(s.timing.AckWait)
			switch {
			case err != nil:
				lastErr = ErrTimeout
				atomicIncr32(&s.stats.timeouts)
				s.logger.Printf("epaperlink/protocol: timeout on seq %d, retry %d/%d", p.SeqNum, retry+1, s.timing.RetryLimit)
			case ok:
				atomicIncr32(&s.stats.totalPacketsSent)
				s.logger.Printf("epaperlink/protocol: packet %d sent successfully after %d attempts", p.SeqNum, retry+1)
				s.status.TransmissionActive = false
				return nil
			default:
				lastErr = ErrComm
				atomicIncr32(&s.stats.nacksReceived)
				s.logger.Printf("epaperlink/protocol: NACK on seq %d, retry %d/%d", p.SeqNum, retry+1, s.timing.RetryLimit)
			}
		}

		s.status.RetryCount++
		atomicIncr32(&s.stats.totalRetries)

		if retry+1 < s.timing.RetryLimit {
			sleep(s.timing.RetryBackoff(retry + 1))
		}
	}

	s.status.TransmissionActive = false
	s.errorState = true
	s.status.ErrorState = true
	s.handshakeComplete = false
	s.status.HandshakeComplete = false

	if lastErr == ErrTimeout {
		return newLinkError(KindTimeout, p.SeqNum, s.timing.RetryLimit, ErrTimeout)
	}
	return newLinkError(KindComm, p.SeqNum, s.timing.RetryLimit, ErrComm)
}

// writePacketBytesLocked drives seq_num, data_len, payload, and the
// little-endian CRC32 onto the wire one byte at a time, per send_packet,
// pausing InterByteGap between consecutive bytes.
func (s *TXSession) writePacketBytesLocked(p *Packet) error {
	if err := s.lines.SendByte(p.SeqNum); err != nil {
		return err
	}
	sleep(s.timing.InterByteGap)
	if err := s.lines.SendByte(uint8(p.DataLen())); err != nil {
		return err
	}
	for _, b := range p.Data {
		sleep(s.timing.InterByteGap)
		if err := s.lines.SendByte(b); err != nil {
			return err
		}
	}
	crcBytes := [4]byte{
		byte(p.CRC32),
		byte(p.CRC32 >> 8),
		byte(p.CRC32 >> 16),
		byte(p.CRC32 >> 24),
	}
	for _, b := range crcBytes {
		sleep(s.timing.InterByteGap)
		if err := s.lines.SendByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Write chunks data into <=MaxPayload packets and sends each in turn,
// performing a handshake first if one has not yet completed. It mirrors
// tx_write's partial-success behavior: if a packet exhausts its retries
// after earlier packets were acknowledged, Write returns the count of bytes
// from those packets and a nil error; if the first packet fails, Write
// returns 0 and that packet's error.
func (s *TXSession) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.errorState {
		s.errorState = false
		s.status = TXStatus{}
	}
	needsHandshake := !s.handshakeComplete
	s.mu.Unlock()

	if needsHandshake {
		s.logger.Printf("epaperlink/protocol: performing handshake before data transfer")
		if err := s.Handshake(); err != nil {
			return 0, err
		}
	}

	s.logger.Printf("epaperlink/protocol: starting transmission of %d bytes", len(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	sent := 0
	for sent < len(data) {
		chunkSize := len(data) - sent
		if chunkSize > MaxPayload {
			chunkSize = MaxPayload
		}

		p := &Packet{SeqNum: s.seqNum, Data: data[sent : sent+chunkSize]}
		s.seqNum++

		if err := s.sendPacketLocked(p); err != nil {
			s.logger.Printf("epaperlink/protocol: failed to send packet at offset %d: %v", sent, err)
			if sent > 0 {
				return sent, nil
			}
			return 0, err
		}

		sent += chunkSize
	}

	atomicAdd32(&s.stats.totalBytesSent, uint32(len(data)))
	return sent, nil
}

// Status returns a snapshot of the current TX status, the GET_STATUS
// ioctl-equivalent.
func (s *TXSession) Status() TXStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stats returns a snapshot of the TX statistics counters, the GET_STATS
// ioctl-equivalent.
func (s *TXSession) Stats() TXStats {
	return s.stats.snapshot()
}

// ResetStats clears the TX statistics counters, the RESET_STATS
// ioctl-equivalent.
func (s *TXSession) ResetStats() {
	s.stats.reset()
}

// ResetState clears handshake/sequence/error state back to a fresh session,
// the RESET_STATE ioctl-equivalent. It does not close the underlying lines.
func (s *TXSession) ResetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqNum = 0
	s.handshakeComplete = false
	s.errorState = false
	s.status = TXStatus{}
}

// Close waits for a handshake or packet send in progress on this session to
// finish, then releases the underlying physical-layer backend.
func (s *TXSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Close()
}

func (s *TXSession) String() string {
	st := s.Status()
	return fmt.Sprintf("TXSession{handshake=%t active=%t seq=%d retries=%d}",
		st.HandshakeComplete, st.TransmissionActive, st.LastSeqSent, st.RetryCount)
}
