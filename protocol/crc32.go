package protocol

import "hash/crc32"

// CRC32 computes the link-layer checksum over seq_num || data_len || data.
//
// This is the reflected CRC-32 with polynomial 0xEDB88320 (IEEE 802.3,
// identical table to the standard library's hash/crc32), but seeded with 0
// and with no final XOR applied — both endpoints must agree on this exact
// variant. crc32.Update inverts the register on entry and on exit (so
// crc32.Update(0, ...) equals crc32.ChecksumIEEE, which seeds with
// 0xFFFFFFFF and XORs the result with 0xFFFFFFFF), so both inversions are
// undone here around each crc32.Update call.
func CRC32(data []byte) uint32 {
	return ^crc32.Update(^uint32(0), crc32.IEEETable, data)
}

// PacketCRC computes the CRC32 a packet must carry: over seq_num, data_len,
// then the payload, in that order.
func PacketCRC(seqNum uint8, data []byte) uint32 {
	crc := ^crc32.Update(^uint32(0), crc32.IEEETable, []byte{seqNum, uint8(len(data))})
	if len(data) > 0 {
		crc = ^crc32.Update(^crc, crc32.IEEETable, data)
	}
	return crc
}
