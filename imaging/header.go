package imaging

import "encoding/binary"

// HeaderSize is the wire size of an image header: width and height, each a
// big-endian u32.
const HeaderSize = 8

// ImageHeader describes the bitmap that follows it on the wire. DataLength
// and HeaderChecksum are not part of the 8-byte wire header itself (the
// wire header is width+height only) but are carried alongside it for the
// weaker, independent sanity check original_source/send_epaper_data.h's
// image_header_t performs at the image layer — separate from and in
// addition to the link's CRC32.
type ImageHeader struct {
	Width          uint32
	Height         uint32
	DataLength     uint32
	HeaderChecksum uint32
}

// BuildHeader computes a header for a width x height 1-bpp bitmap,
// including the additive header_checksum original_source/send_epaper_data.c
// reserves (there computed by the kernel driver; here computed directly
// since this implementation owns both ends).
func BuildHeader(width, height uint32) ImageHeader {
	dataLen := (width*height + 7) / 8
	return ImageHeader{
		Width:          width,
		Height:         height,
		DataLength:     dataLen,
		HeaderChecksum: width + height + dataLen,
	}
}

// Encode returns the 8-byte big-endian wire header (width, height) sent as
// the first bytes of an RX session.
func (h ImageHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Width)
	binary.BigEndian.PutUint32(buf[4:8], h.Height)
	return buf
}

// DecodeHeader parses the 8-byte wire header and validates width/height
// against the 1..10000 bound.
func DecodeHeader(buf []byte) (ImageHeader, error) {
	if len(buf) < HeaderSize {
		return ImageHeader{}, errShortHeader
	}
	width := binary.BigEndian.Uint32(buf[0:4])
	height := binary.BigEndian.Uint32(buf[4:8])
	if width < 1 || width > 10000 || height < 1 || height > 10000 {
		return ImageHeader{}, errInvalidDimensions
	}
	return BuildHeader(width, height), nil
}
