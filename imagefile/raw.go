package imagefile

import (
	"encoding/binary"
	"io"
)

// WriteRaw emits the raw big-endian-header format: network-order width,
// network-order height, then the bitmap bytes verbatim, matching
// original_source/apis/receive_epaper_data.c's epaper_save_image_raw.
func WriteRaw(w io.Writer, width, height uint32, bitmap []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], width)
	binary.BigEndian.PutUint32(header[4:8], height)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(bitmap)
	return err
}
