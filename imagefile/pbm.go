// Package imagefile writes received bitmaps to disk in the two formats
// original_source/apis/receive_epaper_data.c supports: raw P4 PBM and a
// raw big-endian-header dump.
package imagefile

import (
	"fmt"
	"io"
)

// WritePBM emits the P4 raw-PBM format: magic, a fixed comment line, the
// "%u %u\n" dimension line, then the bitmap bytes verbatim — byte-for-byte
// matching original_source/apis/receive_epaper_data.c's
// epaper_save_image_pbm.
func WritePBM(w io.Writer, width, height uint32, bitmap []byte) error {
	if _, err := io.WriteString(w, "P4\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "# Generated by epaper receive API\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d %d\n", width, height); err != nil {
		return err
	}
	_, err := w.Write(bitmap)
	return err
}
