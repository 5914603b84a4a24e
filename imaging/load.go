package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// Load decodes a PNG or JPEG image from r. No third-party image decoder
// appears anywhere in the retrieved example corpus, so the standard
// library's image/png and image/jpeg (registered via blank import for
// image.Decode's format sniffing) are used directly rather than adding an
// out-of-corpus dependency for a concern nothing in the pack covers.
func Load(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}
