package imaging

import "image"
import "image/color"

var (
	grayBlack = color.Gray{Y: 0}
	grayWhite = color.Gray{Y: 255}
)

// PackBitmap packs an already-thresholded 8-bit grayscale image (every
// pixel is either grayBlack or grayWhite, as produced by Dither or
// Threshold) into a 1-bpp, MSB-first, row-major bitmap: byte_index =
// (y*width+x)/8, bit_index = 7-((y*width+x)%8), bit set means black,
// matching original_source/send_epaper_data.c's packing.
func PackBitmap(gray *image.Gray) []byte {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	size := (width*height + 7) / 8
	buf := make([]byte, size)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y == 0 {
				pos := y*width + x
				buf[pos/8] |= 1 << uint(7-pos%8)
			}
		}
	}
	return buf
}

// UnpackBitmap is PackBitmap's inverse: it renders a wire bitmap back into a
// black/white grayscale image.
func UnpackBitmap(width, height int, bitmap []byte) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pos := y*width + x
			bit := bitmap[pos/8] & (1 << uint(7-pos%8))
			if bit != 0 {
				out.SetGray(x, y, grayBlack)
			} else {
				out.SetGray(x, y, grayWhite)
			}
		}
	}
	return out
}
