package imaging

import (
	"image"
	"image/color"
)

// toGray converts img to 8-bit luma using the same 0.299/0.587/0.114
// weights as original_source/send_epaper_data.c's rgb_to_gray. image/color
// already implements this via color.GrayModel, so Grayscale reduces to a
// straightforward stdlib conversion rather than hand-rolled pixel math.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// Grayscale converts img to 8-bit luma, optionally inverting it, matching
// the invert_colors option in original_source/send_epaper_data.h's
// epaper_convert_options_t.
func Grayscale(img image.Image, invert bool) *image.Gray {
	gray := toGray(img)
	if !invert {
		return gray
	}
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := gray.GrayAt(x, y).Y
			out.SetGray(x, y, color.Gray{Y: 255 - v})
		}
	}
	return out
}
