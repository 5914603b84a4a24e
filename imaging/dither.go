package imaging

import "image"

// ConvertOptions mirrors original_source/send_epaper_data.h's
// epaper_convert_options_t.
type ConvertOptions struct {
	TargetWidth  int
	TargetHeight int
	UseDithering bool
	InvertColors bool
	Threshold    int // 0..255, default 128
}

// DefaultConvertOptions matches epaper_send_image's NULL-options default:
// no resize, no dithering, no inversion, threshold 128.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{Threshold: 128}
}

// Dither converts an 8-bit grayscale image to 1-bpp using Floyd–Steinberg
// error diffusion, matching original_source/send_epaper_data.c's
// apply_dithering. Pixels not above 127.5 are treated as black (1),
// matching the original's float comparison.
func Dither(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	errs := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			errs[y*w+x] = float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}

	out := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := errs[y*w+x]
			var newPixel float64
			if old > 127.5 {
				newPixel = 255
			}
			errs[y*w+x] = newPixel
			if old > 127.5 {
				out.SetGray(b.Min.X+x, b.Min.Y+y, grayWhite)
			} else {
				out.SetGray(b.Min.X+x, b.Min.Y+y, grayBlack)
			}

			quantErr := old - newPixel
			if x+1 < w {
				errs[y*w+x+1] += quantErr * 7.0 / 16.0
			}
			if y+1 < h {
				if x > 0 {
					errs[(y+1)*w+x-1] += quantErr * 3.0 / 16.0
				}
				errs[(y+1)*w+x] += quantErr * 5.0 / 16.0
				if x+1 < w {
					errs[(y+1)*w+x+1] += quantErr * 1.0 / 16.0
				}
			}
		}
	}
	return out
}

// Threshold converts an 8-bit grayscale image to 1-bpp by simple threshold
// comparison (avg < threshold => black), matching the non-dithered branch
// of original_source/send_epaper_data.c's epaper_send_image_advanced.
func Threshold(gray *image.Gray, threshold int) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if int(gray.GrayAt(x, y).Y) < threshold {
				out.SetGray(x, y, grayBlack)
			} else {
				out.SetGray(x, y, grayWhite)
			}
		}
	}
	return out
}
