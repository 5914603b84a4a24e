package imaging

import "image"

// Resize performs a nearest-neighbor resize to targetW x targetH, matching
// original_source/apis/send_epaper_data.c's resize_image. No third-party
// image-resize library appears in the retrieved corpus, so this is
// hand-rolled against the standard library's image.Image interface rather
// than reaching for an out-of-corpus dependency.
func Resize(img image.Image, targetW, targetH int) *image.Gray {
	srcBounds := img.Bounds()
	srcW, srcH := srcBounds.Dx(), srcBounds.Dy()

	dst := image.NewGray(image.Rect(0, 0, targetW, targetH))
	xRatio := float64(srcW) / float64(targetW)
	yRatio := float64(srcH) / float64(targetH)

	gray := toGray(img)

	for y := 0; y < targetH; y++ {
		srcY := int(float64(y) * yRatio)
		if srcY >= srcH {
			srcY = srcH - 1
		}
		for x := 0; x < targetW; x++ {
			srcX := int(float64(x) * xRatio)
			if srcX >= srcW {
				srcX = srcW - 1
			}
			dst.SetGray(x, y, gray.GrayAt(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY))
		}
	}
	return dst
}
