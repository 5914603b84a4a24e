// Command epaper-send converts an image and transmits it over the link.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"epaperlink/device"
	"epaperlink/imaging"
	"epaperlink/line"
	"epaperlink/protocol"
)

func main() {
	var (
		deviceFlag = pflag.StringP("device", "d", "/dev/epaper_tx", "link device path")
		width      = pflag.IntP("width", "w", 0, "target width (used only together with --height; 0 = keep source size)")
		height     = pflag.IntP("height", "h", 0, "target height (used only together with --width; 0 = keep source size)")
		threshold  = pflag.IntP("threshold", "t", 128, "black/white threshold (0..255)")
		dither     = pflag.BoolP("dither", "D", false, "use Floyd-Steinberg dithering")
		invert     = pflag.BoolP("invert", "i", false, "invert black/white")
	)
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: epaper-send [-d device] [-w W] [-h H] [-t 0..255] [-D] [-i] <image>")
		os.Exit(1)
	}
	imagePath := pflag.Arg(0)

	if err := run(*deviceFlag, imagePath, imaging.ConvertOptions{
		TargetWidth:  *width,
		TargetHeight: *height,
		UseDithering: *dither,
		InvertColors: *invert,
		Threshold:    *threshold,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(devicePath, imagePath string, opts imaging.ConvertOptions) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", imagePath, err)
	}
	defer f.Close()

	img, err := imaging.Load(f)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", imagePath, err)
	}

	bounds := img.Bounds()
	targetW, targetH := bounds.Dx(), bounds.Dy()
	if opts.TargetWidth > 0 && opts.TargetHeight > 0 {
		targetW, targetH = opts.TargetWidth, opts.TargetHeight
	}
	fmt.Printf("Image loaded: %dx%d\n", bounds.Dx(), bounds.Dy())

	gray := imaging.Resize(img, targetW, targetH)

	var packed []byte
	if opts.UseDithering {
		packed = imaging.PackBitmap(imaging.Dither(imaging.Grayscale(gray, opts.InvertColors)))
	} else {
		packed = imaging.PackBitmap(imaging.Threshold(imaging.Grayscale(gray, opts.InvertColors), opts.Threshold))
	}

	header := imaging.BuildHeader(uint32(targetW), uint32(targetH))
	fmt.Printf("Converting to 1-bit monochrome (%d bytes)...\n", header.DataLength)

	payload := append(header.Encode(), packed...)

	cfg := line.Config{Device: devicePath, Baud: 250000}
	tx, err := line.OpenSerialTX(cfg)
	if err != nil {
		return fmt.Errorf("failed to open link device %s: %w", devicePath, err)
	}

	endpoint := device.NewTXEndpoint(tx, protocol.DefaultTiming(), nil)
	if err := endpoint.Open(); err != nil {
		return fmt.Errorf("failed to open link: %w", err)
	}
	defer endpoint.Close()

	fmt.Printf("Sending image: %dx%d, %d bytes data\n", targetW, targetH, len(packed))
	fmt.Printf("Total transmission: %d bytes (header + data)\n", len(payload))

	n, err := endpoint.Write(context.Background(), payload)
	if err == nil && n < len(payload) {
		err = fmt.Errorf("receiver acknowledged only part of the payload")
	}
	if err != nil {
		return fmt.Errorf("write failed at byte %d/%d: %w", n, len(payload), err)
	}
	fmt.Println("Successfully sent image")
	return nil
}
