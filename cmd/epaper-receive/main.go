// Command epaper-receive reads an image off the link and writes it to
// disk.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"epaperlink/device"
	"epaperlink/imaging"
	"epaperlink/imagefile"
	"epaperlink/line"
	"epaperlink/protocol"
)

func main() {
	var (
		deviceFlag = pflag.StringP("device", "d", "/dev/epaper_rx", "link device path")
		output     = pflag.StringP("output", "o", "received_image.pbm", "output file path")
		format     = pflag.StringP("format", "f", "pbm", "output format: raw|pbm")
		timeoutMs  = pflag.IntP("timeout", "t", 30000, "receive timeout in milliseconds")
		verbose    = pflag.BoolP("verbose", "v", false, "verbose progress output")
	)
	pflag.Parse()

	if *format != "raw" && *format != "pbm" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (want raw or pbm)\n", *format)
		os.Exit(1)
	}

	if err := run(*deviceFlag, *output, *format, time.Duration(*timeoutMs)*time.Millisecond, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(devicePath, outputPath, format string, timeout time.Duration, verbose bool) error {
	cfg := line.Config{Device: devicePath, Baud: 250000}
	rx, err := line.OpenSerialRX(cfg)
	if err != nil {
		return fmt.Errorf("failed to open link device %s: %w", devicePath, err)
	}

	endpoint := device.NewRXEndpoint(rx, 4096, protocol.DefaultTiming(), nil)
	if err := endpoint.Open(); err != nil {
		return fmt.Errorf("failed to open link: %w", err)
	}
	defer endpoint.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Println("Waiting for image dimensions...")
	}

	headerBuf := make([]byte, imaging.HeaderSize)
	if err := readExact(ctx, endpoint, headerBuf); err != nil {
		return fmt.Errorf("failed to read image dimensions: %w", err)
	}
	header, err := imaging.DecodeHeader(headerBuf)
	if err != nil {
		return fmt.Errorf("invalid image dimensions: %w", err)
	}

	if verbose {
		fmt.Printf("Receiving image: %dx%d (%d bytes)\n", header.Width, header.Height, header.DataLength)
	}

	bitmap := make([]byte, header.DataLength)
	if err := readExact(ctx, endpoint, bitmap); err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	if verbose {
		fmt.Println("Image received successfully!")
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	if format == "raw" {
		err = imagefile.WriteRaw(out, header.Width, header.Height, bitmap)
	} else {
		err = imagefile.WritePBM(out, header.Width, header.Height, bitmap)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("%s image saved to %s\n", format, outputPath)
	return nil
}

// readExact mirrors original_source/apis/receive_epaper_data.c's
// read_exact: it blocks via endpoint.Read until len(p) bytes have arrived
// or ctx expires.
func readExact(ctx context.Context, endpoint *device.RXEndpoint, p []byte) error {
	total := 0
	for total < len(p) {
		n, err := endpoint.Read(ctx, p[total:])
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unexpected EOF")
			}
			return err
		}
		total += n
	}
	return nil
}
