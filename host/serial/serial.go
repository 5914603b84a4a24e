// Package serial provides the native serial-port backend for the
// epaperlink serial-bridge bench rig: a USB-serial null-modem link standing
// in for the GPIO data/clock/ack lines when two machines aren't sharing a
// header.
package serial

import (
	"io"
)

// Port represents a serial port interface. This abstraction allows for
// different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate for the bridge link
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for the serial-bridge
// backend.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
