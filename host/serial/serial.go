// Package serial opens the serial port the motor controller board is
// attached to.
package serial

import (
	"io"
	"time"
)

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config describes the port.
type Config struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// ReadTimeout bounds each Read so the link's reader can notice Close.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultConfig returns settings for the motor controller's USB CDC port.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}
