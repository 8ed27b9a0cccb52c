// Package serial opens host serial devices as uart.Port.
package serial

import (
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/robotalks/uartpipe/pkg/uart"
)

// Config describes a serial device.
type Config struct {
	Name     string `yaml:"name"`
	BaudRate int    `yaml:"baud"`
	DataBits int    `yaml:"data-bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop-bits"`
}

// Open opens the serial device.
func Open(conf Config) (uart.Port, error) {
	mode := &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 115200
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	switch strings.ToLower(conf.Parity) {
	case "", "none", "n":
		mode.Parity = serial.NoParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "mark", "m":
		mode.Parity = serial.MarkParity
	case "space", "s":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", conf.Parity)
	}
	switch conf.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d", conf.StopBits)
	}
	port, err := serial.Open(conf.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Name, err)
	}
	return port, nil
}

// List lists serial devices present on the host.
func List() ([]string, error) {
	return serial.GetPortsList()
}
