// Package serialport opens the serial line used by SSP peripherals.
//
// The line settings are fixed by the protocol: 9600 baud, 8 data bits, no
// parity, 2 stop bits, no flow control. Reads block for at most
// ReadTimeout; a read that times out returns an error whose Timeout method
// reports true instead of the silent (0, nil) the driver produces.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/muurk/essp/internal/logging"
	"go.uber.org/zap"
)

// Line settings
const (
	BaudRate    = 9600
	DataBits    = 8
	ReadTimeout = 10 * time.Second
)

// ErrTimeout is returned by Read when no byte arrived within the read timeout.
var ErrTimeout error = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "serial read timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

// Port is an open serial line.
type Port struct {
	path string
	port serial.Port
}

// Mode returns the fixed SSP line mode.
func Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: BaudRate,
		DataBits: DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
}

// Open opens path with the SSP line settings. A zero timeout selects
// ReadTimeout.
func Open(path string, timeout time.Duration) (*Port, error) {
	if timeout <= 0 {
		timeout = ReadTimeout
	}

	port, err := serial.Open(path, Mode())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		logging.Warn("Failed to flush serial input buffer", zap.String("port", path), zap.Error(err))
	}

	logging.Info("Opened serial port",
		zap.String("port", path),
		zap.Int("baud", BaudRate),
		zap.Duration("read_timeout", timeout))

	return &Port{path: path, port: port}, nil
}

// Read reads from the line. A read that returns no data before the timeout
// fails with ErrTimeout.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, err
	}
	if n == 0 && len(b) > 0 {
		return 0, ErrTimeout
	}
	return n, nil
}

// Write writes b to the line.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the line.
func (p *Port) Close() error {
	return p.port.Close()
}

// Path returns the device path the port was opened on.
func (p *Port) Path() string { return p.path }

// List returns the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
