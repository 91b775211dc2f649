package serialport

import (
	"errors"
	"testing"

	"go.bug.st/serial"
)

func TestMode(t *testing.T) {
	m := Mode()
	if m.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", m.BaudRate)
	}
	if m.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", m.DataBits)
	}
	if m.Parity != serial.NoParity {
		t.Errorf("Parity = %v, want NoParity", m.Parity)
	}
	if m.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", m.StopBits)
	}
}

func TestErrTimeout(t *testing.T) {
	var te interface{ Timeout() bool }
	if !errors.As(ErrTimeout, &te) || !te.Timeout() {
		t.Error("ErrTimeout does not report Timeout() = true")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open("/dev/does-not-exist-essp", 0); err == nil {
		t.Error("Open() on missing device succeeded")
	}
}
