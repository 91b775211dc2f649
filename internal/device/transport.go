package device

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marusama/semaphore"
	"go.uber.org/atomic"
)

// errLeaseReleased is returned by I/O on a released lease.
var errLeaseReleased = errors.New("transport lease already released")

// transportGuard gives one holder at a time access to the serial line.
type transportGuard struct {
	sem     semaphore.Semaphore
	port    io.ReadWriter
	timeout time.Duration
}

func newTransportGuard(port io.ReadWriter, timeout time.Duration) *transportGuard {
	return &transportGuard{
		sem:     semaphore.New(1),
		port:    port,
		timeout: timeout,
	}
}

// Lease is exclusive access to the serial line. Callers defer Release
// immediately after a successful Acquire.
type Lease struct {
	guard    *transportGuard
	released *atomic.Bool
}

// Acquire waits up to the lock timeout, or until ctx is done, for the line.
func (g *transportGuard) Acquire(ctx context.Context) (*Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, newTimeoutError("acquire transport", "serial port is busy", err)
	}
	return &Lease{guard: g, released: atomic.NewBool(false)}, nil
}

// Release gives the line back. Calling it more than once is harmless.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	if l.released.CompareAndSwap(false, true) {
		l.guard.sem.Release(1)
	}
}

// Read reads from the serial line.
func (l *Lease) Read(p []byte) (int, error) {
	if l.released.Load() {
		return 0, errLeaseReleased
	}
	return l.guard.port.Read(p)
}

// Write writes to the serial line.
func (l *Lease) Write(p []byte) (int, error) {
	if l.released.Load() {
		return 0, errLeaseReleased
	}
	return l.guard.port.Write(p)
}
