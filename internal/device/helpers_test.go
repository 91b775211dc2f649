package device

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/essp/internal/serialport"
	"github.com/muurk/essp/internal/ssp/sim"
)

// fakeEntropy hands out scripted primes and values.
type fakeEntropy struct {
	mu     sync.Mutex
	primes []uint64
	values []uint64
	err    error
}

var errEntropyExhausted = errors.New("fake entropy exhausted")

func (f *fakeEntropy) Prime(int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if len(f.primes) == 0 {
		return 0, errEntropyExhausted
	}
	p := f.primes[0]
	f.primes = f.primes[1:]
	return p, nil
}

// PrimeBelow ignores limit so tests can script out-of-range answers.
func (f *fakeEntropy) PrimeBelow(uint64) (uint64, error) {
	return f.Prime(primeBits)
}

func (f *fakeEntropy) Uint64() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if len(f.values) == 0 {
		return 0x2545F4914F6CDD1D, nil
	}
	v := f.values[0]
	f.values = f.values[1:]
	return v, nil
}

func testConfig() Config {
	return Config{
		LockTimeout:   500 * time.Millisecond,
		RetryInterval: time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, port interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}, cfg Config, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(port, cfg, opts...)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { s.StopBackgroundPolling() })
	return s
}

func newSimSession(t *testing.T, opts ...sim.Option) (*Session, *sim.Device) {
	t.Helper()
	dev := sim.New(opts...)
	return newTestSession(t, dev, testConfig()), dev
}

// scriptedPort answers every write with the next scripted reply.
type scriptedPort struct {
	mu      sync.Mutex
	replies [][]byte
	out     bytes.Buffer
	writes  int
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if len(p.replies) > 0 {
		p.out.Write(p.replies[0])
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out.Len() == 0 {
		return 0, serialport.ErrTimeout
	}
	return p.out.Read(b)
}

func seqFlag(frame []byte) bool {
	return frame[1]&0x80 != 0
}
