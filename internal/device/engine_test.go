package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muurk/essp/internal/ssp"
	"github.com/muurk/essp/internal/ssp/sim"
)

func TestSequenceFlagAlternates(t *testing.T) {
	s, dev := newSimSession(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		before := s.SequenceFlag()
		if _, err := s.Poll(ctx); err != nil {
			t.Fatalf("Poll() #%d error = %v", i, err)
		}
		writes := dev.Writes()
		sent := seqFlag(writes[len(writes)-1])
		if sent != before {
			t.Errorf("poll #%d sent flag %v, want %v", i, sent, before)
		}
		if got := s.SequenceFlag(); got != !sent {
			t.Errorf("SequenceFlag() after poll #%d = %v, want %v", i, got, !sent)
		}
	}
}

func TestWriteRetryTogglesSequenceBit(t *testing.T) {
	s, dev := newSimSession(t)
	dev.FailWrites(2)
	initial := s.SequenceFlag()

	if _, err := s.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	writes := dev.Writes()
	if len(writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(writes))
	}
	want := []bool{initial, !initial, initial}
	for i, w := range writes {
		if got := seqFlag(w); got != want[i] {
			t.Errorf("attempt %d flag = %v, want %v", i+1, got, want[i])
		}
	}
	if got := s.SequenceFlag(); got != !initial {
		t.Errorf("SequenceFlag() = %v, want %v", got, !initial)
	}
}

func TestWriteRetryBoundedByAttempts(t *testing.T) {
	dev := sim.New()
	cfg := testConfig()
	cfg.MaxWriteAttempts = 3
	s := newTestSession(t, dev, cfg)
	dev.FailWrites(5)

	_, err := s.Poll(context.Background())
	if !IsTransport(err) {
		t.Fatalf("Poll() error = %v, want Transport", err)
	}
	if !errors.Is(err, sim.ErrWriteFailed) {
		t.Errorf("error chain does not contain the write failure: %v", err)
	}
	if n := len(dev.Writes()); n != 3 {
		t.Errorf("writes = %d, want 3", n)
	}
}

func TestWriteRetryBoundedByContext(t *testing.T) {
	s, dev := newSimSession(t)
	dev.FailWrites(1 << 20)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Poll(ctx)
	if !IsTimeout(err) {
		t.Fatalf("Poll() error = %v, want Timeout", err)
	}
}

func TestShortFrameIsNotDecodeError(t *testing.T) {
	s, dev := newSimSession(t)
	// SerialNumber replies with LEN=5; deliver the header and three data
	// bytes only.
	dev.TruncateNextResponse(ssp.HeaderSize + 3)

	_, err := s.SerialNumber(context.Background())
	if err == nil {
		t.Fatal("SerialNumber() error = nil, want failure")
	}
	if IsDecode(err) {
		t.Errorf("SerialNumber() error = %v, want Transport or Timeout, not Decode", err)
	}
	if !IsTransport(err) && !IsTimeout(err) {
		t.Errorf("SerialNumber() error = %v, want Transport or Timeout", err)
	}
}

func TestBadStartByteIsFraming(t *testing.T) {
	s, dev := newSimSession(t)
	dev.CorruptNextSTX()

	_, err := s.Poll(context.Background())
	if !IsFraming(err) {
		t.Fatalf("Poll() error = %v, want Framing", err)
	}
	if !errors.Is(err, ssp.ErrInvalidSTX) {
		t.Errorf("error chain does not contain ErrInvalidSTX: %v", err)
	}
}

func TestBadChecksumIsDecode(t *testing.T) {
	frame, err := ssp.EncodeFrame(ssp.NewSequenceID(false, 0), []byte{byte(ssp.StatusOK)})
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	frame[len(frame)-1] ^= 0xFF

	s := newTestSession(t, &scriptedPort{replies: [][]byte{frame}}, testConfig())
	_, err = s.Poll(context.Background())
	if !IsDecode(err) {
		t.Fatalf("Poll() error = %v, want Decode", err)
	}
	if !errors.Is(err, ssp.ErrChecksum) {
		t.Errorf("error chain does not contain ErrChecksum: %v", err)
	}
}

func TestSilentDeviceIsTimeout(t *testing.T) {
	port := &scriptedPort{}
	s := newTestSession(t, port, testConfig())

	_, err := s.Poll(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("Poll() error = %v, want Timeout", err)
	}
	if port.writes != 1 {
		t.Errorf("writes = %d, want 1", port.writes)
	}
}

func TestTransportLockTimeout(t *testing.T) {
	dev := sim.New()
	cfg := testConfig()
	cfg.LockTimeout = 20 * time.Millisecond
	s := newTestSession(t, dev, cfg)

	held, err := s.transport.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	_, err = s.Poll(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("Poll() error = %v, want Timeout", err)
	}
	if n := len(dev.Writes()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestReleasedLeaseRefusesIO(t *testing.T) {
	g := newTransportGuard(sim.New(), time.Second)
	l, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	l.Release()

	if _, err := l.Write([]byte{0x7F}); !errors.Is(err, errLeaseReleased) {
		t.Errorf("Write() error = %v, want %v", err, errLeaseReleased)
	}
	if _, err := l.Read(make([]byte, 1)); !errors.Is(err, errLeaseReleased) {
		t.Errorf("Read() error = %v, want %v", err, errLeaseReleased)
	}
}

func TestOversizedCommandIsFraming(t *testing.T) {
	s, dev := newSimSession(t)
	cmd := ssp.NewCommand(ssp.CmdSetupRequest, make([]byte, ssp.MaxDataLen+1)...)

	_, err := s.roundTrip(context.Background(), cmd)
	if !IsFraming(err) {
		t.Fatalf("roundTrip() error = %v, want Framing", err)
	}
	if n := len(dev.Writes()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}
