package device

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/serialport"
	"github.com/muurk/essp/internal/ssp"
)

const (
	// DefaultLockTimeout bounds waits for the serial line and the key.
	DefaultLockTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single serial read.
	DefaultReadTimeout = serialport.ReadTimeout

	// MinPollInterval is the protocol's minimum gap between polls. It is
	// also the wait between write retries.
	MinPollInterval = 200 * time.Millisecond
)

// Config holds session settings.
type Config struct {
	// Path is the serial device (e.g. "/dev/ttyUSB0"). Only used by Open.
	Path string

	// LockTimeout bounds waits for the serial line and the key material.
	LockTimeout time.Duration

	// ReadTimeout bounds a single serial read. Only used by Open.
	ReadTimeout time.Duration

	// RetryInterval is the wait between failed writes.
	RetryInterval time.Duration

	// MaxWriteAttempts caps write attempts per command (0 = until the
	// caller's context is done).
	MaxWriteAttempts int

	// PollInterval is the background poller cadence.
	PollInterval time.Duration

	// SlaveID is the device address on the bus.
	SlaveID byte

	// FixedKey seeds the upper half of the AES key (0 = protocol default).
	FixedKey ssp.FixedKey
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:   DefaultLockTimeout,
		ReadTimeout:   DefaultReadTimeout,
		RetryInterval: MinPollInterval,
		PollInterval:  MinPollInterval,
		FixedKey:      ssp.DefaultFixedKey,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.FixedKey == 0 {
		c.FixedKey = d.FixedKey
	}
	return c
}

// Session owns one serial connection to an SSP peripheral.
//
// A Session is safe for concurrent use: foreground operations and the
// background poller share the line and the key through bounded-wait locks,
// always taken in the order line then key.
type Session struct {
	cfg       Config
	port      io.ReadWriter
	transport *transportGuard
	keys      *keyStore
	engine    *engine
	poller    *poller
}

// Option configures a Session.
type Option func(*options)

type options struct {
	entropy Entropy
}

// WithEntropy replaces the key material source.
func WithEntropy(e Entropy) Option {
	return func(o *options) { o.entropy = e }
}

// Open opens cfg.Path with the fixed SSP line settings and starts a session
// on it.
func Open(cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.withDefaults()
	port, err := serialport.Open(cfg.Path, cfg.ReadTimeout)
	if err != nil {
		return nil, newTransportError("open", "failed to open serial port", err)
	}
	s, err := NewSession(port, cfg, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// NewSession starts a session on an already open transport. Initial key
// material is drawn immediately; no key is active until a key exchange.
func NewSession(port io.ReadWriter, cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.withDefaults()
	o := options{entropy: CryptoEntropy{}}
	for _, opt := range opts {
		opt(&o)
	}

	keys, err := newKeyStore(o.entropy, cfg.FixedKey, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		port:      port,
		transport: newTransportGuard(port, cfg.LockTimeout),
		keys:      keys,
		engine:    newEngine(cfg.SlaveID, cfg.RetryInterval, cfg.MaxWriteAttempts),
	}
	s.poller = newPoller(s, cfg.PollInterval)

	logging.Debug("Session created",
		zap.String("port", cfg.Path),
		zap.Duration("lock_timeout", cfg.LockTimeout),
		zap.Duration("poll_interval", cfg.PollInterval))
	return s, nil
}

// Close stops the poller and closes the transport if it is closable.
func (s *Session) Close() error {
	s.StopBackgroundPolling()
	if c, ok := s.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Config returns the effective session configuration.
func (s *Session) Config() Config { return s.cfg }

// SequenceFlag returns the sequence bit the next command will carry.
func (s *Session) SequenceFlag() bool { return s.engine.flag.Load() }

// EncryptionKey returns a copy of the active key, or nil before a key
// exchange.
func (s *Session) EncryptionKey(ctx context.Context) (*ssp.AesKey, error) {
	return s.keys.CurrentKey(ctx)
}

// NewGeneratorKey draws a new generator and clears the active key.
func (s *Session) NewGeneratorKey(ctx context.Context) error {
	return s.keys.RegenerateGenerator(ctx)
}

// NewModulusKey draws a new modulus below the generator and clears the
// active key.
func (s *Session) NewModulusKey(ctx context.Context) error {
	return s.keys.RegenerateModulus(ctx)
}

// NewRandomKey draws a new key exchange exponent and clears the active key.
func (s *Session) NewRandomKey(ctx context.Context) error {
	return s.keys.RegenerateRandom(ctx)
}

// withLocks runs fn holding the line and then the key material.
func (s *Session) withLocks(ctx context.Context, fn func(lease *Lease, keys *KeyLease) error) error {
	lease, err := s.transport.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	keys, err := s.keys.Acquire(ctx)
	if err != nil {
		return err
	}
	defer keys.Release()

	return fn(lease, keys)
}

// roundTrip dispatches cmd under both locks. A non-OK status is returned as
// a Status error alongside the response.
func (s *Session) roundTrip(ctx context.Context, cmd *ssp.Command) (*ssp.Response, error) {
	op := cmd.Type.String()
	var resp *ssp.Response
	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		var err error
		resp, err = s.dispatch(ctx, lease, keys, op, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() {
		return resp, newStatusError(op, resp.Status)
	}
	return resp, nil
}
