package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp"
)

// Key exchange
//
// The handshake is three round trips: SetGenerator, SetModulus and
// RequestKeyExchange. The device answers the last one with its own
// intermediate key, from which both sides derive the same secret. None of
// the steps is retried here; on a failed step the caller regenerates the
// matching material (NewGeneratorKey, NewModulusKey, NewRandomKey) and
// starts over. Negotiate does exactly that.

// SetGenerator sends the generator prime. On failure the caller should call
// NewGeneratorKey and retry.
func (s *Session) SetGenerator(ctx context.Context) (*ssp.Response, error) {
	return s.sendKeyParam(ctx, func(keys *KeyLease) *ssp.Command {
		return ssp.NewSetGeneratorCommand(keys.store.generator)
	})
}

// SetModulus sends the modulus prime. On failure the caller should call
// NewModulusKey and retry.
func (s *Session) SetModulus(ctx context.Context) (*ssp.Response, error) {
	return s.sendKeyParam(ctx, func(keys *KeyLease) *ssp.Command {
		return ssp.NewSetModulusCommand(keys.store.modulus)
	})
}

func (s *Session) sendKeyParam(ctx context.Context, build func(*KeyLease) *ssp.Command) (*ssp.Response, error) {
	var resp *ssp.Response
	var op string
	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		cmd := build(keys)
		op = cmd.Type.String()
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

// RequestKeyExchange sends the host intermediate key. On an OK answer the
// derived key is installed before the line is released, so the next command
// goes out encrypted. On failure the caller should call NewRandomKey and
// retry.
func (s *Session) RequestKeyExchange(ctx context.Context) (*ssp.Response, error) {
	op := ssp.CmdRequestKeyExchange.String()
	var resp *ssp.Response
	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		cmd := ssp.NewRequestKeyExchangeCommand(keys.Intermediate())
		var err error
		resp, err = s.dispatch(ctx, lease, keys, op, cmd)
		if err != nil {
			return err
		}
		if !resp.Status.IsOK() {
			return nil
		}
		device, err := ssp.ParseKeyExchange(resp)
		if err != nil {
			return newDecodeError(op, "failed to parse device intermediate key", err)
		}
		keys.Install(device)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() {
		return resp, newStatusError(op, resp.Status)
	}
	return resp, nil
}

// SetEncryptionKey sends a freshly drawn fixed key over the encrypted
// channel. The new fixed key is kept locally only once the device accepts
// it, and takes part in the next key exchange.
func (s *Session) SetEncryptionKey(ctx context.Context) (*ssp.Response, error) {
	op := ssp.CmdSetEncryptionKey.String()
	var resp *ssp.Response
	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		if keys.Key() == nil {
			return newEncryptionError(op, ssp.StatusKeyNotSet, "command requires an encrypted session", errKeyNotSet)
		}
		fixed, err := s.keys.drawFixed()
		if err != nil {
			return err
		}
		resp, err = s.sendEncrypted(ctx, lease, keys, op, ssp.NewSetEncryptionKeyCommand(fixed))
		if err != nil {
			return err
		}
		if resp.Status.IsOK() {
			keys.store.fixed = fixed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() {
		return resp, newStatusError(op, resp.Status)
	}
	return resp, nil
}

// EncryptionReset returns the device to the default fixed key. A device that
// cannot reset answers CommandCannotBeProcessed, reported as an Encryption
// error. On success the local key is cleared and the fixed key restored to
// the default.
func (s *Session) EncryptionReset(ctx context.Context) (*ssp.Response, error) {
	op := ssp.CmdEncryptionReset.String()
	var resp *ssp.Response
	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		var err error
		resp, err = s.dispatch(ctx, lease, keys, op, ssp.NewCommand(ssp.CmdEncryptionReset))
		if err != nil {
			return err
		}
		switch {
		case resp.Status == ssp.StatusCannotBeProcessed:
			return newEncryptionError(op, resp.Status, "device cannot reset encryption", nil)
		case resp.Status.IsOK():
			keys.store.fixed = ssp.DefaultFixedKey
			keys.clear()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() {
		return resp, newStatusError(op, resp.Status)
	}
	return resp, nil
}

// handshakeStep names the step that failed, so Negotiate knows which
// material to regenerate.
type handshakeStep int

const (
	stepGenerator handshakeStep = iota
	stepModulus
	stepExchange
)

func (s handshakeStep) String() string {
	switch s {
	case stepGenerator:
		return "generator"
	case stepModulus:
		return "modulus"
	default:
		return "key exchange"
	}
}

// Negotiate runs the key exchange, regenerating the material of a failed step
// and starting over, up to attempts times. Each attempt uses a fresh random
// exponent. Lock timeouts, transport failures and entropy failures end the
// negotiation at once.
func (s *Session) Negotiate(ctx context.Context, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.NewRandomKey(ctx); err != nil {
			return err
		}

		step, err := s.handshake(ctx)
		if err == nil {
			logging.Info("Key exchange complete", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if !IsStatus(err) && !IsDecode(err) && !IsEncryption(err) {
			return err
		}

		logging.Warn("Key exchange step failed",
			zap.Int("attempt", attempt),
			zap.Stringer("step", step),
			zap.Error(err))

		switch step {
		case stepGenerator:
			err = s.NewGeneratorKey(ctx)
		case stepModulus:
			err = s.NewModulusKey(ctx)
		}
		if err != nil {
			return err
		}
	}

	return fmt.Errorf("key exchange failed after %d attempts: %w", attempts, lastErr)
}

func (s *Session) handshake(ctx context.Context) (handshakeStep, error) {
	if _, err := s.SetGenerator(ctx); err != nil {
		return stepGenerator, err
	}
	if _, err := s.SetModulus(ctx); err != nil {
		return stepModulus, err
	}
	if _, err := s.RequestKeyExchange(ctx); err != nil {
		return stepExchange, err
	}
	return stepExchange, nil
}
