package device

import (
	"context"

	"github.com/muurk/essp/internal/ssp"
)

// sendPlain exchanges cmd in the clear.
func (s *Session) sendPlain(ctx context.Context, lease *Lease, op string, cmd *ssp.Command) (*ssp.Response, error) {
	return s.engine.exchange(ctx, lease, op, cmd)
}

// sendEncrypted wraps cmd in an envelope under the active key, exchanges it
// and rebuilds the plain response to cmd from the decrypted reply.
//
// The device advances its counter as soon as it accepts an envelope. When the
// reply is lost after a successful write the two counters can no longer be
// matched, so every later envelope fails with an Encryption error until
// Negotiate installs a fresh key.
func (s *Session) sendEncrypted(ctx context.Context, lease *Lease, keys *KeyLease, op string, cmd *ssp.Command) (*ssp.Response, error) {
	key := keys.Key()
	if key == nil {
		return nil, newEncryptionError(op, ssp.StatusKeyNotSet, "command requires an encrypted session", errKeyNotSet)
	}
	if !keys.InStep() {
		return nil, newEncryptionError(op, 0, "key must be renegotiated", errCounterLost)
	}
	count := keys.counter()

	wrapped, err := ssp.Wrap(cmd, *key, count)
	if err != nil {
		return nil, newFramingError(op, "failed to build envelope", err)
	}

	if err := s.engine.send(ctx, lease, op, wrapped); err != nil {
		return nil, err
	}
	resp, err := s.engine.receive(lease, op, wrapped)
	if err != nil {
		keys.markLost(op, err)
		return nil, err
	}
	cmd.SequenceID = wrapped.SequenceID

	if resp.Status == ssp.StatusKeyNotSet {
		return nil, newEncryptionError(op, resp.Status, "device rejected the envelope", nil)
	}

	if !resp.IsEncrypted() {
		// Bare status replies may come back unencrypted; anything carrying a
		// payload must be sealed.
		if len(resp.Payload) > 0 {
			return nil, newEncryptionError(op, resp.Status, "device answered in the clear", ssp.ErrNotEncrypted)
		}
		return ssp.NewResponse(cmd.Type, resp.SequenceID, resp.Data())
	}

	plain, err := ssp.Unwrap(resp, cmd.Type, *key, count)
	if err != nil {
		keys.markLost(op, err)
		return nil, newEncryptionError(op, 0, "failed to open response envelope", err)
	}
	keys.advance()
	return plain, nil
}

// dispatch routes cmd through the encrypted channel when a key is active and
// in the clear otherwise. Commands that only make sense encrypted fail
// without touching the line when no key is active.
func (s *Session) dispatch(ctx context.Context, lease *Lease, keys *KeyLease, op string, cmd *ssp.Command) (*ssp.Response, error) {
	if keys.Key() != nil {
		return s.sendEncrypted(ctx, lease, keys, op, cmd)
	}
	if cmd.Type.RequiresEncryption() {
		return nil, newEncryptionError(op, ssp.StatusKeyNotSet, "command requires an encrypted session", errKeyNotSet)
	}
	return s.sendPlain(ctx, lease, op, cmd)
}
