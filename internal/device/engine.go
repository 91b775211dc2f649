package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp"
)

// engine writes commands and reads their response frames.
//
// The sequence flag alternates after every successful write so the device
// can tell a new command from a retransmission.
type engine struct {
	flag          *atomic.Bool
	slave         byte
	retryInterval time.Duration
	maxAttempts   int // 0 = retry until ctx is done
}

func newEngine(slave byte, retryInterval time.Duration, maxAttempts int) *engine {
	return &engine{
		flag:          atomic.NewBool(false),
		slave:         slave,
		retryInterval: retryInterval,
		maxAttempts:   maxAttempts,
	}
}

// retryPolicy returns the write retry schedule bounded by ctx.
func (e *engine) retryPolicy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(e.retryInterval)
	if e.maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(e.maxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// send stamps cmd with the session sequence flag and writes it, retrying
// failed writes with the sequence bit toggled. On success the session flag
// becomes the complement of the bit that went out.
func (e *engine) send(ctx context.Context, lease *Lease, op string, cmd *ssp.Command) error {
	cmd.SequenceID = ssp.NewSequenceID(e.flag.Load(), e.slave)

	attempt := 0
	write := func() error {
		attempt++
		raw, err := cmd.Encode()
		if err != nil {
			return backoff.Permanent(err)
		}
		logging.LogFrame("tx", cmd.Type, raw)
		_, err = lease.Write(raw)
		return err
	}
	notify := func(err error, wait time.Duration) {
		cmd.ToggleFlag()
		logging.Warn("Failed to send command",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(write, e.retryPolicy(ctx), notify); err != nil {
		switch {
		case errors.Is(err, ssp.ErrDataTooLarge):
			return newFramingError(op, "command does not fit in a frame", err)
		case ctx.Err() != nil:
			return newTimeoutError(op, fmt.Sprintf("write abandoned after %d attempts", attempt), err)
		default:
			return newTransportError(op, fmt.Sprintf("write failed after %d attempts", attempt), err)
		}
	}

	e.flag.Store(!cmd.Flag())
	return nil
}

// readFrame reads exactly one frame: the start byte, SEQ/ID and LEN, then
// LEN data bytes and the checksum.
func (e *engine) readFrame(lease *Lease, op string) ([]byte, error) {
	buf := make([]byte, ssp.MaxFrameSize)

	if _, err := io.ReadFull(lease, buf[:ssp.IndexSeqID]); err != nil {
		return nil, classifyIOError(op, "failed to read start byte", err)
	}
	if buf[ssp.IndexSTX] != ssp.STX {
		logging.LogRawBytes("Discarded byte", buf[:ssp.IndexSeqID])
		return nil, newFramingError(op, fmt.Sprintf("invalid start byte 0x%02x", buf[ssp.IndexSTX]), ssp.ErrInvalidSTX)
	}

	if _, err := io.ReadFull(lease, buf[ssp.IndexSeqID:ssp.IndexData]); err != nil {
		return nil, classifyIOError(op, "failed to read frame header", err)
	}

	total := ssp.MetadataSize + int(buf[ssp.IndexLen])
	if _, err := io.ReadFull(lease, buf[ssp.IndexData:total]); err != nil {
		return nil, classifyIOError(op, fmt.Sprintf("failed to read %d-byte frame body", total-ssp.IndexData), err)
	}

	return buf[:total], nil
}

// exchange sends cmd and decodes the single response frame it produces.
func (e *engine) exchange(ctx context.Context, lease *Lease, op string, cmd *ssp.Command) (*ssp.Response, error) {
	if err := e.send(ctx, lease, op, cmd); err != nil {
		return nil, err
	}
	return e.receive(lease, op, cmd)
}

// receive reads and decodes the reply to cmd, which has already been sent.
func (e *engine) receive(lease *Lease, op string, cmd *ssp.Command) (*ssp.Response, error) {
	raw, err := e.readFrame(lease, op)
	if err != nil {
		return nil, err
	}
	logging.LogFrame("rx", cmd.Type, raw)

	resp, err := ssp.Decode(raw, cmd.Type)
	if err != nil {
		logging.LogRawBytes("Undecodable response", raw)
		return nil, newDecodeError(op, "failed to decode response", err)
	}
	return resp, nil
}
