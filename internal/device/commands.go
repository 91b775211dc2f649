package device

import (
	"context"

	"github.com/muurk/essp/internal/ssp"
)

// Operations below hold the serial line and the key for one request/response
// pair. A non-OK device status is reported as a Status error; where a
// response is returned it accompanies that error.

// SetInhibits selects which note channels are accepted.
func (s *Session) SetInhibits(ctx context.Context, channels ssp.EnableBitfield) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewSetInhibitsCommand(channels))
}

// Reset restarts the device. No response is read; callers should allow the
// device time to come back before the next command. The device forgets the
// negotiated key, so the local key is cleared too.
func (s *Session) Reset(ctx context.Context) error {
	op := ssp.CmdReset.String()
	return s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		if err := s.engine.send(ctx, lease, op, ssp.NewCommand(ssp.CmdReset)); err != nil {
			return err
		}
		keys.clear()
		return nil
	})
}

// Poll returns the events queued on the device since the last poll.
func (s *Session) Poll(ctx context.Context) (*ssp.PollResponse, error) {
	return s.poll(ctx, ssp.CmdPoll)
}

// PollWithAck polls and requires credit events to be acknowledged with
// EventAck.
func (s *Session) PollWithAck(ctx context.Context) (*ssp.PollResponse, error) {
	return s.poll(ctx, ssp.CmdPollWithAck)
}

func (s *Session) poll(ctx context.Context, t ssp.CommandType) (*ssp.PollResponse, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(t))
	if err != nil {
		return nil, err
	}
	poll, err := ssp.ParsePoll(resp)
	if err != nil {
		return nil, newDecodeError(t.String(), "failed to parse events", err)
	}
	return poll, nil
}

// EventAck acknowledges the events returned by PollWithAck.
func (s *Session) EventAck(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdEventAck))
}

// Reject returns the note in escrow.
func (s *Session) Reject(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdReject))
}

// Sync resynchronises the sequence flag. The next command carries a set
// flag.
func (s *Session) Sync(ctx context.Context) (*ssp.Response, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdSync))
	if resp != nil {
		s.engine.flag.Store(true)
	}
	return resp, err
}

// Enable starts note acceptance.
func (s *Session) Enable(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdEnable))
}

// Disable stops note acceptance.
func (s *Session) Disable(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdDisable))
}

// DisplayOff turns the bezel off.
func (s *Session) DisplayOff(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdDisplayOff))
}

// DisplayOn turns the bezel on.
func (s *Session) DisplayOn(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdDisplayOn))
}

// Empty dumps all stored notes to the cashbox. Requires an encrypted session.
func (s *Session) Empty(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdEmpty))
}

// SmartEmpty empties and records what was moved. Requires an encrypted
// session.
func (s *Session) SmartEmpty(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdSmartEmpty))
}

// HostProtocolVersion announces the protocol version the host speaks.
func (s *Session) HostProtocolVersion(ctx context.Context, version byte) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewHostProtocolVersionCommand(version))
}

// SerialNumber returns the device serial number.
func (s *Session) SerialNumber(ctx context.Context) (uint32, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdSerialNumber))
	if err != nil {
		return 0, err
	}
	n, err := ssp.ParseSerialNumber(resp)
	if err != nil {
		return 0, newDecodeError(ssp.CmdSerialNumber.String(), "failed to parse serial number", err)
	}
	return n, nil
}

// SetupRequest returns the unit type, firmware version and country code.
func (s *Session) SetupRequest(ctx context.Context) (*ssp.SetupRequestResponse, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdSetupRequest))
	if err != nil {
		return nil, err
	}
	setup, err := ssp.ParseSetupRequest(resp)
	if err != nil {
		return nil, newDecodeError(ssp.CmdSetupRequest.String(), "failed to parse setup", err)
	}
	return setup, nil
}

// UnitData returns the unit description.
func (s *Session) UnitData(ctx context.Context) (*ssp.UnitDataResponse, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdUnitData))
	if err != nil {
		return nil, err
	}
	unit, err := ssp.ParseUnitData(resp)
	if err != nil {
		return nil, newDecodeError(ssp.CmdUnitData.String(), "failed to parse unit data", err)
	}
	return unit, nil
}

// ChannelValueData returns the note value of each channel.
func (s *Session) ChannelValueData(ctx context.Context) ([]byte, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdChannelValueData))
	if err != nil {
		return nil, err
	}
	values, err := ssp.ParseChannelValueData(resp)
	if err != nil {
		return nil, newDecodeError(ssp.CmdChannelValueData.String(), "failed to parse channel values", err)
	}
	return values, nil
}

// LastRejectCode returns why the last note was rejected.
func (s *Session) LastRejectCode(ctx context.Context) (ssp.RejectCode, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdLastRejectCode))
	if err != nil {
		return 0, err
	}
	code, err := ssp.ParseLastRejectCode(resp)
	if err != nil {
		return 0, newDecodeError(ssp.CmdLastRejectCode.String(), "failed to parse reject code", err)
	}
	return code, nil
}

// Hold keeps the note in escrow for another poll interval.
func (s *Session) Hold(ctx context.Context) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewCommand(ssp.CmdHold))
}

// GetBarcodeReaderConfiguration returns the barcode reader setup.
func (s *Session) GetBarcodeReaderConfiguration(ctx context.Context) (ssp.BarcodeConfiguration, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdGetBarcodeReaderConfig))
	if err != nil {
		return ssp.BarcodeConfiguration{}, err
	}
	cfg, err := ssp.ParseBarcodeReaderConfiguration(resp)
	if err != nil {
		return ssp.BarcodeConfiguration{}, newDecodeError(ssp.CmdGetBarcodeReaderConfig.String(), "failed to parse barcode configuration", err)
	}
	return cfg, nil
}

// HasBarcodeReader reports whether any barcode reader is fitted.
func (s *Session) HasBarcodeReader(ctx context.Context) (bool, error) {
	cfg, err := s.GetBarcodeReaderConfiguration(ctx)
	if err != nil {
		return false, err
	}
	return cfg.Hardware != ssp.BarcodeHardwareNone, nil
}

// SetBarcodeReaderConfiguration changes the barcode reader setup.
func (s *Session) SetBarcodeReaderConfiguration(ctx context.Context, cfg ssp.BarcodeConfiguration) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewSetBarcodeReaderConfigCommand(cfg))
}

// GetBarcodeInhibit returns the barcode ticket inhibit mask.
func (s *Session) GetBarcodeInhibit(ctx context.Context) (ssp.BarcodeInhibit, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdGetBarcodeInhibit))
	if err != nil {
		return 0, err
	}
	inhibit, err := ssp.ParseBarcodeInhibit(resp)
	if err != nil {
		return 0, newDecodeError(ssp.CmdGetBarcodeInhibit.String(), "failed to parse barcode inhibit", err)
	}
	return inhibit, nil
}

// SetBarcodeInhibit sets the barcode ticket inhibit mask.
func (s *Session) SetBarcodeInhibit(ctx context.Context, inhibit ssp.BarcodeInhibit) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewSetBarcodeInhibitCommand(inhibit))
}

// GetBarcodeData returns the last validated barcode ticket.
func (s *Session) GetBarcodeData(ctx context.Context) (ssp.BarcodeData, error) {
	resp, err := s.roundTrip(ctx, ssp.NewCommand(ssp.CmdGetBarcodeData))
	if err != nil {
		return ssp.BarcodeData{}, err
	}
	data, err := ssp.ParseBarcodeData(resp)
	if err != nil {
		return ssp.BarcodeData{}, newDecodeError(ssp.CmdGetBarcodeData.String(), "failed to parse barcode data", err)
	}
	return data, nil
}

// ConfigureBezel sets the bezel colour.
func (s *Session) ConfigureBezel(ctx context.Context, r, g, b byte, storage ssp.BezelStorage) (*ssp.Response, error) {
	return s.roundTrip(ctx, ssp.NewConfigureBezelCommand(r, g, b, storage))
}
