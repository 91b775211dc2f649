// Package sim provides an in-process SSP peripheral.
//
// Device implements io.ReadWriteCloser: every Write carries one host frame and
// queues the device's reply for subsequent Reads. It runs the device half of
// the eSSP key exchange, opens and seals envelopes, and can inject faults
// (failed writes, truncated replies, corrupt start bytes, forced statuses) for
// exercising a session without hardware.
package sim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp"
	"go.uber.org/zap"
)

// ErrWriteFailed is returned by Write while injected write failures remain.
var ErrWriteFailed = errors.New("sim: injected write failure")

type timeoutError struct{}

func (timeoutError) Error() string   { return "sim: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// Device is a simulated note validator.
type Device struct {
	mu sync.Mutex

	out    bytes.Buffer
	closed bool
	eof    bool
	writes [][]byte

	// fault injection
	failWrites int
	truncateTo int
	dropReply  bool
	badSTX     bool
	forced     map[ssp.CommandType][]ssp.ResponseStatus

	// unit state
	serial   uint32
	firmware string
	country  string
	channels []byte
	enabled  bool
	inhibits ssp.EnableBitfield
	events   []ssp.Event
	barcode  ssp.BarcodeConfiguration
	bcInhib  ssp.BarcodeInhibit
	ticket   string
	rejected ssp.RejectCode

	// eSSP state
	generator ssp.GeneratorKey
	modulus   ssp.ModulusKey
	random    ssp.RandomKey
	fixed     ssp.FixedKey
	key       *ssp.AesKey
	count     uint32

	lastSeq   ssp.SequenceID
	lastReq   []byte
	lastReply []byte
}

// Option configures a Device.
type Option func(*Device)

// WithSerialNumber sets the reported serial number.
func WithSerialNumber(serial uint32) Option {
	return func(d *Device) { d.serial = serial }
}

// WithChannels sets the note value of each channel.
func WithChannels(values ...byte) Option {
	return func(d *Device) { d.channels = values }
}

// WithBarcodeReader fits barcode readers with the given configuration.
func WithBarcodeReader(cfg ssp.BarcodeConfiguration) Option {
	return func(d *Device) { d.barcode = cfg }
}

// WithDeviceRandom fixes the device's key exchange exponent.
func WithDeviceRandom(r ssp.RandomKey) Option {
	return func(d *Device) { d.random = r }
}

// New creates a simulated device with factory defaults.
func New(opts ...Option) *Device {
	d := &Device{
		serial:   0x0012D687,
		firmware: "0420",
		country:  "EUR",
		channels: []byte{5, 10, 20, 50, 100},
		fixed:    ssp.DefaultFixedKey,
		random:   0x1B3F2A7D,
		forced:   make(map[ssp.CommandType][]ssp.ResponseStatus),
		lastSeq:  0xFF,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailWrites makes the next n writes fail with ErrWriteFailed.
func (d *Device) FailWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = n
}

// TruncateNextResponse delivers only the first n bytes of the next reply and
// then reports end of stream.
func (d *Device) TruncateNextResponse(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.truncateTo = n
}

// DropNextResponse processes the next frame but sends no reply, so the host
// read times out.
func (d *Device) DropNextResponse() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropReply = true
}

// CorruptNextSTX replaces the start byte of the next reply.
func (d *Device) CorruptNextSTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badSTX = true
}

// RespondNext forces the status of the next reply to cmd, without applying
// the command. Calls queue.
func (d *Device) RespondNext(cmd ssp.CommandType, status ssp.ResponseStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forced[cmd] = append(d.forced[cmd], status)
}

// QueueEvents adds events to the next poll reply.
func (d *Device) QueueEvents(events ...ssp.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

// SetTicket stores a barcode ticket for GetBarcodeData.
func (d *Device) SetTicket(ticket string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ticket = ticket
}

// Writes returns every frame passed to Write, including failed attempts.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

// Key returns the device's negotiated key.
func (d *Device) Key() (ssp.AesKey, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.key == nil {
		return ssp.AesKey{}, false
	}
	return *d.key, true
}

// Enabled reports whether the unit accepts notes.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Write consumes one host frame.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, io.ErrClosedPipe
	}
	d.writes = append(d.writes, append([]byte(nil), p...))

	if d.failWrites > 0 {
		d.failWrites--
		return 0, ErrWriteFailed
	}

	seq, data, err := ssp.ParseFrame(p)
	if err != nil {
		// A real unit ignores frames it cannot parse.
		logging.Debug("sim: dropping host frame", zap.Error(err))
		return len(p), nil
	}

	reply, ok := d.handle(seq, data)
	if !ok {
		return len(p), nil
	}
	if d.dropReply {
		d.dropReply = false
		return len(p), nil
	}

	frame, err := ssp.EncodeFrame(seq, reply)
	if err != nil {
		return 0, fmt.Errorf("sim: encode reply: %w", err)
	}
	if d.badSTX {
		d.badSTX = false
		frame[ssp.IndexSTX] = 0x00
	}
	if d.truncateTo > 0 {
		frame = frame[:min(d.truncateTo, len(frame))]
		d.truncateTo = 0
		d.eof = true
	}
	d.out.Write(frame)
	return len(p), nil
}

// Read returns queued reply bytes. With nothing queued it reports a read
// timeout, or end of stream after a truncated reply or Close.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out.Len() == 0 {
		if d.eof || d.closed {
			d.eof = false
			return 0, io.EOF
		}
		return 0, timeoutError{}
	}
	return d.out.Read(p)
}

// Close marks the line closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// handle returns the reply data for one host frame, or false when the
// command produces no reply.
func (d *Device) handle(seq ssp.SequenceID, data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return []byte{byte(ssp.StatusWrongParams)}, true
	}

	cmd := ssp.CommandType(data[0])
	if cmd != ssp.CmdSync && seq == d.lastSeq && bytes.Equal(data, d.lastReq) {
		logging.Debug("sim: repeating reply to retransmitted frame", zap.Stringer("command", cmd))
		return d.lastReply, true
	}

	var reply []byte
	if cmd == ssp.CmdEncrypted {
		reply = d.handleEncrypted(data)
	} else {
		var ok bool
		reply, ok = d.apply(cmd, data[1:], false)
		if !ok {
			return nil, false
		}
	}

	d.lastSeq = seq
	d.lastReq = append([]byte(nil), data...)
	d.lastReply = reply
	return reply, true
}

func (d *Device) handleEncrypted(data []byte) []byte {
	if d.key == nil {
		return []byte{byte(ssp.StatusKeyNotSet)}
	}
	key := *d.key

	count, inner, err := ssp.Open(data, key)
	if err != nil || count != d.count || len(inner) == 0 {
		logging.Debug("sim: rejecting envelope",
			zap.Uint32("count", count),
			zap.Uint32("expected", d.count),
			zap.Error(err))
		return []byte{byte(ssp.StatusKeyNotSet)}
	}

	before := d.key
	reply, replied := d.apply(ssp.CommandType(inner[0]), inner[1:], true)
	if !replied {
		reply = okReply()
	}

	sealed, err := ssp.Seal(reply, key, count)
	if err != nil {
		return []byte{byte(ssp.StatusSoftwareError)}
	}
	// Commands that replace or clear the key restart the counter.
	if d.key == before {
		d.count++
	}
	return sealed
}

func okReply(payload ...byte) []byte {
	return append([]byte{byte(ssp.StatusOK)}, payload...)
}

func status(s ssp.ResponseStatus) []byte {
	return []byte{byte(s)}
}

// apply executes a command and returns the reply data. Reset produces no
// reply.
func (d *Device) apply(cmd ssp.CommandType, params []byte, encrypted bool) ([]byte, bool) {
	if queued := d.forced[cmd]; len(queued) > 0 {
		d.forced[cmd] = queued[1:]
		return status(queued[0]), true
	}

	switch cmd {
	case ssp.CmdReset:
		d.reset()
		return nil, false

	case ssp.CmdSync, ssp.CmdDisplayOn, ssp.CmdDisplayOff, ssp.CmdReject, ssp.CmdHold,
		ssp.CmdEventAck, ssp.CmdHostProtocolVersion, ssp.CmdConfigureBezel:
		return okReply(), true

	case ssp.CmdEnable:
		d.enabled = true
		return okReply(), true

	case ssp.CmdDisable:
		d.enabled = false
		return okReply(), true

	case ssp.CmdSetInhibits:
		if len(params) < 2 {
			return status(ssp.StatusWrongParams), true
		}
		d.inhibits = ssp.EnableBitfield(binary.LittleEndian.Uint16(params))
		return okReply(), true

	case ssp.CmdPoll, ssp.CmdPollWithAck:
		reply := okReply()
		if !d.enabled {
			reply = append(reply, byte(ssp.EventDisabled))
		}
		for _, ev := range d.events {
			reply = append(reply, byte(ev.Code))
			reply = append(reply, ev.Data...)
		}
		d.events = nil
		return reply, true

	case ssp.CmdSerialNumber:
		return okReply(binary.BigEndian.AppendUint32(nil, d.serial)...), true

	case ssp.CmdSetupRequest:
		reply := okReply(0x00)
		reply = append(reply, d.firmware...)
		reply = append(reply, d.country...)
		reply = append(reply, 0x00, 0x00, 0x01, byte(len(d.channels)))
		return append(reply, d.channels...), true

	case ssp.CmdUnitData:
		reply := okReply(0x00)
		reply = append(reply, d.firmware...)
		reply = append(reply, d.country...)
		return append(reply, 0x00, 0x00, 0x01, 0x06), true

	case ssp.CmdChannelValueData:
		reply := okReply(byte(len(d.channels)))
		return append(reply, d.channels...), true

	case ssp.CmdLastRejectCode:
		return okReply(byte(d.rejected)), true

	case ssp.CmdGetBarcodeReaderConfig:
		b := d.barcode
		return okReply(byte(b.Hardware), byte(b.Enabled), byte(b.Format), b.Characters), true

	case ssp.CmdSetBarcodeReaderConfig:
		if d.barcode.Hardware == ssp.BarcodeHardwareNone {
			return status(ssp.StatusCannotBeProcessed), true
		}
		if len(params) < 3 {
			return status(ssp.StatusWrongParams), true
		}
		d.barcode.Enabled = ssp.BarcodeEnabled(params[0])
		d.barcode.Format = ssp.BarcodeFormat(params[1])
		d.barcode.Characters = params[2]
		return okReply(), true

	case ssp.CmdGetBarcodeInhibit:
		return okReply(byte(d.bcInhib)), true

	case ssp.CmdSetBarcodeInhibit:
		if len(params) < 1 {
			return status(ssp.StatusWrongParams), true
		}
		d.bcInhib = ssp.BarcodeInhibit(params[0])
		return okReply(), true

	case ssp.CmdGetBarcodeData:
		reply := okReply(0x01, byte(len(d.ticket)))
		return append(reply, d.ticket...), true

	case ssp.CmdEmpty, ssp.CmdSmartEmpty:
		if !encrypted {
			return status(ssp.StatusKeyNotSet), true
		}
		return okReply(), true

	case ssp.CmdSetGenerator:
		v, valid := key64(params)
		if !valid {
			return status(ssp.StatusWrongParams), true
		}
		d.generator = ssp.GeneratorKey(v)
		return okReply(), true

	case ssp.CmdSetModulus:
		v, valid := key64(params)
		if !valid {
			return status(ssp.StatusWrongParams), true
		}
		d.modulus = ssp.ModulusKey(v)
		return okReply(), true

	case ssp.CmdRequestKeyExchange:
		v, valid := key64(params)
		if !valid || d.generator == 0 || d.modulus == 0 {
			return status(ssp.StatusCannotBeProcessed), true
		}
		host := ssp.IntermediateKey(v)
		inter := ssp.NewIntermediateKey(d.generator, d.random, d.modulus)
		secret := ssp.NewEncryptionKey(host, d.random, d.modulus)
		key := ssp.NewAesKey(d.fixed, secret)
		d.key = &key
		d.count = 0
		return okReply(binary.LittleEndian.AppendUint64(nil, uint64(inter))...), true

	case ssp.CmdSetEncryptionKey:
		if !encrypted {
			return status(ssp.StatusKeyNotSet), true
		}
		v, valid := key64(params)
		if !valid {
			return status(ssp.StatusWrongParams), true
		}
		d.fixed = ssp.FixedKey(v)
		return okReply(), true

	case ssp.CmdEncryptionReset:
		d.fixed = ssp.DefaultFixedKey
		d.key = nil
		d.count = 0
		return okReply(), true
	}

	return status(ssp.StatusCommandNotKnown), true
}

func (d *Device) reset() {
	d.enabled = false
	d.key = nil
	d.count = 0
	d.events = []ssp.Event{{Code: ssp.EventSlaveReset}}
	d.lastSeq = 0xFF
	d.lastReq = nil
	d.lastReply = nil
}

func key64(params []byte) (uint64, bool) {
	if len(params) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(params), true
}
