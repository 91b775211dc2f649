package ssp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// EventCode identifies a poll event reported by the device.
type EventCode byte

// Poll event codes
const (
	EventSlaveReset         EventCode = 0xF1
	EventRead               EventCode = 0xEF
	EventCredit             EventCode = 0xEE
	EventRejecting          EventCode = 0xED
	EventRejected           EventCode = 0xEC
	EventStacking           EventCode = 0xCC
	EventStacked            EventCode = 0xEB
	EventSafeJam            EventCode = 0xEA
	EventUnsafeJam          EventCode = 0xE9
	EventDisabled           EventCode = 0xE8
	EventStackerFull        EventCode = 0xE7
	EventFraudAttempt       EventCode = 0xE6
	EventBarcodeValidated   EventCode = 0xE5
	EventCashboxReplaced    EventCode = 0xE4
	EventCashboxRemoved     EventCode = 0xE3
	EventClearedIntoCashbox EventCode = 0xE2
	EventClearedFromFront   EventCode = 0xE1
	EventNotePathOpen       EventCode = 0xE0
	EventBarcodeAck         EventCode = 0xD1
	EventChannelDisable     EventCode = 0xB5
	EventInitialising       EventCode = 0xB6
)

type eventInfo struct {
	name    string
	argSize int
}

var events = map[EventCode]eventInfo{
	EventSlaveReset:         {"SlaveReset", 0},
	EventRead:               {"Read", 1},
	EventCredit:             {"Credit", 1},
	EventRejecting:          {"Rejecting", 0},
	EventRejected:           {"Rejected", 0},
	EventStacking:           {"Stacking", 0},
	EventStacked:            {"Stacked", 0},
	EventSafeJam:            {"SafeJam", 0},
	EventUnsafeJam:          {"UnsafeJam", 0},
	EventDisabled:           {"Disabled", 0},
	EventStackerFull:        {"StackerFull", 0},
	EventFraudAttempt:       {"FraudAttempt", 1},
	EventBarcodeValidated:   {"BarcodeTicketValidated", 0},
	EventCashboxReplaced:    {"CashboxReplaced", 0},
	EventCashboxRemoved:     {"CashboxRemoved", 0},
	EventClearedIntoCashbox: {"ClearedIntoCashbox", 1},
	EventClearedFromFront:   {"ClearedFromFront", 1},
	EventNotePathOpen:       {"NotePathOpen", 0},
	EventBarcodeAck:         {"BarcodeAck", 0},
	EventChannelDisable:     {"ChannelDisable", 0},
	EventInitialising:       {"Initialising", 0},
}

func (e EventCode) String() string {
	if info, ok := events[e]; ok {
		return info.name
	}
	return fmt.Sprintf("Event(0x%02x)", byte(e))
}

// Event is one entry of a poll response.
type Event struct {
	Code EventCode
	Data []byte
}

func (e Event) String() string {
	if len(e.Data) == 0 {
		return e.Code.String()
	}
	return fmt.Sprintf("%s(%d)", e.Code, e.Data[0])
}

// PollResponse is the typed view of a Poll or PollWithAck response.
type PollResponse struct {
	Status ResponseStatus
	Events []Event
}

func (p *PollResponse) String() string {
	names := make([]string, len(p.Events))
	for i, e := range p.Events {
		names[i] = e.String()
	}
	return fmt.Sprintf("Poll{status=%s, events=[%s]}", p.Status, strings.Join(names, " "))
}

// ParsePoll splits a poll response payload into events.
//
// Unknown event codes are kept with no argument so that a newer firmware
// does not break polling.
func ParsePoll(r *Response) (*PollResponse, error) {
	poll := &PollResponse{Status: r.Status}
	p := r.Payload
	for len(p) > 0 {
		code := EventCode(p[0])
		n := events[code].argSize
		if len(p) < 1+n {
			return nil, fmt.Errorf("%w: event %s needs %d argument bytes", ErrPayloadLength, code, n)
		}
		ev := Event{Code: code}
		if n > 0 {
			ev.Data = append([]byte(nil), p[1:1+n]...)
		}
		poll.Events = append(poll.Events, ev)
		p = p[1+n:]
	}
	return poll, nil
}

// ParseSerialNumber returns the big-endian 32-bit serial number.
func ParseSerialNumber(r *Response) (uint32, error) {
	if len(r.Payload) != 4 {
		return 0, fmt.Errorf("%w: serial number has %d bytes, want 4", ErrPayloadLength, len(r.Payload))
	}
	return binary.BigEndian.Uint32(r.Payload), nil
}

// ParseKeyExchange returns the device intermediate key from a
// RequestKeyExchange response.
func ParseKeyExchange(r *Response) (IntermediateKey, error) {
	if len(r.Payload) != 8 {
		return 0, fmt.Errorf("%w: intermediate key has %d bytes, want 8", ErrPayloadLength, len(r.Payload))
	}
	return IntermediateKey(binary.LittleEndian.Uint64(r.Payload)), nil
}

// RejectCode is the reason the device gave for the last rejected note.
type RejectCode byte

// ParseLastRejectCode returns the reject reason.
func ParseLastRejectCode(r *Response) (RejectCode, error) {
	if len(r.Payload) != 1 {
		return 0, fmt.Errorf("%w: reject code has %d bytes, want 1", ErrPayloadLength, len(r.Payload))
	}
	return RejectCode(r.Payload[0]), nil
}

// BarcodeHardwareStatus reports which barcode readers are fitted.
type BarcodeHardwareStatus byte

const (
	BarcodeHardwareNone   BarcodeHardwareStatus = 0x00
	BarcodeHardwareTop    BarcodeHardwareStatus = 0x01
	BarcodeHardwareBottom BarcodeHardwareStatus = 0x02
	BarcodeHardwareBoth   BarcodeHardwareStatus = 0x03
)

// BarcodeEnabled selects which fitted readers are active.
type BarcodeEnabled byte

const (
	BarcodeEnabledNone   BarcodeEnabled = 0x00
	BarcodeEnabledTop    BarcodeEnabled = 0x01
	BarcodeEnabledBottom BarcodeEnabled = 0x02
	BarcodeEnabledBoth   BarcodeEnabled = 0x03
)

// BarcodeFormat is the ticket symbology.
type BarcodeFormat byte

const (
	BarcodeFormatInterleaved2of5 BarcodeFormat = 0x01
)

// BarcodeConfiguration is the reader configuration reported by
// GetBarcodeReaderConfiguration.
type BarcodeConfiguration struct {
	Hardware   BarcodeHardwareStatus
	Enabled    BarcodeEnabled
	Format     BarcodeFormat
	Characters byte // number of characters in a ticket (6-24)
}

// ParseBarcodeReaderConfiguration decodes the reader configuration.
func ParseBarcodeReaderConfiguration(r *Response) (BarcodeConfiguration, error) {
	if len(r.Payload) != 4 {
		return BarcodeConfiguration{}, fmt.Errorf("%w: barcode configuration has %d bytes, want 4", ErrPayloadLength, len(r.Payload))
	}
	return BarcodeConfiguration{
		Hardware:   BarcodeHardwareStatus(r.Payload[0]),
		Enabled:    BarcodeEnabled(r.Payload[1]),
		Format:     BarcodeFormat(r.Payload[2]),
		Characters: r.Payload[3],
	}, nil
}

// BarcodeInhibit is the currency/ticket inhibit bitmask for barcode tickets.
type BarcodeInhibit byte

// ParseBarcodeInhibit decodes a GetBarcodeInhibit response.
func ParseBarcodeInhibit(r *Response) (BarcodeInhibit, error) {
	if len(r.Payload) != 1 {
		return 0, fmt.Errorf("%w: barcode inhibit has %d bytes, want 1", ErrPayloadLength, len(r.Payload))
	}
	return BarcodeInhibit(r.Payload[0]), nil
}

// BarcodeData is the last validated ticket.
type BarcodeData struct {
	Status byte
	Ticket string
}

// ParseBarcodeData decodes a GetBarcodeData response:
// status, length, ticket characters.
func ParseBarcodeData(r *Response) (BarcodeData, error) {
	if len(r.Payload) < 2 {
		return BarcodeData{}, fmt.Errorf("%w: barcode data has %d bytes, want at least 2", ErrPayloadLength, len(r.Payload))
	}
	n := int(r.Payload[1])
	if len(r.Payload) != 2+n {
		return BarcodeData{}, fmt.Errorf("%w: barcode ticket has %d bytes, want %d", ErrPayloadLength, len(r.Payload)-2, n)
	}
	return BarcodeData{Status: r.Payload[0], Ticket: string(r.Payload[2:])}, nil
}

// SetupRequestResponse is the leading part of a SetupRequest response common
// to all unit types. Remaining type-specific bytes are kept in Extra.
type SetupRequestResponse struct {
	UnitType        byte
	FirmwareVersion string // four ASCII digits, e.g. "0420"
	CountryCode     string // three ASCII letters
	Extra           []byte
}

// ParseSetupRequest decodes the common prefix of a SetupRequest response.
func ParseSetupRequest(r *Response) (*SetupRequestResponse, error) {
	if len(r.Payload) < 8 {
		return nil, fmt.Errorf("%w: setup request has %d bytes, want at least 8", ErrPayloadLength, len(r.Payload))
	}
	return &SetupRequestResponse{
		UnitType:        r.Payload[0],
		FirmwareVersion: string(r.Payload[1:5]),
		CountryCode:     string(r.Payload[5:8]),
		Extra:           append([]byte(nil), r.Payload[8:]...),
	}, nil
}

// UnitDataResponse is the typed view of a UnitData response.
type UnitDataResponse struct {
	UnitType        byte
	FirmwareVersion string
	CountryCode     string
	ValueMultiplier uint32 // 24-bit big-endian
	ProtocolVersion byte
}

// ParseUnitData decodes a UnitData response.
func ParseUnitData(r *Response) (*UnitDataResponse, error) {
	if len(r.Payload) < 12 {
		return nil, fmt.Errorf("%w: unit data has %d bytes, want at least 12", ErrPayloadLength, len(r.Payload))
	}
	p := r.Payload
	return &UnitDataResponse{
		UnitType:        p[0],
		FirmwareVersion: string(p[1:5]),
		CountryCode:     string(p[5:8]),
		ValueMultiplier: uint32(p[8])<<16 | uint32(p[9])<<8 | uint32(p[10]),
		ProtocolVersion: p[11],
	}, nil
}

// ParseChannelValueData returns the per-channel note values: a channel count
// followed by one value byte per channel.
func ParseChannelValueData(r *Response) ([]byte, error) {
	if len(r.Payload) < 1 {
		return nil, fmt.Errorf("%w: channel value data is empty", ErrPayloadLength)
	}
	n := int(r.Payload[0])
	if len(r.Payload) < 1+n {
		return nil, fmt.Errorf("%w: channel value data has %d values, want %d", ErrPayloadLength, len(r.Payload)-1, n)
	}
	return append([]byte(nil), r.Payload[1:1+n]...), nil
}
