package ssp

import (
	"fmt"
)

// ResponseStatus is the first data byte of a response frame.
type ResponseStatus byte

// Response status codes
const (
	StatusOK                ResponseStatus = 0xF0
	StatusCommandNotKnown   ResponseStatus = 0xF2
	StatusWrongParams       ResponseStatus = 0xF3
	StatusParamOutOfRange   ResponseStatus = 0xF4
	StatusCannotBeProcessed ResponseStatus = 0xF5
	StatusSoftwareError     ResponseStatus = 0xF6
	StatusFail              ResponseStatus = 0xF8
	StatusKeyNotSet         ResponseStatus = 0xFA

	// StatusEncrypted is not a device status: it marks data that is an
	// encrypted envelope still to be opened.
	StatusEncrypted ResponseStatus = STEX
)

var statusNames = map[ResponseStatus]string{
	StatusOK:                "OK",
	StatusCommandNotKnown:   "CommandNotKnown",
	StatusWrongParams:       "WrongParams",
	StatusParamOutOfRange:   "ParamOutOfRange",
	StatusCannotBeProcessed: "CommandCannotBeProcessed",
	StatusSoftwareError:     "SoftwareError",
	StatusFail:              "Fail",
	StatusKeyNotSet:         "KeyNotSet",
	StatusEncrypted:         "Encrypted",
}

func (s ResponseStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(0x%02x)", byte(s))
}

// IsOK reports whether s is the OK status.
func (s ResponseStatus) IsOK() bool { return s == StatusOK }

// Response is a decoded response frame.
type Response struct {
	Command    CommandType    // command this frame answers
	SequenceID SequenceID     // SEQ/ID byte echoed by the device
	Status     ResponseStatus // first data byte
	Payload    []byte         // data after the status byte
	Raw        []byte         // complete frame bytes
}

// Decode validates a raw response frame and attributes it to the expected
// command.
func Decode(raw []byte, expected CommandType) (*Response, error) {
	seq, data, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}

	frame := make([]byte, len(raw))
	copy(frame, raw)
	payload := frame[IndexData+1 : IndexData+len(data)]

	return &Response{
		Command:    expected,
		SequenceID: seq,
		Status:     ResponseStatus(data[0]),
		Payload:    payload,
		Raw:        frame,
	}, nil
}

// NewResponse builds a response frame from data with a freshly computed
// checksum. It is used to rebuild plain responses from decrypted envelopes.
func NewResponse(expected CommandType, seq SequenceID, data []byte) (*Response, error) {
	raw, err := EncodeFrame(seq, data)
	if err != nil {
		return nil, err
	}
	return Decode(raw, expected)
}

// Data returns the frame DATA bytes: status followed by payload.
func (r *Response) Data() []byte {
	return r.Raw[IndexData : len(r.Raw)-ChecksumSize]
}

// IsEncrypted reports whether the response data is an encrypted envelope.
func (r *Response) IsEncrypted() bool { return r.Status == StatusEncrypted }

func (r *Response) String() string {
	return fmt.Sprintf("%sResponse{%s, status=%s, payload=%d}", r.Command, r.SequenceID, r.Status, len(r.Payload))
}
