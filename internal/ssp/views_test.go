package ssp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func response(t *testing.T, cmd CommandType, data ...byte) *Response {
	t.Helper()
	resp, err := NewResponse(cmd, 0, data)
	if err != nil {
		t.Fatalf("NewResponse() error = %v", err)
	}
	return resp
}

func TestParsePoll(t *testing.T) {
	resp := response(t, CmdPoll, 0xF0, 0xEF, 0x02, 0xCC, 0xEE, 0x02, 0xE8)

	got, err := ParsePoll(resp)
	if err != nil {
		t.Fatalf("ParsePoll() error = %v", err)
	}

	want := &PollResponse{
		Status: StatusOK,
		Events: []Event{
			{Code: EventRead, Data: []byte{0x02}},
			{Code: EventStacking},
			{Code: EventCredit, Data: []byte{0x02}},
			{Code: EventDisabled},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParsePoll() mismatch (-want +got):\n%s", diff)
	}
	if s := got.String(); s != "Poll{status=OK, events=[Read(2) Stacking Credit(2) Disabled]}" {
		t.Errorf("String() = %q", s)
	}
}

func TestParsePollTruncatedEvent(t *testing.T) {
	resp := response(t, CmdPoll, 0xF0, 0xEE)
	if _, err := ParsePoll(resp); !errors.Is(err, ErrPayloadLength) {
		t.Errorf("ParsePoll() error = %v, want %v", err, ErrPayloadLength)
	}
}

func TestParseSerialNumber(t *testing.T) {
	got, err := ParseSerialNumber(response(t, CmdSerialNumber, 0xF0, 0x00, 0x12, 0xD6, 0x87))
	if err != nil {
		t.Fatalf("ParseSerialNumber() error = %v", err)
	}
	if got != 1234567 {
		t.Errorf("ParseSerialNumber() = %d, want 1234567", got)
	}

	if _, err := ParseSerialNumber(response(t, CmdSerialNumber, 0xF0, 0x01)); !errors.Is(err, ErrPayloadLength) {
		t.Errorf("short serial error = %v, want %v", err, ErrPayloadLength)
	}
}

func TestParseKeyExchange(t *testing.T) {
	resp := response(t, CmdRequestKeyExchange, 0xF0, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01)
	got, err := ParseKeyExchange(resp)
	if err != nil {
		t.Fatalf("ParseKeyExchange() error = %v", err)
	}
	if got != 0x0102030405060708 {
		t.Errorf("ParseKeyExchange() = 0x%x, want 0x0102030405060708", uint64(got))
	}
}

func TestParseBarcodeReaderConfiguration(t *testing.T) {
	got, err := ParseBarcodeReaderConfiguration(response(t, CmdGetBarcodeReaderConfig, 0xF0, 0x03, 0x01, 0x01, 0x12))
	if err != nil {
		t.Fatalf("ParseBarcodeReaderConfiguration() error = %v", err)
	}
	want := BarcodeConfiguration{
		Hardware:   BarcodeHardwareBoth,
		Enabled:    BarcodeEnabledTop,
		Format:     BarcodeFormatInterleaved2of5,
		Characters: 18,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSetupRequest(t *testing.T) {
	data := append([]byte{0xF0, 0x00}, []byte("0420GBP")...)
	data = append(data, 0x00, 0x00, 0x01)
	got, err := ParseSetupRequest(response(t, CmdSetupRequest, data...))
	if err != nil {
		t.Fatalf("ParseSetupRequest() error = %v", err)
	}
	want := &SetupRequestResponse{
		UnitType:        0x00,
		FirmwareVersion: "0420",
		CountryCode:     "GBP",
		Extra:           []byte{0x00, 0x00, 0x01},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseChannelValueData(t *testing.T) {
	got, err := ParseChannelValueData(response(t, CmdChannelValueData, 0xF0, 0x03, 5, 10, 20))
	if err != nil {
		t.Fatalf("ParseChannelValueData() error = %v", err)
	}
	if diff := cmp.Diff([]byte{5, 10, 20}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBarcodeData(t *testing.T) {
	data := append([]byte{0xF0, 0x01, 0x06}, []byte("123456")...)
	got, err := ParseBarcodeData(response(t, CmdGetBarcodeData, data...))
	if err != nil {
		t.Fatalf("ParseBarcodeData() error = %v", err)
	}
	if got.Ticket != "123456" || got.Status != 0x01 {
		t.Errorf("ParseBarcodeData() = %+v", got)
	}
}
