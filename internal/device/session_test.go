package device

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/essp/internal/ssp"
	"github.com/muurk/essp/internal/ssp/sim"
)

func TestConfigDefaults(t *testing.T) {
	got := Config{Path: "/dev/ttyUSB0"}.withDefaults()
	want := DefaultConfig()
	want.Path = "/dev/ttyUSB0"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withDefaults() mismatch (-want +got):\n%s", diff)
	}
	if got.RetryInterval != MinPollInterval {
		t.Errorf("RetryInterval = %v, want %v", got.RetryInterval, MinPollInterval)
	}
}

func TestSessionQueries(t *testing.T) {
	s, _ := newSimSession(t,
		sim.WithSerialNumber(0x01020304),
		sim.WithChannels(5, 10, 20))
	ctx := context.Background()

	serial, err := s.SerialNumber(ctx)
	if err != nil {
		t.Fatalf("SerialNumber() error = %v", err)
	}
	if serial != 0x01020304 {
		t.Errorf("SerialNumber() = %#x, want 0x01020304", serial)
	}

	setup, err := s.SetupRequest(ctx)
	if err != nil {
		t.Fatalf("SetupRequest() error = %v", err)
	}
	if setup.FirmwareVersion != "0420" || setup.CountryCode != "EUR" {
		t.Errorf("SetupRequest() = %+v, want firmware 0420 country EUR", setup)
	}

	unit, err := s.UnitData(ctx)
	if err != nil {
		t.Fatalf("UnitData() error = %v", err)
	}
	if unit.FirmwareVersion != "0420" {
		t.Errorf("UnitData().FirmwareVersion = %q, want 0420", unit.FirmwareVersion)
	}

	values, err := s.ChannelValueData(ctx)
	if err != nil {
		t.Fatalf("ChannelValueData() error = %v", err)
	}
	if diff := cmp.Diff([]byte{5, 10, 20}, values); diff != "" {
		t.Errorf("ChannelValueData() mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.LastRejectCode(ctx); err != nil {
		t.Errorf("LastRejectCode() error = %v", err)
	}
}

func TestSessionCommands(t *testing.T) {
	tests := []struct {
		name string
		call func(*Session, context.Context) (*ssp.Response, error)
	}{
		{"Enable", (*Session).Enable},
		{"Disable", (*Session).Disable},
		{"DisplayOn", (*Session).DisplayOn},
		{"DisplayOff", (*Session).DisplayOff},
		{"EventAck", (*Session).EventAck},
		{"Reject", (*Session).Reject},
		{"Hold", (*Session).Hold},
		{"Sync", (*Session).Sync},
		{"SetInhibits", func(s *Session, ctx context.Context) (*ssp.Response, error) {
			return s.SetInhibits(ctx, 0x00FF)
		}},
		{"HostProtocolVersion", func(s *Session, ctx context.Context) (*ssp.Response, error) {
			return s.HostProtocolVersion(ctx, 6)
		}},
		{"ConfigureBezel", func(s *Session, ctx context.Context) (*ssp.Response, error) {
			return s.ConfigureBezel(ctx, 0xFF, 0x00, 0x00, ssp.BezelRAM)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSimSession(t)
			resp, err := tt.call(s, context.Background())
			if err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			if !resp.Status.IsOK() {
				t.Errorf("%s() status = %v, want OK", tt.name, resp.Status)
			}
		})
	}
}

func TestEnableDisable(t *testing.T) {
	s, dev := newSimSession(t)
	ctx := context.Background()

	if _, err := s.Enable(ctx); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if !dev.Enabled() {
		t.Error("device not enabled")
	}
	poll, err := s.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(poll.Events) != 0 {
		t.Errorf("Poll() events = %v, want none", poll.Events)
	}

	if _, err := s.Disable(ctx); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if dev.Enabled() {
		t.Error("device still enabled")
	}
}

func TestSyncSetsFlag(t *testing.T) {
	s, dev := newSimSession(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Sync(ctx); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if !s.SequenceFlag() {
			t.Errorf("SequenceFlag() after Sync #%d = false, want true", i)
		}
	}
	if _, err := s.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	writes := dev.Writes()
	if !seqFlag(writes[len(writes)-1]) {
		t.Error("command after Sync sent with clear flag")
	}
}

func TestResetClearsKey(t *testing.T) {
	s, dev := negotiated(t)
	ctx := context.Background()

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if key, _ := s.EncryptionKey(ctx); key != nil {
		t.Error("host key kept after Reset")
	}
	if _, ok := dev.Key(); ok {
		t.Error("device key kept after Reset")
	}

	poll, err := s.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll() after Reset error = %v", err)
	}
	found := false
	for _, e := range poll.Events {
		if e.Code == ssp.EventSlaveReset {
			found = true
		}
	}
	if !found {
		t.Errorf("Poll() events = %v, want SlaveReset", poll.Events)
	}
}

func TestBarcodeReader(t *testing.T) {
	fitted := ssp.BarcodeConfiguration{
		Hardware:   ssp.BarcodeHardwareBoth,
		Enabled:    ssp.BarcodeEnabledNone,
		Format:     ssp.BarcodeFormatInterleaved2of5,
		Characters: 18,
	}
	s, dev := newSimSession(t, sim.WithBarcodeReader(fitted))
	ctx := context.Background()

	has, err := s.HasBarcodeReader(ctx)
	if err != nil || !has {
		t.Fatalf("HasBarcodeReader() = %v, %v, want true", has, err)
	}

	want := fitted
	want.Enabled = ssp.BarcodeEnabledTop
	if _, err := s.SetBarcodeReaderConfiguration(ctx, want); err != nil {
		t.Fatalf("SetBarcodeReaderConfiguration() error = %v", err)
	}
	got, err := s.GetBarcodeReaderConfiguration(ctx)
	if err != nil {
		t.Fatalf("GetBarcodeReaderConfiguration() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("barcode configuration mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.SetBarcodeInhibit(ctx, 0x02); err != nil {
		t.Fatalf("SetBarcodeInhibit() error = %v", err)
	}
	inhibit, err := s.GetBarcodeInhibit(ctx)
	if err != nil || inhibit != 0x02 {
		t.Errorf("GetBarcodeInhibit() = %#x, %v, want 0x02", inhibit, err)
	}

	dev.SetTicket("123456789012345678")
	data, err := s.GetBarcodeData(ctx)
	if err != nil {
		t.Fatalf("GetBarcodeData() error = %v", err)
	}
	if data.Ticket != "123456789012345678" {
		t.Errorf("GetBarcodeData().Ticket = %q", data.Ticket)
	}
}

func TestNoBarcodeReader(t *testing.T) {
	s, _ := newSimSession(t)
	ctx := context.Background()

	has, err := s.HasBarcodeReader(ctx)
	if err != nil || has {
		t.Fatalf("HasBarcodeReader() = %v, %v, want false", has, err)
	}
	_, err = s.SetBarcodeReaderConfiguration(ctx, ssp.BarcodeConfiguration{Enabled: ssp.BarcodeEnabledTop})
	if st, _ := StatusOf(err); !IsStatus(err) || st != ssp.StatusCannotBeProcessed {
		t.Errorf("SetBarcodeReaderConfiguration() error = %v, want CannotBeProcessed status", err)
	}
}

func TestNonOKStatusReturnsResponse(t *testing.T) {
	s, dev := newSimSession(t)
	dev.RespondNext(ssp.CmdEnable, ssp.StatusCommandNotKnown)

	resp, err := s.Enable(context.Background())
	if !IsStatus(err) {
		t.Fatalf("Enable() error = %v, want Status", err)
	}
	if resp == nil || resp.Status != ssp.StatusCommandNotKnown {
		t.Errorf("Enable() response = %v, want CommandNotKnown", resp)
	}
	if !IsRetryable(err) {
		t.Error("status error not retryable")
	}
}
