package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/essp/internal/config"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	// Flag values persist across Execute calls
	encrypt, simulate, resetYes, smartEmpty, pollAck = false, false, false, false, false
	deviceName, portPath, configPath = "", "", ""
	pollCount, negotiation, cmdTimeout = 1, 3, 30*time.Second

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestSimulatedCommands(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	tests := []struct {
		name string
		args []string
	}{
		{"info", []string{"info"}},
		{"poll plain", []string{"poll", "-n", "2"}},
		{"poll encrypted", []string{"poll", "--encrypt", "--ack"}},
		{"handshake", []string{"handshake"}},
		{"enable", []string{"enable"}},
		{"disable", []string{"disable"}},
		{"inhibits", []string{"inhibits", "0b111"}},
		{"empty", []string{"empty"}},
		{"smart empty", []string{"empty", "--smart"}},
		{"rekey", []string{"rekey"}},
		{"reset", []string{"reset", "--yes"}},
		{"bezel", []string{"bezel", "0xFF", "0", "0"}},
		{"barcode", []string{"barcode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--simulate", "--config", cfg)
			if err := execute(t, args...); err != nil {
				t.Errorf("essp %v: %v", tt.args, err)
			}
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad mask", []string{"inhibits", "banana", "--simulate"}},
		{"bad colour", []string{"bezel", "300", "0", "0", "--simulate"}},
		{"no port", []string{"info"}},
		{"announce without monitor", []string{"watch", "--announce", "x", "--simulate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--config", filepath.Join(t.TempDir(), "config.yaml"))
			if err := execute(t, args...); err == nil {
				t.Errorf("essp %v succeeded, want error", tt.args)
			}
		})
	}
}

func TestProfileSet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if err := execute(t, "profile", "set", "hopper",
		"--serial-port", "/dev/ttyUSB3", "--slave-id", "16", "--config", cfg); err != nil {
		t.Fatalf("profile set: %v", err)
	}

	reg, err := config.Load(cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := reg.GetDevice("hopper")
	if p == nil {
		t.Fatal("profile hopper not saved")
	}
	if p.Port != "/dev/ttyUSB3" || p.SlaveID != 16 {
		t.Errorf("profile = %+v, want port /dev/ttyUSB3 slave 16", p)
	}

	if err := execute(t, "profile", "set", "bad", "--slave-id", "200", "--config", cfg); err == nil {
		t.Error("profile set with slave 200 succeeded, want error")
	}
}

func TestWatchSimulated(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	watchTUI, monitorAddr, announceName = false, "", ""
	watchDuration = 0
	defer func() { watchDuration = 0 }()

	if err := execute(t, "watch", "--simulate", "--for", "300ms", "--monitor", "127.0.0.1:0", "--config", cfg); err != nil {
		t.Errorf("watch: %v", err)
	}
}
