package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/essp/internal/device"
	"github.com/muurk/essp/internal/ssp"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, "")
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "essp") {
		t.Errorf("GetConfigDir() = %v, should contain 'essp'", configDir)
	}
	if runtime.GOOS == "linux" && configDir != "/tmp/xdg/essp" {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/essp", configDir)
	}
}

func TestGetConfigDirOverride(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, "/srv/till/essp")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != "/srv/till/essp" {
		t.Errorf("GetConfigDir() = %q, want /srv/till/essp", dir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("NewRegistry().Version = %v, want %v", reg.Version, CurrentVersion)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Defaults.PollIntervalMS != 200 {
		t.Errorf("Defaults.PollIntervalMS = %v, want 200", reg.Defaults.PollIntervalMS)
	}
	if reg.Defaults.LockTimeoutMS != 5000 {
		t.Errorf("Defaults.LockTimeoutMS = %v, want 5000", reg.Defaults.LockTimeoutMS)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	p1 := reg.EnsureDevice("hopper")
	if p1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}
	if p2 := reg.EnsureDevice("hopper"); p1 != p2 {
		t.Error("EnsureDevice() should return same instance for same name")
	}
	if p3 := reg.EnsureDevice("validator"); p1 == p3 {
		t.Error("EnsureDevice() should create new instance for different name")
	}
}

func TestRegistryUpdateDeviceLastSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateDeviceLastSeen("hopper", 0x0012D687)
	after := time.Now()

	p := reg.GetDevice("hopper")
	if p == nil {
		t.Fatal("profile should exist after UpdateDeviceLastSeen()")
	}
	if p.SerialNumber != 0x0012D687 {
		t.Errorf("SerialNumber = %#x, want 0x12d687", p.SerialNumber)
	}
	if p.LastSeen.Before(before) || p.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", p.LastSeen, before, after)
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Devices["hopper"] = &DeviceProfile{
		Port:             "/dev/ttyUSB1",
		SlaveID:          0x10,
		PollIntervalMS:   500,
		MaxWriteAttempts: 4,
		FixedKey:         "0x1122334455667788",
	}

	got, err := reg.Resolve("hopper")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := device.Config{
		Path:             "/dev/ttyUSB1",
		SlaveID:          0x10,
		LockTimeout:      5 * time.Second,
		ReadTimeout:      10 * time.Second,
		RetryInterval:    200 * time.Millisecond,
		MaxWriteAttempts: 4,
		PollInterval:     500 * time.Millisecond,
		FixedKey:         ssp.FixedKey(0x1122334455667788),
	}
	if diff := cmp.Diff(want, got.SessionConfig()); diff != "" {
		t.Errorf("SessionConfig() mismatch (-want +got):\n%s", diff)
	}

	if _, err := reg.Resolve("missing"); err == nil {
		t.Error("Resolve(missing) error = nil, want error")
	}

	defaults, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error = %v", err)
	}
	if defaults.Port != "" || defaults.PollIntervalMS != 200 {
		t.Errorf("Resolve(\"\") = %+v, want defaults only", defaults)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile DeviceProfile
		wantErr bool
	}{
		{"empty", DeviceProfile{}, false},
		{"full", DeviceProfile{SlaveID: 0x7F, PollIntervalMS: 200, FixedKey: "0x01"}, false},
		{"slave out of range", DeviceProfile{SlaveID: 0x80}, true},
		{"poll too fast", DeviceProfile{PollIntervalMS: 50}, true},
		{"negative timeout", DeviceProfile{LockTimeoutMS: -1}, true},
		{"bad fixed key", DeviceProfile{FixedKey: "zz"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of missing file error = %v", err)
	}
	if reg.Path() != path {
		t.Errorf("Path() = %q, want %q", reg.Path(), path)
	}

	p := reg.EnsureDevice("hopper")
	p.Port = "/dev/ttyACM0"
	p.Nickname = "Till 2"
	p.RetryIntervalMS = 250
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.yaml" {
		t.Errorf("config dir holds %v, want only config.yaml", entries)
	}
	if info, err := os.Stat(path); err == nil && runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(reg.Devices, loaded.Devices); diff != "" {
		t.Errorf("loaded devices mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong version", "version: 2\n"},
		{"not yaml", "version: [\n"},
		{"invalid profile", "version: 1\ndevices:\n  hopper:\n    slave_id: 200\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
