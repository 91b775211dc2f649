package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/essp/internal/config"
	"github.com/muurk/essp/internal/device"
	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp/sim"
	"github.com/muurk/essp/internal/ui"
)

// Global flags
var (
	configPath  string
	deviceName  string
	portPath    string
	logLevel    string
	simulate    bool
	encrypt     bool
	cmdTimeout  time.Duration
	negotiation int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to the device profile file (default: user config dir)")
	pf.StringVarP(&deviceName, "device", "d", "", "Device profile name")
	pf.StringVarP(&portPath, "port", "p", "", "Serial port (overrides the profile)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)
	pf.BoolVar(&simulate, "simulate", false, "Talk to an in-process simulated device instead of a serial port")
	pf.BoolVarP(&encrypt, "encrypt", "e", false, "Negotiate a key and run the command encrypted")
	pf.DurationVar(&cmdTimeout, "timeout", 30*time.Second, "Overall command timeout")
	pf.IntVar(&negotiation, "negotiate-attempts", 3, "Key exchange attempts before giving up")
}

// target is an open session plus the profile it was opened from.
type target struct {
	session  *device.Session
	registry *config.Registry
	name     string
	label    string
}

// openTarget resolves the selected profile and opens a session on it.
func openTarget() (*target, error) {
	reg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	prof, err := reg.Resolve(deviceName)
	if err != nil {
		return nil, err
	}
	if portPath != "" {
		prof.Port = portPath
	}
	if err := prof.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", deviceName, err)
	}

	cfg := prof.SessionConfig()
	t := &target{registry: reg, name: deviceName, label: cfg.Path}

	if simulate {
		t.label = "simulator"
		t.session, err = device.NewSession(sim.New(), cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("no serial port: pass --port or set port in the %q profile", deviceName)
	}
	t.session, err = device.Open(cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// prepare negotiates a key when --encrypt is set or the command requires it.
func (t *target) prepare(ctx context.Context, required bool) error {
	if !encrypt && !required {
		return nil
	}
	return t.session.Negotiate(ctx, negotiation)
}

// close records the contact in the profile file and closes the session.
func (t *target) close(ctx context.Context) {
	if t.name != "" && !simulate {
		t.touch(ctx)
	}
	if err := t.session.Close(); err != nil {
		logging.Warn("Failed to close session", zap.Error(err))
	}
}

func (t *target) touch(ctx context.Context) {
	serial, err := t.session.SerialNumber(ctx)
	if err != nil {
		logging.Debug("Skipping last-seen update", zap.Error(err))
		return
	}
	t.registry.UpdateDeviceLastSeen(t.name, serial)
	if err := t.registry.Save(); err != nil {
		logging.Warn("Failed to save profile", zap.String("path", t.registry.Path()), zap.Error(err))
	}
}

func (t *target) displayName() string {
	if t.name != "" {
		return t.name
	}
	return t.label
}

// withTarget opens a session, runs fn under the command timeout and prints
// a failure box on error.
func withTarget(title string, needKey bool, fn func(ctx context.Context, t *target, p *ui.Printer) error) error {
	p := ui.NewPrinter(os.Stdout)

	t, err := openTarget()
	if err != nil {
		p.PrintError(title+" failed", err, device.GetTroubleshootingHint(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	defer t.close(ctx)

	if err := t.prepare(ctx, needKey); err != nil {
		p.PrintError("Key exchange failed", err, device.GetTroubleshootingHint(err))
		return err
	}
	if err := fn(ctx, t, p); err != nil {
		p.PrintError(title+" failed", err, device.GetTroubleshootingHint(err))
		return err
	}
	return nil
}
