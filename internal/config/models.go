package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/muurk/essp/internal/device"
	"github.com/muurk/essp/internal/ssp"
)

// CurrentVersion is the only supported file format version.
const CurrentVersion = 1

// Registry represents the entire configuration file.
type Registry struct {
	Version  int                       `yaml:"version"`
	Defaults *DeviceProfile            `yaml:"defaults,omitempty"`
	Devices  map[string]*DeviceProfile `yaml:"devices,omitempty"` // Keyed by profile name

	path string
}

// DeviceProfile describes how to talk to one peripheral. Zero values mean
// "inherit".
type DeviceProfile struct {
	Port             string `yaml:"port,omitempty"`               // e.g. /dev/ttyUSB0
	SlaveID          int    `yaml:"slave_id,omitempty"`           // bus address 0-127
	LockTimeoutMS    int    `yaml:"lock_timeout_ms,omitempty"`    // line and key lock bound
	ReadTimeoutMS    int    `yaml:"read_timeout_ms,omitempty"`    // single read bound
	RetryIntervalMS  int    `yaml:"retry_interval_ms,omitempty"`  // wait between failed writes
	MaxWriteAttempts int    `yaml:"max_write_attempts,omitempty"` // 0 = until the call's deadline
	PollIntervalMS   int    `yaml:"poll_interval_ms,omitempty"`   // background poll cadence
	FixedKey         string `yaml:"fixed_key,omitempty"`          // hex, e.g. 0x0123456701234567

	Nickname     string    `yaml:"nickname,omitempty"`
	SerialNumber uint32    `yaml:"serial_number,omitempty"` // last serial number read
	LastSeen     time.Time `yaml:"last_seen,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	d := device.DefaultConfig()
	return &Registry{
		Version: CurrentVersion,
		Defaults: &DeviceProfile{
			LockTimeoutMS:   int(d.LockTimeout / time.Millisecond),
			ReadTimeoutMS:   int(d.ReadTimeout / time.Millisecond),
			RetryIntervalMS: int(d.RetryInterval / time.Millisecond),
			PollIntervalMS:  int(d.PollInterval / time.Millisecond),
		},
		Devices: make(map[string]*DeviceProfile),
	}
}

// GetDevice retrieves a profile by name.
// Returns nil if the profile doesn't exist.
func (r *Registry) GetDevice(name string) *DeviceProfile {
	return r.Devices[name]
}

// EnsureDevice returns the named profile, creating an empty one if needed.
func (r *Registry) EnsureDevice(name string) *DeviceProfile {
	if r.Devices == nil {
		r.Devices = make(map[string]*DeviceProfile)
	}

	if p, exists := r.Devices[name]; exists {
		return p
	}

	p := &DeviceProfile{}
	r.Devices[name] = p
	return p
}

// UpdateDeviceLastSeen records a successful contact with the named device.
func (r *Registry) UpdateDeviceLastSeen(name string, serial uint32) {
	p := r.EnsureDevice(name)
	p.LastSeen = time.Now()
	p.SerialNumber = serial
}

// Resolve returns the named profile merged over the defaults section. An
// empty name resolves to the defaults alone.
func (r *Registry) Resolve(name string) (*DeviceProfile, error) {
	merged := DeviceProfile{}
	if r.Defaults != nil {
		merged = *r.Defaults
	}
	if name == "" {
		return &merged, nil
	}

	p := r.GetDevice(name)
	if p == nil {
		return nil, fmt.Errorf("no device profile named %q", name)
	}
	merged.merge(p)
	return &merged, nil
}

func (p *DeviceProfile) merge(o *DeviceProfile) {
	if o.Port != "" {
		p.Port = o.Port
	}
	if o.SlaveID != 0 {
		p.SlaveID = o.SlaveID
	}
	if o.LockTimeoutMS != 0 {
		p.LockTimeoutMS = o.LockTimeoutMS
	}
	if o.ReadTimeoutMS != 0 {
		p.ReadTimeoutMS = o.ReadTimeoutMS
	}
	if o.RetryIntervalMS != 0 {
		p.RetryIntervalMS = o.RetryIntervalMS
	}
	if o.MaxWriteAttempts != 0 {
		p.MaxWriteAttempts = o.MaxWriteAttempts
	}
	if o.PollIntervalMS != 0 {
		p.PollIntervalMS = o.PollIntervalMS
	}
	if o.FixedKey != "" {
		p.FixedKey = o.FixedKey
	}
	p.Nickname = o.Nickname
	p.SerialNumber = o.SerialNumber
	p.LastSeen = o.LastSeen
}

// Validate checks field ranges.
func (p *DeviceProfile) Validate() error {
	if p.SlaveID < 0 || p.SlaveID > 0x7F {
		return fmt.Errorf("slave_id %d out of range 0-127", p.SlaveID)
	}
	if p.PollIntervalMS != 0 && time.Duration(p.PollIntervalMS)*time.Millisecond < device.MinPollInterval {
		return fmt.Errorf("poll_interval_ms %d below protocol minimum %v", p.PollIntervalMS, device.MinPollInterval)
	}
	for name, v := range map[string]int{
		"lock_timeout_ms":    p.LockTimeoutMS,
		"read_timeout_ms":    p.ReadTimeoutMS,
		"retry_interval_ms":  p.RetryIntervalMS,
		"max_write_attempts": p.MaxWriteAttempts,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if _, err := p.fixedKey(); err != nil {
		return err
	}
	return nil
}

func (p *DeviceProfile) fixedKey() (ssp.FixedKey, error) {
	if p.FixedKey == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(p.FixedKey, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fixed_key %q: %w", p.FixedKey, err)
	}
	return ssp.FixedKey(v), nil
}

// SessionConfig converts the profile into session settings. Unset fields are
// left zero so the session applies protocol defaults. An unparsable fixed
// key is ignored; call Validate first to reject it.
func (p *DeviceProfile) SessionConfig() device.Config {
	fixed, _ := p.fixedKey()
	return device.Config{
		Path:             p.Port,
		SlaveID:          byte(p.SlaveID),
		LockTimeout:      ms(p.LockTimeoutMS),
		ReadTimeout:      ms(p.ReadTimeoutMS),
		RetryInterval:    ms(p.RetryIntervalMS),
		MaxWriteAttempts: p.MaxWriteAttempts,
		PollInterval:     ms(p.PollIntervalMS),
		FixedKey:         fixed,
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
