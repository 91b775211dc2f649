// Package config manages the YAML file of named serial device profiles.
//
// A profile records how to reach one SSP peripheral: the serial port, bus
// address, lock and read timeouts, write retry bound, and background poll
// cadence. Durations are written in milliseconds. Fields left unset in a
// profile fall back to the file's defaults section, then to the protocol
// defaults.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/essp/config.yaml or $HOME/.config/essp/config.yaml
//   - macOS: $HOME/.config/essp/config.yaml
//   - Windows: %LOCALAPPDATA%\essp\config.yaml
//
// Negotiated encryption keys are never written to this file.
//
// # Usage Example
//
//	reg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	profile, err := reg.Resolve("hopper")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := device.Open(profile.SessionConfig())
package config
