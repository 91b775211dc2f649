package ssp

import (
	"encoding/binary"
	"fmt"
)

// CommandType is the first data byte of a command frame.
type CommandType byte

// Command codes
const (
	CmdReset                  CommandType = 0x01
	CmdSetInhibits            CommandType = 0x02
	CmdDisplayOn              CommandType = 0x03
	CmdDisplayOff             CommandType = 0x04
	CmdSetupRequest           CommandType = 0x05
	CmdHostProtocolVersion    CommandType = 0x06
	CmdPoll                   CommandType = 0x07
	CmdReject                 CommandType = 0x08
	CmdDisable                CommandType = 0x09
	CmdEnable                 CommandType = 0x0A
	CmdSerialNumber           CommandType = 0x0C
	CmdUnitData               CommandType = 0x0D
	CmdChannelValueData       CommandType = 0x0E
	CmdSync                   CommandType = 0x11
	CmdLastRejectCode         CommandType = 0x17
	CmdHold                   CommandType = 0x18
	CmdGetBarcodeReaderConfig CommandType = 0x23
	CmdSetBarcodeReaderConfig CommandType = 0x24
	CmdGetBarcodeInhibit      CommandType = 0x25
	CmdSetBarcodeInhibit      CommandType = 0x26
	CmdGetBarcodeData         CommandType = 0x27
	CmdEmpty                  CommandType = 0x3F
	CmdSetGenerator           CommandType = 0x4A
	CmdSetModulus             CommandType = 0x4B
	CmdRequestKeyExchange     CommandType = 0x4C
	CmdSmartEmpty             CommandType = 0x52
	CmdConfigureBezel         CommandType = 0x54
	CmdPollWithAck            CommandType = 0x56
	CmdEventAck               CommandType = 0x57
	CmdSetEncryptionKey       CommandType = 0x60
	CmdEncryptionReset        CommandType = 0x61

	// CmdEncrypted marks a command whose data is an eSSP envelope.
	CmdEncrypted CommandType = STEX
)

var commandNames = map[CommandType]string{
	CmdReset:                  "Reset",
	CmdSetInhibits:            "SetInhibits",
	CmdDisplayOn:              "DisplayOn",
	CmdDisplayOff:             "DisplayOff",
	CmdSetupRequest:           "SetupRequest",
	CmdHostProtocolVersion:    "HostProtocolVersion",
	CmdPoll:                   "Poll",
	CmdReject:                 "Reject",
	CmdDisable:                "Disable",
	CmdEnable:                 "Enable",
	CmdSerialNumber:           "SerialNumber",
	CmdUnitData:               "UnitData",
	CmdChannelValueData:       "ChannelValueData",
	CmdSync:                   "Sync",
	CmdLastRejectCode:         "LastRejectCode",
	CmdHold:                   "Hold",
	CmdGetBarcodeReaderConfig: "GetBarcodeReaderConfiguration",
	CmdSetBarcodeReaderConfig: "SetBarcodeReaderConfiguration",
	CmdGetBarcodeInhibit:      "GetBarcodeInhibit",
	CmdSetBarcodeInhibit:      "SetBarcodeInhibit",
	CmdGetBarcodeData:         "GetBarcodeData",
	CmdEmpty:                  "Empty",
	CmdSetGenerator:           "SetGenerator",
	CmdSetModulus:             "SetModulus",
	CmdRequestKeyExchange:     "RequestKeyExchange",
	CmdSmartEmpty:             "SmartEmpty",
	CmdConfigureBezel:         "ConfigureBezel",
	CmdPollWithAck:            "PollWithAck",
	CmdEventAck:               "EventAck",
	CmdSetEncryptionKey:       "SetEncryptionKey",
	CmdEncryptionReset:        "EncryptionReset",
	CmdEncrypted:              "Encrypted",
}

func (c CommandType) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02x)", byte(c))
}

// RequiresEncryption reports whether the device only accepts c inside an
// encrypted envelope.
func (c CommandType) RequiresEncryption() bool {
	switch c {
	case CmdEmpty, CmdSmartEmpty, CmdSetEncryptionKey:
		return true
	}
	return false
}

// Command is a single SSP request.
type Command struct {
	Type       CommandType
	SequenceID SequenceID
	Params     []byte
}

// NewCommand creates a command for the default slave with a cleared sequence
// flag.
func NewCommand(t CommandType, params ...byte) *Command {
	return &Command{
		Type:       t,
		SequenceID: NewSequenceID(false, DefaultSlave),
		Params:     params,
	}
}

// Data returns the frame DATA bytes: the command code followed by parameters.
func (c *Command) Data() []byte {
	data := make([]byte, 0, 1+len(c.Params))
	data = append(data, byte(c.Type))
	return append(data, c.Params...)
}

// Encode returns the full wire frame for c.
func (c *Command) Encode() ([]byte, error) {
	return EncodeFrame(c.SequenceID, c.Data())
}

// Flag reports the command's sequence bit.
func (c *Command) Flag() bool { return c.SequenceID.Flag() }

// SetFlag sets the command's sequence bit.
func (c *Command) SetFlag(flag bool) { c.SequenceID = c.SequenceID.WithFlag(flag) }

// ToggleFlag inverts the command's sequence bit.
func (c *Command) ToggleFlag() { c.SetFlag(!c.Flag()) }

func (c *Command) String() string {
	return fmt.Sprintf("%s{%s, params=%d}", c.Type, c.SequenceID, len(c.Params))
}

// EnableBitfield selects accepted note channels; bit n enables channel n+1.
type EnableBitfield uint16

// NewSetInhibitsCommand builds a SetInhibits command for the given channels.
func NewSetInhibitsCommand(channels EnableBitfield) *Command {
	return NewCommand(CmdSetInhibits, byte(channels), byte(channels>>8))
}

// NewHostProtocolVersionCommand builds a HostProtocolVersion command.
func NewHostProtocolVersionCommand(version byte) *Command {
	return NewCommand(CmdHostProtocolVersion, version)
}

// NewSetGeneratorCommand builds a SetGenerator command.
func NewSetGeneratorCommand(g GeneratorKey) *Command {
	return NewCommand(CmdSetGenerator, uint64Bytes(uint64(g))...)
}

// NewSetModulusCommand builds a SetModulus command.
func NewSetModulusCommand(m ModulusKey) *Command {
	return NewCommand(CmdSetModulus, uint64Bytes(uint64(m))...)
}

// NewRequestKeyExchangeCommand builds a RequestKeyExchange command carrying
// the host intermediate key.
func NewRequestKeyExchangeCommand(inter IntermediateKey) *Command {
	return NewCommand(CmdRequestKeyExchange, uint64Bytes(uint64(inter))...)
}

// NewSetEncryptionKeyCommand builds a SetEncryptionKey command carrying a new
// fixed key.
func NewSetEncryptionKeyCommand(fixed FixedKey) *Command {
	return NewCommand(CmdSetEncryptionKey, uint64Bytes(uint64(fixed))...)
}

// NewSetBarcodeInhibitCommand builds a SetBarcodeInhibit command.
func NewSetBarcodeInhibitCommand(inhibit BarcodeInhibit) *Command {
	return NewCommand(CmdSetBarcodeInhibit, byte(inhibit))
}

// NewSetBarcodeReaderConfigCommand builds a SetBarcodeReaderConfiguration
// command.
func NewSetBarcodeReaderConfigCommand(cfg BarcodeConfiguration) *Command {
	return NewCommand(CmdSetBarcodeReaderConfig, byte(cfg.Enabled), byte(cfg.Format), cfg.Characters)
}

// BezelStorage selects whether a bezel colour survives a power cycle.
type BezelStorage byte

const (
	BezelRAM    BezelStorage = 0x00
	BezelEEPROM BezelStorage = 0x01
)

// NewConfigureBezelCommand builds a ConfigureBezel command.
func NewConfigureBezelCommand(r, g, b byte, storage BezelStorage) *Command {
	return NewCommand(CmdConfigureBezel, r, g, b, byte(storage))
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
