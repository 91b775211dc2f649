// Package ssp implements the SSP/eSSP wire codec used by cash handling
// peripherals (note validators, hoppers, coin mechanisms).
//
// This package handles construction, encoding and decoding of SSP frames and
// the encrypted eSSP envelope. It holds no connection state: sequencing,
// locking and retries live in the device package.
//
// # Frame Format
//
// Every exchange on the serial line is a single frame:
//   - STX: 0x7F
//   - SEQ/ID: bit 7 is the sequence flag, bits 0-6 the slave address
//   - LEN: number of data bytes (0-255)
//   - DATA: command code + parameters, or status + payload in responses
//   - CRC: CRC-16 (poly 0x8005, seed 0xFFFF) over SEQ..DATA, low byte first
//
// The codec does not byte-stuff STX values inside the frame. Frames are read
// by their LEN byte.
//
// # Encrypted Envelope
//
// Once a key has been negotiated, command data is wrapped as
//
//	STEX (0x7E) + AES-128-ECB( eLEN | eCOUNT | eDATA | packing | eCRC )
//
// eCOUNT is a 32-bit little-endian packet counter, packing is random filler
// that pads the plaintext to a whole number of AES blocks and eCRC is the same
// CRC-16 computed over everything before it.
//
// # Usage Example
//
//	cmd := ssp.NewCommand(ssp.CmdPoll)
//	cmd.SetFlag(true)
//	raw, err := cmd.Encode()
//	if err != nil {
//	    return err
//	}
//	// write raw, read a response frame into buf
//	resp, err := ssp.Decode(buf, ssp.CmdPoll)
//	if err != nil {
//	    return err
//	}
//	poll, err := ssp.ParsePoll(resp)
package ssp
