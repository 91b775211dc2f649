package ssp

import (
	"fmt"
)

// Frame markers
const (
	STX  = 0x7F // start of every frame
	STEX = 0x7E // first data byte of an encrypted envelope
)

// Frame layout
const (
	HeaderSize   = 3 // STX, SEQ/ID, LEN
	ChecksumSize = 2 // CRC-L, CRC-H
	MetadataSize = HeaderSize + ChecksumSize
	MaxDataLen   = 255
	MaxFrameSize = MetadataSize + MaxDataLen

	IndexSTX   = 0
	IndexSeqID = 1
	IndexLen   = 2
	IndexData  = 3
)

const (
	seqFlagBit   = 0x80
	slaveIDMask  = 0x7F
	DefaultSlave = 0x00
)

// SequenceID is the SEQ/ID byte of a frame: the sequence flag in bit 7 and the
// slave address in the low seven bits.
type SequenceID byte

// NewSequenceID builds a SEQ/ID byte for the given flag and slave address.
func NewSequenceID(flag bool, slave byte) SequenceID {
	id := SequenceID(slave & slaveIDMask)
	if flag {
		id |= seqFlagBit
	}
	return id
}

// Flag reports whether the sequence bit is set.
func (s SequenceID) Flag() bool { return s&seqFlagBit != 0 }

// SlaveID returns the slave address.
func (s SequenceID) SlaveID() byte { return byte(s & slaveIDMask) }

// WithFlag returns a copy of s with the sequence bit set to flag.
func (s SequenceID) WithFlag(flag bool) SequenceID {
	return NewSequenceID(flag, s.SlaveID())
}

func (s SequenceID) String() string {
	flag := 0
	if s.Flag() {
		flag = 1
	}
	return fmt.Sprintf("seq=%d slave=0x%02x", flag, s.SlaveID())
}

// EncodeFrame builds a complete frame around data.
//
// Frame Structure:
//
//	[0]      0x7F     STX
//	[1]      seq      sequence flag | slave id
//	[2]      len      len(data)
//	[3..]    data     command or response data
//	[N-2:N]  crc      CRC-16 over [1..N-2), little-endian
func EncodeFrame(seq SequenceID, data []byte) ([]byte, error) {
	if len(data) > MaxDataLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(data))
	}

	frame := make([]byte, 0, MetadataSize+len(data))
	frame = append(frame, STX, byte(seq), byte(len(data)))
	frame = append(frame, data...)

	crc := CRC16(frame[IndexSeqID:])
	frame = append(frame, byte(crc), byte(crc>>8))
	return frame, nil
}

// ParseFrame validates a raw frame and returns its SEQ/ID byte and data.
//
// The returned data aliases raw.
func ParseFrame(raw []byte) (SequenceID, []byte, error) {
	if len(raw) < MetadataSize {
		return 0, nil, fmt.Errorf("%w: %d bytes (min %d)", ErrShortFrame, len(raw), MetadataSize)
	}
	if raw[IndexSTX] != STX {
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrInvalidSTX, raw[IndexSTX])
	}

	dataLen := int(raw[IndexLen])
	if len(raw) != MetadataSize+dataLen {
		return 0, nil, fmt.Errorf("%w: LEN=%d, frame=%d bytes", ErrLengthMismatch, dataLen, len(raw))
	}
	if !checkCRC(raw[IndexSeqID:]) {
		return 0, nil, ErrChecksum
	}

	return SequenceID(raw[IndexSeqID]), raw[IndexData : IndexData+dataLen], nil
}
