package ssp

import "errors"

// Codec errors. Callers wrap these with context using %w.
var (
	ErrInvalidSTX       = errors.New("invalid STX byte")
	ErrShortFrame       = errors.New("frame too short")
	ErrLengthMismatch   = errors.New("frame length does not match LEN byte")
	ErrChecksum         = errors.New("frame checksum mismatch")
	ErrDataTooLarge     = errors.New("frame data exceeds 255 bytes")
	ErrEmptyResponse    = errors.New("response carries no status byte")
	ErrPayloadLength    = errors.New("unexpected response payload length")
	ErrNotEncrypted     = errors.New("data is not an encrypted envelope")
	ErrEnvelopeSize     = errors.New("envelope is not a whole number of AES blocks")
	ErrEnvelopeLength   = errors.New("envelope eLEN exceeds decrypted data")
	ErrEnvelopeChecksum = errors.New("envelope checksum mismatch")
	ErrCounterMismatch  = errors.New("envelope counter mismatch")
)
