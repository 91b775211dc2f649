package ssp

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Envelope plaintext layout
const (
	envLenSize     = 1
	envCountSize   = 4
	envHeaderSize  = envLenSize + envCountSize
	envMetadata    = envHeaderSize + ChecksumSize
	maxEnvelopeLen = MaxDataLen - 1 // room for STEX
)

// Seal encrypts data as an eSSP envelope for packet count.
//
// Returns STEX followed by the ciphertext. The plaintext is
// eLEN | eCOUNT | data | packing | eCRC, with random packing so that its length
// is a multiple of the AES block size.
func Seal(data []byte, key AesKey, count uint32) ([]byte, error) {
	size := envMetadata + len(data)
	if rem := size % aes.BlockSize; rem != 0 {
		size += aes.BlockSize - rem
	}
	if size > maxEnvelopeLen || len(data) > 0xFF {
		return nil, fmt.Errorf("%w: envelope of %d bytes", ErrDataTooLarge, size)
	}

	plain := make([]byte, 0, size)
	plain = append(plain, byte(len(data)))
	plain = binary.LittleEndian.AppendUint32(plain, count)
	plain = append(plain, data...)

	packing := make([]byte, size-len(plain)-ChecksumSize)
	if _, err := rand.Read(packing); err != nil {
		return nil, fmt.Errorf("failed to generate envelope packing: %w", err)
	}
	plain = append(plain, packing...)
	plain = appendCRC(plain)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, 1+len(plain))
	out[0] = STEX
	for i := 0; i < len(plain); i += aes.BlockSize {
		block.Encrypt(out[1+i:1+i+aes.BlockSize], plain[i:i+aes.BlockSize])
	}
	return out, nil
}

// Open decrypts an envelope produced by Seal and returns its packet count and
// inner data.
func Open(envelope []byte, key AesKey) (uint32, []byte, error) {
	if len(envelope) == 0 || envelope[0] != STEX {
		return 0, nil, ErrNotEncrypted
	}
	cipherText := envelope[1:]
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeSize, len(cipherText))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(cipherText))
	for i := 0; i < len(cipherText); i += aes.BlockSize {
		block.Decrypt(plain[i:i+aes.BlockSize], cipherText[i:i+aes.BlockSize])
	}

	if !checkCRC(plain) {
		return 0, nil, ErrEnvelopeChecksum
	}

	n := int(plain[0])
	if envMetadata+n > len(plain) {
		return 0, nil, fmt.Errorf("%w: eLEN=%d, plaintext=%d bytes", ErrEnvelopeLength, n, len(plain))
	}

	count := binary.LittleEndian.Uint32(plain[envLenSize:envHeaderSize])
	data := append([]byte(nil), plain[envHeaderSize:envHeaderSize+n]...)
	return count, data, nil
}

// Wrap returns an encrypted command carrying cmd for packet count. The
// wrapper keeps cmd's SEQ/ID byte.
func Wrap(cmd *Command, key AesKey, count uint32) (*Command, error) {
	sealed, err := Seal(cmd.Data(), key, count)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap %s: %w", cmd.Type, err)
	}
	return &Command{
		Type:       CmdEncrypted,
		SequenceID: cmd.SequenceID,
		Params:     sealed[1:],
	}, nil
}

// Unwrap opens an encrypted response and rebuilds it as a plain response to
// inner. The envelope count must equal expectedCount.
func Unwrap(resp *Response, inner CommandType, key AesKey, expectedCount uint32) (*Response, error) {
	if !resp.IsEncrypted() {
		return nil, ErrNotEncrypted
	}
	count, data, err := Open(resp.Data(), key)
	if err != nil {
		return nil, err
	}
	if count != expectedCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCounterMismatch, count, expectedCount)
	}
	return NewResponse(inner, resp.SequenceID, data)
}
