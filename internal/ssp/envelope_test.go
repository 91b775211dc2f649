package ssp

import (
	"bytes"
	"crypto/aes"
	"errors"
	"testing"
)

var testKey = NewAesKey(DefaultFixedKey, 0x0102030405060708)

func TestSealOpen(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"single byte", []byte{byte(CmdPoll)}},
		{"fills one block", bytes.Repeat([]byte{0xAA}, aes.BlockSize-envMetadata)},
		{"spills into second block", bytes.Repeat([]byte{0xBB}, aes.BlockSize-envMetadata+1)},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal(tt.data, testKey, 42)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if sealed[0] != STEX {
				t.Errorf("sealed[0] = 0x%02x, want STEX", sealed[0])
			}
			if (len(sealed)-1)%aes.BlockSize != 0 {
				t.Errorf("ciphertext length %d is not a multiple of %d", len(sealed)-1, aes.BlockSize)
			}

			count, data, err := Open(sealed, testKey)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if count != 42 {
				t.Errorf("count = %d, want 42", count)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("data = % x, want % x", data, tt.data)
			}
		})
	}
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := Seal([]byte{0x07}, testKey, 0)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	other := NewAesKey(DefaultFixedKey, 0x0807060504030201)
	if _, _, err := Open(sealed, other); !errors.Is(err, ErrEnvelopeChecksum) {
		t.Errorf("Open() error = %v, want %v", err, ErrEnvelopeChecksum)
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name     string
		envelope []byte
		wantErr  error
	}{
		{"plain data", []byte{0xF0}, ErrNotEncrypted},
		{"empty", nil, ErrNotEncrypted},
		{"partial block", append([]byte{STEX}, make([]byte, 10)...), ErrEnvelopeSize},
		{"no blocks", []byte{STEX}, ErrEnvelopeSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Open(tt.envelope, testKey); !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cmd := NewCommand(CmdPoll)
	cmd.SetFlag(true)

	wrapped, err := Wrap(cmd, testKey, 7)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if wrapped.Type != CmdEncrypted {
		t.Errorf("Type = %s, want %s", wrapped.Type, CmdEncrypted)
	}
	if wrapped.SequenceID != cmd.SequenceID {
		t.Errorf("SequenceID = %s, want %s", wrapped.SequenceID, cmd.SequenceID)
	}

	// Device answers with an envelope echoing the count.
	sealed, err := Seal([]byte{byte(StatusOK), byte(EventDisabled)}, testKey, 7)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	resp, err := NewResponse(CmdEncrypted, wrapped.SequenceID, sealed)
	if err != nil {
		t.Fatalf("NewResponse() error = %v", err)
	}

	plain, err := Unwrap(resp, CmdPoll, testKey, 7)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if plain.Command != CmdPoll || plain.Status != StatusOK {
		t.Errorf("Unwrap() = %s, want OK Poll response", plain)
	}

	want, _ := EncodeFrame(wrapped.SequenceID, []byte{byte(StatusOK), byte(EventDisabled)})
	if !bytes.Equal(plain.Raw, want) {
		t.Errorf("Raw = % x, want % x", plain.Raw, want)
	}

	if _, err := Unwrap(resp, CmdPoll, testKey, 8); !errors.Is(err, ErrCounterMismatch) {
		t.Errorf("Unwrap() with stale count error = %v, want %v", err, ErrCounterMismatch)
	}
}
