package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/muurk/essp/internal/serialport"
	"github.com/muurk/essp/internal/ssp"
)

func TestSessionErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *SessionError
		want string
	}{
		{
			name: "status",
			err:  newStatusError("Enable", ssp.StatusCommandNotKnown),
			want: "Device Status: Enable: device rejected command (status CommandNotKnown)",
		},
		{
			name: "wrapped cause",
			err:  newTransportError("Poll", "write failed after 3 attempts", io.ErrClosedPipe),
			want: "Transport Error: Poll: write failed after 3 attempts (caused by: io: read/write on closed pipe)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		is        func(error) bool
		retryable bool
	}{
		{"timeout", newTimeoutError("Poll", "busy", nil), IsTimeout, true},
		{"framing", newFramingError("Poll", "bad start", ssp.ErrInvalidSTX), IsFraming, true},
		{"encryption", newEncryptionError("Empty", ssp.StatusKeyNotSet, "no key", errKeyNotSet), IsEncryption, true},
		{"transport", newTransportError("Poll", "closed", io.EOF), IsTransport, false},
		{"decode", newDecodeError("Poll", "bad crc", ssp.ErrChecksum), IsDecode, false},
		{"status", newStatusError("Poll", ssp.StatusFail), IsStatus, true},
		{"entropy", newEntropyError("modulus", "exhausted", nil), IsEntropy, false},
		{"wrapped", fmt.Errorf("outer: %w", newDecodeError("Poll", "x", nil)), IsDecode, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.is(tt.err) {
				t.Errorf("predicate(%v) = false, want true", tt.err)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}

	if IsTimeout(errors.New("plain")) || IsRetryable(errors.New("plain")) {
		t.Error("plain error matched a session error predicate")
	}
}

func TestClassifyIOError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
	}{
		{"serial timeout", serialport.ErrTimeout, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"end of stream", io.ErrUnexpectedEOF, false},
		{"closed", io.ErrClosedPipe, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyIOError("Poll", "read failed", tt.err)
			if IsTimeout(err) != tt.wantTimeout {
				t.Errorf("IsTimeout(%v) = %v, want %v", err, IsTimeout(err), tt.wantTimeout)
			}
			if !tt.wantTimeout && !IsTransport(err) {
				t.Errorf("IsTransport(%v) = false, want true", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error chain does not contain %v", tt.err)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	if st, ok := StatusOf(newStatusError("Poll", ssp.StatusFail)); !ok || st != ssp.StatusFail {
		t.Errorf("StatusOf() = %v, %v, want Fail, true", st, ok)
	}
	if _, ok := StatusOf(newTimeoutError("Poll", "busy", nil)); ok {
		t.Error("StatusOf() reported a status for a timeout")
	}
}

func TestTroubleshootingHints(t *testing.T) {
	errs := []error{
		newTimeoutError("Poll", "busy", nil),
		newFramingError("Poll", "bad", nil),
		newEncryptionError("Empty", ssp.StatusKeyNotSet, "no key", nil),
		newTransportError("Poll", "closed", nil),
		newDecodeError("Poll", "bad", nil),
		newStatusError("Poll", ssp.StatusFail),
		newEntropyError("random", "zeros", nil),
	}
	for _, err := range errs {
		if hint := GetTroubleshootingHint(err); hint == "" {
			t.Errorf("GetTroubleshootingHint(%v) is empty", err)
		}
		if msg := GetShortErrorMessage(err); msg == "" {
			t.Errorf("GetShortErrorMessage(%v) is empty", err)
		}
	}
	if msg := GetShortErrorMessage(newStatusError("Poll", ssp.StatusFail)); !strings.Contains(msg, "Fail") {
		t.Errorf("GetShortErrorMessage() = %q, want status name", msg)
	}
}
