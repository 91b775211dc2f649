// Package device manages a secure serial session with an SSP/eSSP cash
// peripheral.
//
// A Session owns one serial connection. It frames and sequences every
// request/response pair, retries failed writes, negotiates an AES key with
// the device over a Diffie-Hellman style handshake and, once a key exists,
// carries every command inside an encrypted envelope. A background poller
// keeps the device alive while foreground operations run.
//
// # Concurrency
//
// The serial line and the key material each sit behind a bounded-wait lock
// (DefaultLockTimeout). Every exchange takes the line first and the key
// second, and holds both until the response frame has been read, so a
// background poll can never interleave with a foreground command. Lock
// timeouts are returned to the caller and never retried.
//
// # Sequence Flag
//
// Each frame carries a sequence bit. The session stamps the next command
// with its current flag; a failed write is retried with the bit toggled, and
// a successful write leaves the session flag at the complement of the bit
// that went out. Sync forces the next flag to set.
//
// # Errors
//
// All failures are *SessionError values classified by ErrorType:
//   - Timeout: a lock wait, serial read or caller deadline expired
//   - Framing: the response did not start with STX
//   - Encryption: no key negotiated, or the device rejected an envelope
//   - Transport: the serial line failed or closed mid-frame
//   - Decode: a complete frame could not be read as the expected response
//   - Status: the device answered with a non-OK status
//   - Entropy: key material could not be drawn
//
// # Usage Example
//
//	s, err := device.Open(device.Config{Path: "/dev/ttyUSB0"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.Sync(ctx); err != nil {
//	    return err
//	}
//	if err := s.Negotiate(ctx, 3); err != nil {
//	    return err
//	}
//	if err := s.StartBackgroundPolling(ctx); err != nil {
//	    return err
//	}
//	if _, err := s.Enable(ctx); err != nil {
//	    return err
//	}
package device
