package ssp

import (
	"encoding/binary"
	"math/big"
)

// Key material exchanged during eSSP negotiation. All values travel on the
// wire as 8 little-endian bytes.
type (
	GeneratorKey    uint64 // prime base g shared with the device
	ModulusKey      uint64 // prime modulus m shared with the device, m < g
	RandomKey       uint64 // host secret exponent, never sent
	FixedKey        uint64 // upper half of the AES key
	IntermediateKey uint64 // g^secret mod m, exchanged in the clear
	EncryptionKey   uint64 // agreed secret, lower half of the AES key
)

// DefaultFixedKey is the factory fixed key of eSSP peripherals.
const DefaultFixedKey FixedKey = 0x0123456701234567

// NewIntermediateKey computes g^r mod m.
func NewIntermediateKey(g GeneratorKey, r RandomKey, m ModulusKey) IntermediateKey {
	return IntermediateKey(modExp(uint64(g), uint64(r), uint64(m)))
}

// NewEncryptionKey computes the shared secret peer^r mod m from the peer's
// intermediate key.
func NewEncryptionKey(peer IntermediateKey, r RandomKey, m ModulusKey) EncryptionKey {
	return EncryptionKey(modExp(uint64(peer), uint64(r), uint64(m)))
}

// modExp returns base^exp mod m, or 0 when m is 0.
func modExp(base, exp, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	b := new(big.Int).SetUint64(base)
	e := new(big.Int).SetUint64(exp)
	mod := new(big.Int).SetUint64(m)
	return new(big.Int).Exp(b, e, mod).Uint64()
}

// AesKeySize is the eSSP AES-128 key length.
const AesKeySize = 16

// AesKey is the session key: bytes 0-7 hold the negotiated secret and bytes
// 8-15 the fixed key, both little-endian.
type AesKey [AesKeySize]byte

// NewAesKey assembles the session key from the fixed key and the negotiated
// secret.
func NewAesKey(fixed FixedKey, secret EncryptionKey) AesKey {
	var k AesKey
	binary.LittleEndian.PutUint64(k[0:8], uint64(secret))
	binary.LittleEndian.PutUint64(k[8:16], uint64(fixed))
	return k
}

// Secret returns the negotiated half of the key.
func (k AesKey) Secret() EncryptionKey {
	return EncryptionKey(binary.LittleEndian.Uint64(k[0:8]))
}

// Fixed returns the fixed half of the key.
func (k AesKey) Fixed() FixedKey {
	return FixedKey(binary.LittleEndian.Uint64(k[8:16]))
}

// String never prints key bytes.
func (k AesKey) String() string { return "AesKey{redacted}" }
