package ssp

import (
	"testing"
)

func TestIntermediateKey(t *testing.T) {
	tests := []struct {
		g    GeneratorKey
		r    RandomKey
		m    ModulusKey
		want IntermediateKey
	}{
		{11, 3, 7, 1}, // 1331 mod 7
		{23, 6, 5, 4}, // 148035889 mod 5
		{982451653, 1, 7919, 982451653 % 7919},
		{5, 5, 0, 0},
	}

	for _, tt := range tests {
		if got := NewIntermediateKey(tt.g, tt.r, tt.m); got != tt.want {
			t.Errorf("NewIntermediateKey(%d, %d, %d) = %d, want %d", tt.g, tt.r, tt.m, got, tt.want)
		}
	}
}

func TestKeyAgreement(t *testing.T) {
	const (
		g          = GeneratorKey(982451653)
		m          = ModulusKey(961748941)
		hostRand   = RandomKey(123456789)
		deviceRand = RandomKey(987654321)
	)

	hostInter := NewIntermediateKey(g, hostRand, m)
	deviceInter := NewIntermediateKey(g, deviceRand, m)

	hostSecret := NewEncryptionKey(deviceInter, hostRand, m)
	deviceSecret := NewEncryptionKey(hostInter, deviceRand, m)

	if hostSecret != deviceSecret {
		t.Errorf("secrets differ: host=%d device=%d", hostSecret, deviceSecret)
	}
}

func TestNewAesKey(t *testing.T) {
	key := NewAesKey(DefaultFixedKey, 0x1122334455667788)

	want := AesKey{
		0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11,
		0x67, 0x45, 0x23, 0x01, 0x67, 0x45, 0x23, 0x01,
	}
	if key != want {
		t.Errorf("NewAesKey() = % x, want % x", key[:], want[:])
	}
	if key.Secret() != 0x1122334455667788 {
		t.Errorf("Secret() = 0x%x", uint64(key.Secret()))
	}
	if key.Fixed() != DefaultFixedKey {
		t.Errorf("Fixed() = 0x%x, want 0x%x", uint64(key.Fixed()), uint64(DefaultFixedKey))
	}
	if key.String() != "AesKey{redacted}" {
		t.Errorf("String() = %q leaks key material", key.String())
	}
}
