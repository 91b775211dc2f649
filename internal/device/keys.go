package device

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/marusama/semaphore"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp"
)

const (
	// primeBits is the size of generator and modulus primes.
	primeBits = 64

	// maxDraws bounds the redraw loops that reject degenerate values
	// (a repeated prime, a zero exponent). Only a broken source hits it.
	maxDraws = 128
)

// Entropy supplies key material.
type Entropy interface {
	// Prime returns a random prime of the given bit length.
	Prime(bits int) (uint64, error)
	// PrimeBelow returns a random prime p with 2 <= p < limit.
	PrimeBelow(limit uint64) (uint64, error)
	// Uint64 returns a uniformly random value.
	Uint64() (uint64, error)
}

var errNoPrimeBelow = errors.New("no prime below limit")

// CryptoEntropy draws key material from crypto/rand.
type CryptoEntropy struct{}

// Prime implements Entropy.
func (CryptoEntropy) Prime(bits int) (uint64, error) {
	p, err := rand.Prime(rand.Reader, bits)
	if err != nil {
		return 0, err
	}
	return p.Uint64(), nil
}

// PrimeBelow implements Entropy.
func (CryptoEntropy) PrimeBelow(limit uint64) (uint64, error) {
	if limit <= 2 {
		return 0, errNoPrimeBelow
	}
	bound := new(big.Int).SetUint64(limit)
	for {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return 0, err
		}
		if n.Uint64() >= 2 && n.ProbablyPrime(20) {
			return n.Uint64(), nil
		}
	}
}

// Uint64 implements Entropy.
func (CryptoEntropy) Uint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// keyStore holds the key exchange material and the negotiated AES key.
// Every field is guarded by sem.
type keyStore struct {
	sem     semaphore.Semaphore
	timeout time.Duration
	entropy Entropy

	generator ssp.GeneratorKey
	modulus   ssp.ModulusKey
	random    ssp.RandomKey
	fixed     ssp.FixedKey

	key   *ssp.AesKey
	count uint32
	// lost is set when an envelope was delivered but its reply was not
	// read back, so the device counter may be ahead of count.
	lost bool
}

// newKeyStore draws two distinct primes, keeping the larger as generator and
// the smaller as modulus, and a random exponent.
func newKeyStore(entropy Entropy, fixed ssp.FixedKey, timeout time.Duration) (*keyStore, error) {
	k := &keyStore{
		sem:     semaphore.New(1),
		timeout: timeout,
		entropy: entropy,
		fixed:   fixed,
	}
	g, m, err := k.drawPair()
	if err != nil {
		return nil, err
	}
	r, err := k.drawRandom()
	if err != nil {
		return nil, err
	}
	k.generator, k.modulus, k.random = g, m, r
	return k, nil
}

// KeyLease is exclusive access to the key material.
type KeyLease struct {
	store    *keyStore
	released *atomic.Bool
}

// Acquire waits up to the lock timeout, or until ctx is done, for the key
// material.
func (k *keyStore) Acquire(ctx context.Context) (*KeyLease, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.sem.Acquire(ctx, 1); err != nil {
		return nil, newTimeoutError("acquire key", "encryption key is busy", err)
	}
	return &KeyLease{store: k, released: atomic.NewBool(false)}, nil
}

// Release gives the key material back. Calling it more than once is harmless.
func (l *KeyLease) Release() {
	if l == nil {
		return
	}
	if l.released.CompareAndSwap(false, true) {
		l.store.sem.Release(1)
	}
}

// Key returns the active key, or nil before a key exchange.
func (l *KeyLease) Key() *ssp.AesKey {
	if l.store.key == nil {
		return nil
	}
	k := *l.store.key
	return &k
}

// Intermediate returns the host intermediate key g^r mod m.
func (l *KeyLease) Intermediate() ssp.IntermediateKey {
	s := l.store
	return ssp.NewIntermediateKey(s.generator, s.random, s.modulus)
}

// Install derives the AES key from the device intermediate key and makes it
// active. The packet counter restarts at zero.
func (l *KeyLease) Install(device ssp.IntermediateKey) {
	s := l.store
	secret := ssp.NewEncryptionKey(device, s.random, s.modulus)
	key := ssp.NewAesKey(s.fixed, secret)
	s.key = &key
	s.count = 0
	s.lost = false
	logging.Info("Encryption key installed")
}

// clear drops the active key.
func (l *KeyLease) clear() {
	if l.store.key != nil {
		logging.Debug("Encryption key cleared")
	}
	l.store.key = nil
	l.store.count = 0
	l.store.lost = false
}

func (l *KeyLease) counter() uint32 { return l.store.count }

func (l *KeyLease) advance() { l.store.count++ }

// InStep reports whether the host counter is known to match the device. It
// turns false after an envelope whose reply was lost and stays false until
// the next key exchange.
func (l *KeyLease) InStep() bool { return !l.store.lost }

func (l *KeyLease) markLost(op string, err error) {
	if l.store.key == nil || l.store.lost {
		return
	}
	l.store.lost = true
	logging.Warn("Encryption counter out of step, renegotiate the key",
		zap.String("op", op),
		zap.Uint32("count", l.store.count),
		zap.Error(err))
}

// RegenerateGenerator draws a new generator and clears the active key. The
// modulus is redrawn if it is no longer below the generator. Nothing is
// committed unless both draws succeed; the key is cleared either way.
func (k *keyStore) RegenerateGenerator(ctx context.Context) error {
	l, err := k.Acquire(ctx)
	if err != nil {
		return err
	}
	defer l.Release()
	defer l.clear()

	g, err := k.drawGenerator()
	if err != nil {
		return err
	}
	m := k.modulus
	if uint64(m) >= uint64(g) {
		if m, err = k.drawModulus(g); err != nil {
			return err
		}
	}
	k.generator, k.modulus = g, m
	return nil
}

// RegenerateModulus draws a new modulus below the generator and clears the
// active key.
func (k *keyStore) RegenerateModulus(ctx context.Context) error {
	l, err := k.Acquire(ctx)
	if err != nil {
		return err
	}
	defer l.Release()
	defer l.clear()

	m, err := k.drawModulus(k.generator)
	if err != nil {
		return err
	}
	k.modulus = m
	return nil
}

// RegenerateRandom draws a new exponent and clears the active key.
func (k *keyStore) RegenerateRandom(ctx context.Context) error {
	l, err := k.Acquire(ctx)
	if err != nil {
		return err
	}
	defer l.Release()
	defer l.clear()

	r, err := k.drawRandom()
	if err != nil {
		return err
	}
	k.random = r
	return nil
}

// CurrentKey returns a copy of the active key, or nil.
func (k *keyStore) CurrentKey(ctx context.Context) (*ssp.AesKey, error) {
	l, err := k.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Release()
	return l.Key(), nil
}

func (k *keyStore) drawGenerator() (ssp.GeneratorKey, error) {
	g, err := k.entropy.Prime(primeBits)
	if err != nil {
		return 0, newEntropyError("generator", "failed to draw prime", err)
	}
	return ssp.GeneratorKey(g), nil
}

// drawPair draws two distinct primes and orders them as generator > modulus.
func (k *keyStore) drawPair() (ssp.GeneratorKey, ssp.ModulusKey, error) {
	a, err := k.entropy.Prime(primeBits)
	if err != nil {
		return 0, 0, newEntropyError("generator", "failed to draw prime", err)
	}
	for i := 0; i < maxDraws; i++ {
		b, err := k.entropy.Prime(primeBits)
		if err != nil {
			return 0, 0, newEntropyError("modulus", "failed to draw prime", err)
		}
		if a == b {
			logging.Debug("Rejected repeated prime", zap.Int("draw", i+1))
			continue
		}
		return ssp.GeneratorKey(max(a, b)), ssp.ModulusKey(min(a, b)), nil
	}
	return 0, 0, newEntropyError("modulus", "entropy source repeated the same prime", nil)
}

func (k *keyStore) drawModulus(g ssp.GeneratorKey) (ssp.ModulusKey, error) {
	m, err := k.entropy.PrimeBelow(uint64(g))
	if err != nil {
		return 0, newEntropyError("modulus", "failed to draw prime", err)
	}
	if m < 2 || m >= uint64(g) {
		return 0, newEntropyError("modulus", "entropy source returned a prime outside the range", nil)
	}
	return ssp.ModulusKey(m), nil
}

func (k *keyStore) drawRandom() (ssp.RandomKey, error) {
	for i := 0; i < maxDraws; i++ {
		r, err := k.entropy.Uint64()
		if err != nil {
			return 0, newEntropyError("random", "failed to draw exponent", err)
		}
		if r != 0 {
			return ssp.RandomKey(r), nil
		}
	}
	return 0, newEntropyError("random", "entropy source returned only zeros", nil)
}

func (k *keyStore) drawFixed() (ssp.FixedKey, error) {
	f, err := k.entropy.Uint64()
	if err != nil {
		return 0, newEntropyError("fixed key", "failed to draw key", err)
	}
	return ssp.FixedKey(f), nil
}
