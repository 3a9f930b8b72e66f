// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sss.
//
// go-sss is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package shuffle obfuscates share values with a password so that a stolen
// share file is useless without it. Each block of BlockSize consecutive
// values of one share is masked with a keyed pseudorandom field element per
// position and then permuted. Both the masks and the permutation come from a
// ChaCha20 keystream bound to the share's x-coordinate and the block index,
// so blocks can be processed independently while streaming.
package shuffle

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/chacha20"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/codec"
)

const (
	// BlockSize is the number of consecutive share values permuted together.
	BlockSize = 256

	saltLabel = "go-sss/shuffle/v1"
	infoLabel = "go-sss shuffle key"
	keySize   = chacha20.KeySize
)

var (
	// ErrEmptyPassword is returned when no password is supplied.
	ErrEmptyPassword = errors.New("shuffle: password cannot be empty")

	// ErrInvalidPrime is returned for a missing or non-positive prime.
	ErrInvalidPrime = errors.New("shuffle: invalid prime")

	// ErrInvalidX is returned for a share coordinate outside 1..2^32-1.
	ErrInvalidX = errors.New("shuffle: invalid x-coordinate")

	// ErrBlockTooLarge is returned for a block longer than BlockSize.
	ErrBlockTooLarge = errors.New("shuffle: block exceeds block size")

	// ErrValueOutOfRange is returned for a share value that is not a field
	// element. Share files never contain such values unless corrupted.
	ErrValueOutOfRange = errors.New("shuffle: value out of range")
)

// Shuffler applies and removes the password-keyed transform. It holds no
// per-stream state and is safe for concurrent use.
type Shuffler struct {
	key    [keySize]byte
	prime  *big.Int
	params kdf.KDFParams
}

// Salt returns the KDF salt for prime. The salt is fixed per prime so the
// same password and prime always derive the same key.
func Salt(prime *big.Int) []byte {
	h := sha256.New()
	h.Write([]byte(saltLabel))
	h.Write(codec.SignedBytes(prime))
	return h.Sum(nil)
}

// New derives the shuffle key from password. A nil params selects the
// default Argon2id cost. The key length is always 32 bytes.
func New(password []byte, prime *big.Int, params *kdf.KDFParams) (*Shuffler, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if prime == nil || prime.Sign() <= 0 {
		return nil, ErrInvalidPrime
	}
	if params == nil {
		params = kdf.DefaultParams(kdf.DefaultAlgorithm)
	}

	p := params.WithSalt(Salt(prime), []byte(infoLabel))
	p.KeyLength = keySize
	key, err := kdf.Derive(password, p)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shuffle key: %w", err)
	}

	s := &Shuffler{prime: new(big.Int).Set(prime), params: *p}
	s.params.Salt = nil
	s.params.Info = nil
	copy(s.key[:], key)
	clear(key)
	return s, nil
}

// Params returns the KDF parameters the key was derived with, without salt.
func (s *Shuffler) Params() kdf.KDFParams {
	return s.params
}

// Destroy zeroes the derived key.
func (s *Shuffler) Destroy() {
	clear(s.key[:])
}

// Shuffle masks and permutes values in place. values is block number block
// of the share at x and may be shorter than BlockSize only for a share's
// final block. Elements must not alias each other.
func (s *Shuffler) Shuffle(x int, block uint64, values []*big.Int) error {
	masks, swaps, err := s.schedule(x, block, values)
	if err != nil {
		return err
	}
	for i, v := range values {
		v.Add(v, masks[i])
		if v.Cmp(s.prime) >= 0 {
			v.Sub(v, s.prime)
		}
	}
	for i := len(values) - 1; i > 0; i-- {
		j := swaps[i]
		values[i], values[j] = values[j], values[i]
	}
	return nil
}

// Unshuffle is the exact inverse of Shuffle for the same x and block.
func (s *Shuffler) Unshuffle(x int, block uint64, values []*big.Int) error {
	masks, swaps, err := s.schedule(x, block, values)
	if err != nil {
		return err
	}
	for i := 1; i < len(values); i++ {
		j := swaps[i]
		values[i], values[j] = values[j], values[i]
	}
	for i, v := range values {
		v.Sub(v, masks[i])
		if v.Sign() < 0 {
			v.Add(v, s.prime)
		}
	}
	return nil
}

// ShuffleShare applies Shuffle to every block of a complete share.
func (s *Shuffler) ShuffleShare(share *codec.Share) error {
	return s.eachBlock(share, s.Shuffle)
}

// UnshuffleShare applies Unshuffle to every block of a complete share.
func (s *Shuffler) UnshuffleShare(share *codec.Share) error {
	return s.eachBlock(share, s.Unshuffle)
}

func (s *Shuffler) eachBlock(share *codec.Share, fn func(int, uint64, []*big.Int) error) error {
	for off, block := 0, uint64(0); off < len(share.Values); off, block = off+BlockSize, block+1 {
		end := min(off+BlockSize, len(share.Values))
		if err := fn(share.X, block, share.Values[off:end]); err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
	}
	return nil
}

// schedule draws the masks and the Fisher-Yates swap targets for one block.
// Masks are drawn first, then swaps for i = n-1 down to 1, so both
// directions consume the keystream identically.
func (s *Shuffler) schedule(x int, block uint64, values []*big.Int) ([]*big.Int, []int, error) {
	if x < 1 || uint64(x) > 0xFFFFFFFF {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidX, x)
	}
	if len(values) > BlockSize {
		return nil, nil, fmt.Errorf("%w: %d values", ErrBlockTooLarge, len(values))
	}
	for i, v := range values {
		if v == nil || v.Sign() < 0 || v.Cmp(s.prime) >= 0 {
			return nil, nil, fmt.Errorf("%w: position %d", ErrValueOutOfRange, i)
		}
	}

	ks, err := newKeystream(s.key[:], uint32(x), block)
	if err != nil {
		return nil, nil, err
	}

	masks := make([]*big.Int, len(values))
	for i := range masks {
		masks[i] = ks.below(s.prime)
	}
	swaps := make([]int, len(values))
	for i := len(values) - 1; i > 0; i-- {
		swaps[i] = ks.intn(i + 1)
	}
	return masks, swaps, nil
}

// keystream is a ChaCha20 stream used as a deterministic sampler.
type keystream struct {
	cipher *chacha20.Cipher
	buf    []byte
}

func newKeystream(key []byte, x uint32, block uint64) (*keystream, error) {
	var nonce [chacha20.NonceSize]byte
	binary.BigEndian.PutUint32(nonce[:4], x)
	binary.BigEndian.PutUint64(nonce[4:], block)
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		return nil, err
	}
	return &keystream{cipher: c}, nil
}

func (k *keystream) read(n int) []byte {
	if cap(k.buf) < n {
		k.buf = make([]byte, n)
	}
	b := k.buf[:n]
	clear(b)
	k.cipher.XORKeyStream(b, b)
	return b
}

// below returns a uniform value in [0, p) by rejection sampling on
// bitlen(p)-bit candidates.
func (k *keystream) below(p *big.Int) *big.Int {
	bits := p.BitLen()
	n := (bits + 7) / 8
	top := byte(0xFF >> (8*n - bits))
	v := new(big.Int)
	for {
		b := k.read(n)
		b[0] &= top
		v.SetBytes(b)
		if v.Cmp(p) < 0 {
			return v
		}
	}
}

// intn returns a uniform int in [0, n) for 0 < n <= 2^32.
func (k *keystream) intn(n int) int {
	bound := uint64(n)
	limit := (1 << 32) - (1<<32)%bound
	for {
		v := uint64(binary.BigEndian.Uint32(k.read(4)))
		if v < limit {
			return int(v % bound)
		}
	}
}
