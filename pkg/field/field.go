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

// Package field implements arithmetic in the prime field GF(P) used by the
// secret sharing engine.
//
// Elements are represented as saferith.Nat values reduced modulo the session
// prime, which keeps the hot multiply/add paths constant-time with respect to
// the element values. A Field is immutable after construction and safe for
// concurrent use.
package field

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
)

const (
	// MinPrimeBits is the smallest prime width accepted. A 9-bit prime is the
	// narrowest that can hold every byte value.
	MinPrimeBits = 9

	// MaxPrimeBits bounds the prime width accepted from callers and from
	// untrusted prime records.
	MaxPrimeBits = 4096

	// DefaultPrimeBits is the prime width used when none is configured.
	DefaultPrimeBits = 64

	// MaxUnit is the largest secret unit value (one byte).
	MaxUnit = 0xFF

	// primalityRounds is the number of Miller-Rabin rounds applied to primes
	// that cross a storage boundary.
	primalityRounds = 32
)

var (
	// ErrNotPrime is returned when a supplied modulus is not prime.
	ErrNotPrime = errors.New("field: modulus is not prime")

	// ErrPrimeTooSmall is returned when the prime cannot hold a secret unit.
	ErrPrimeTooSmall = errors.New("field: prime too small")

	// ErrInvalidPrimeBits is returned for an out of range prime width.
	ErrInvalidPrimeBits = errors.New("field: invalid prime bit width")

	// ErrNotInvertible is returned when the inverse of zero is requested.
	ErrNotInvertible = errors.New("field: element not invertible")

	// ErrOutOfRange is returned when a value is negative or not below the prime.
	ErrOutOfRange = errors.New("field: value out of range")
)

// Field is the prime field GF(P).
type Field struct {
	prime   *big.Int
	modulus *saferith.Modulus
	bits    int
}

// GeneratePrime draws a random prime of exactly bits bits from r.
func GeneratePrime(r io.Reader, bits int) (*big.Int, error) {
	if bits < MinPrimeBits || bits > MaxPrimeBits {
		return nil, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidPrimeBits, bits, MinPrimeBits, MaxPrimeBits)
	}
	p, err := rand.Prime(r, bits)
	if err != nil {
		return nil, fmt.Errorf("field: failed to generate prime: %w", err)
	}
	return p, nil
}

// New returns the field defined by prime. The prime is validated because it
// is usually read back from a prime record written by another process.
func New(prime *big.Int) (*Field, error) {
	if prime == nil || prime.Sign() <= 0 {
		return nil, ErrNotPrime
	}
	if prime.BitLen() > MaxPrimeBits {
		return nil, fmt.Errorf("%w: %d bits exceeds %d", ErrInvalidPrimeBits, prime.BitLen(), MaxPrimeBits)
	}
	if prime.BitLen() < MinPrimeBits || prime.Cmp(big.NewInt(MaxUnit)) <= 0 {
		return nil, fmt.Errorf("%w: %s must exceed %d", ErrPrimeTooSmall, prime.String(), MaxUnit)
	}
	if !prime.ProbablyPrime(primalityRounds) {
		return nil, ErrNotPrime
	}

	p := new(big.Int).Set(prime)
	bits := p.BitLen()
	return &Field{
		prime:   p,
		modulus: saferith.ModulusFromNat(new(saferith.Nat).SetBig(p, bits)),
		bits:    bits,
	}, nil
}

// Prime returns a copy of the field prime.
func (f *Field) Prime() *big.Int {
	return new(big.Int).Set(f.prime)
}

// BitLen returns the bit width of the prime.
func (f *Field) BitLen() int {
	return f.bits
}

// Contains reports whether v is a canonical element, 0 <= v < P.
func (f *Field) Contains(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(f.prime) < 0
}

// FromBig converts a canonical big.Int into a field element.
func (f *Field) FromBig(v *big.Int) (*saferith.Nat, error) {
	if !f.Contains(v) {
		return nil, ErrOutOfRange
	}
	return new(saferith.Nat).SetBig(v, f.bits), nil
}

// FromUint64 returns v mod P.
func (f *Field) FromUint64(v uint64) *saferith.Nat {
	n := new(saferith.Nat).SetUint64(v)
	return n.Mod(n, f.modulus)
}

// ToBig converts an element back to a big.Int.
func (f *Field) ToBig(a *saferith.Nat) *big.Int {
	return a.Big()
}

// Zero returns the additive identity.
func (f *Field) Zero() *saferith.Nat {
	return new(saferith.Nat).SetUint64(0).Resize(f.bits)
}

// Add returns a + b mod P.
func (f *Field) Add(a, b *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModAdd(a, b, f.modulus)
}

// Sub returns a - b mod P.
func (f *Field) Sub(a, b *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModSub(a, b, f.modulus)
}

// Mul returns a * b mod P.
func (f *Field) Mul(a, b *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModMul(a, b, f.modulus)
}

// Neg returns -a mod P.
func (f *Field) Neg(a *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModNeg(a, f.modulus)
}

// Inverse returns a^-1 mod P.
func (f *Field) Inverse(a *saferith.Nat) (*saferith.Nat, error) {
	r := new(saferith.Nat).Mod(a, f.modulus)
	if r.EqZero() == 1 {
		return nil, ErrNotInvertible
	}
	return r.ModInverse(r, f.modulus), nil
}

// Div returns a / b mod P.
func (f *Field) Div(a, b *saferith.Nat) (*saferith.Nat, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return nil, err
	}
	return f.Mul(a, inv), nil
}

// Equal reports whether a and b are the same element.
func (f *Field) Equal(a, b *saferith.Nat) bool {
	x := new(saferith.Nat).Mod(a, f.modulus)
	y := new(saferith.Nat).Mod(b, f.modulus)
	return x.Eq(y) == 1
}

// Random draws a uniform element of [0, P) from r.
func (f *Field) Random(r io.Reader) (*saferith.Nat, error) {
	v, err := rand.Int(r, f.prime)
	if err != nil {
		return nil, fmt.Errorf("field: failed to sample element: %w", err)
	}
	return new(saferith.Nat).SetBig(v, f.bits), nil
}
