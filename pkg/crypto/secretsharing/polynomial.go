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

package secretsharing

import (
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/jeremyhahn/go-sss/pkg/field"
)

// Splitter evaluates a fresh random polynomial per secret unit at x = 1..N.
// It is not safe for concurrent use.
type Splitter struct {
	field     *field.Field
	threshold int
	total     int
	rand      io.Reader
	xs        []*saferith.Nat
	coeffs    []*saferith.Nat
}

// NewSplitter returns a Splitter drawing coefficients from r.
func NewSplitter(f *field.Field, config *ShareConfig, r io.Reader) (*Splitter, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field cannot be nil", ErrInvalidConfig)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: entropy source cannot be nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !f.Contains(big.NewInt(int64(config.TotalShares))) {
		return nil, fmt.Errorf("%w: %d shares do not fit below the prime", ErrInvalidX, config.TotalShares)
	}

	xs := make([]*saferith.Nat, config.TotalShares)
	for i := range xs {
		xs[i] = f.FromUint64(uint64(i + 1))
	}

	return &Splitter{
		field:     f,
		threshold: config.Threshold,
		total:     config.TotalShares,
		rand:      r,
		xs:        xs,
		coeffs:    make([]*saferith.Nat, config.Threshold),
	}, nil
}

// Shares returns N.
func (s *Splitter) Shares() int {
	return s.total
}

// SplitUnit returns f(1)..f(N) for a polynomial whose constant term is unit.
// Index i of the result belongs to x = i+1.
func (s *Splitter) SplitUnit(unit *saferith.Nat) ([]*saferith.Nat, error) {
	s.coeffs[0] = unit
	defer func() {
		for i := range s.coeffs {
			s.coeffs[i] = nil
		}
	}()

	for i := 1; i < s.threshold; i++ {
		c, err := s.field.Random(s.rand)
		if err != nil {
			return nil, fmt.Errorf("failed to generate random coefficients: %w", err)
		}
		s.coeffs[i] = c
	}

	ys := make([]*saferith.Nat, s.total)
	for i, x := range s.xs {
		ys[i] = evaluatePolynomial(s.field, s.coeffs, x)
	}
	return ys, nil
}

// SplitByte splits a single secret byte.
func (s *Splitter) SplitByte(b byte) ([]*saferith.Nat, error) {
	return s.SplitUnit(s.field.FromUint64(uint64(b)))
}

// Split splits every byte of units and returns the per-share sequences,
// indexed by x-1.
func (s *Splitter) Split(units []byte) ([][]*saferith.Nat, error) {
	out := make([][]*saferith.Nat, s.total)
	for i := range out {
		out[i] = make([]*saferith.Nat, len(units))
	}
	for u, b := range units {
		ys, err := s.SplitByte(b)
		if err != nil {
			return nil, err
		}
		for i, y := range ys {
			out[i][u] = y
		}
	}
	return out, nil
}

// evaluatePolynomial evaluates coeffs at x using Horner's method:
// p(x) = a0 + x(a1 + x(a2 + ... + x*an))
func evaluatePolynomial(f *field.Field, coeffs []*saferith.Nat, x *saferith.Nat) *saferith.Nat {
	if len(coeffs) == 0 {
		return f.Zero()
	}
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = f.Add(f.Mul(result, x), coeffs[i])
	}
	return result
}
