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
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/jeremyhahn/go-sss/pkg/field"
)

// Reconstructor interpolates units at x = 0 for a fixed set of
// x-coordinates. The Lagrange basis is computed once, so each unit costs one
// multiply-add per share.
type Reconstructor struct {
	field *field.Field
	xs    []int
	basis []*saferith.Nat
}

// NewReconstructor validates xs and precomputes the basis
// l_i(0) = prod_{j != i} (0 - x_j) / (x_i - x_j).
func NewReconstructor(f *field.Field, xs []int) (*Reconstructor, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field cannot be nil", ErrInvalidConfig)
	}
	if len(xs) < MinThreshold {
		return nil, fmt.Errorf("%w: need at least %d, got %d", ErrInsufficientShares, MinThreshold, len(xs))
	}

	seen := make(map[int]bool, len(xs))
	elems := make([]*saferith.Nat, len(xs))
	for i, x := range xs {
		if x < 1 || x > MaxShares || !f.Contains(big.NewInt(int64(x))) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidX, x)
		}
		if seen[x] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateX, x)
		}
		seen[x] = true
		elems[i] = f.FromUint64(uint64(x))
	}

	basis := make([]*saferith.Nat, len(xs))
	for i := range elems {
		numerator := f.FromUint64(1)
		denominator := f.FromUint64(1)
		for j := range elems {
			if i == j {
				continue
			}
			numerator = f.Mul(numerator, f.Neg(elems[j]))
			denominator = f.Mul(denominator, f.Sub(elems[i], elems[j]))
		}
		b, err := f.Div(numerator, denominator)
		if err != nil {
			return nil, fmt.Errorf("%w: basis for x=%d: %v", ErrDuplicateX, xs[i], err)
		}
		basis[i] = b
	}

	return &Reconstructor{
		field: f,
		xs:    append([]int(nil), xs...),
		basis: basis,
	}, nil
}

// X returns the x-coordinates in the order ys must be supplied.
func (r *Reconstructor) X() []int {
	return append([]int(nil), r.xs...)
}

// Reconstruct returns f(0) given ys[i] = f(X()[i]).
func (r *Reconstructor) Reconstruct(ys []*saferith.Nat) (*saferith.Nat, error) {
	if len(ys) != len(r.basis) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInconsistentShares, len(r.basis), len(ys))
	}
	result := r.field.Zero()
	for i, y := range ys {
		if y == nil {
			return nil, fmt.Errorf("%w: missing value for x=%d", ErrInconsistentShares, r.xs[i])
		}
		result = r.field.Add(result, r.field.Mul(y, r.basis[i]))
	}
	return result, nil
}

// ReconstructByte reconstructs one secret byte.
func (r *Reconstructor) ReconstructByte(ys []*saferith.Nat) (byte, error) {
	v, err := r.Reconstruct(ys)
	if err != nil {
		return 0, err
	}
	b := r.field.ToBig(v)
	if b.BitLen() > 8 {
		return 0, ErrUnitOutOfRange
	}
	return byte(b.Uint64()), nil
}

// Interpolate recovers f(0) from a set of points.
func Interpolate(f *field.Field, points []Point) (*saferith.Nat, error) {
	xs := make([]int, len(points))
	ys := make([]*saferith.Nat, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	rec, err := NewReconstructor(f, xs)
	if err != nil {
		return nil, err
	}
	return rec.Reconstruct(ys)
}
