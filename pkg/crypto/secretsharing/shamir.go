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
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"

	"github.com/jeremyhahn/go-sss/pkg/field"
)

const (
	// MinThreshold is the smallest meaningful threshold.
	MinThreshold = 2

	// MaxShares is the largest number of shares a session can issue.
	MaxShares = 255
)

var (
	// ErrInvalidConfig is returned for threshold/share counts that cannot
	// form a scheme.
	ErrInvalidConfig = errors.New("secretsharing: invalid configuration")

	// ErrEmptySecret is returned when asked to split zero bytes.
	ErrEmptySecret = errors.New("secretsharing: secret cannot be empty")

	// ErrInsufficientShares is returned when fewer shares than the
	// threshold are supplied.
	ErrInsufficientShares = errors.New("secretsharing: insufficient shares")

	// ErrInvalidX is returned for an x-coordinate outside 1..MaxShares or
	// not below the prime.
	ErrInvalidX = errors.New("secretsharing: invalid x-coordinate")

	// ErrDuplicateX is returned when two points share an x-coordinate.
	ErrDuplicateX = errors.New("secretsharing: duplicate x-coordinate")

	// ErrInconsistentShares is returned when shares hold a different number
	// of points.
	ErrInconsistentShares = errors.New("secretsharing: shares have different lengths")

	// ErrUnitOutOfRange is returned when interpolation yields a value that
	// cannot be a secret byte, which happens with wrong shares, a wrong
	// prime or a wrong password.
	ErrUnitOutOfRange = errors.New("secretsharing: reconstructed unit out of range")
)

// ShareConfig configures secret sharing parameters.
type ShareConfig struct {
	Threshold   int // K - minimum shares needed to reconstruct
	TotalShares int // N - total shares to create
}

// Validate checks 2 <= Threshold <= TotalShares <= MaxShares.
func (c *ShareConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}
	if c.Threshold < MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d, got %d", ErrInvalidConfig, MinThreshold, c.Threshold)
	}
	if c.TotalShares < MinThreshold {
		return fmt.Errorf("%w: total shares must be at least %d, got %d", ErrInvalidConfig, MinThreshold, c.TotalShares)
	}
	if c.TotalShares < c.Threshold {
		return fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)", ErrInvalidConfig, c.TotalShares, c.Threshold)
	}
	if c.TotalShares > MaxShares {
		return fmt.Errorf("%w: total shares must be <= %d, got %d", ErrInvalidConfig, MaxShares, c.TotalShares)
	}
	return nil
}

// Point is one evaluation of a unit polynomial.
type Point struct {
	X int
	Y *saferith.Nat
}

// Share holds every point issued to one x-coordinate, in unit order.
type Share struct {
	X      int
	Values []*saferith.Nat
}

// Shamir splits and combines secrets held entirely in memory.
type Shamir struct {
	field  *field.Field
	config *ShareConfig
	rand   io.Reader
}

// NewShamir creates a new Shamir instance over f. Coefficients are drawn
// from r.
func NewShamir(f *field.Field, config *ShareConfig, r io.Reader) (*Shamir, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field cannot be nil", ErrInvalidConfig)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: entropy source cannot be nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Shamir{
		field:  f,
		config: config,
		rand:   r,
	}, nil
}

// Split divides a secret into N shares, one point per secret byte.
func (s *Shamir) Split(secret []byte) ([]Share, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	splitter, err := NewSplitter(s.field, s.config, s.rand)
	if err != nil {
		return nil, err
	}
	values, err := splitter.Split(secret)
	if err != nil {
		return nil, err
	}

	shares := make([]Share, s.config.TotalShares)
	for i := range shares {
		shares[i] = Share{X: i + 1, Values: values[i]}
	}
	return shares, nil
}

// Combine reconstructs the secret from K or more shares. Every supplied
// share takes part in the interpolation.
func (s *Shamir) Combine(shares []Share) ([]byte, error) {
	if len(shares) < s.config.Threshold {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientShares, s.config.Threshold, len(shares))
	}

	xs := make([]int, len(shares))
	for i, share := range shares {
		if len(share.Values) != len(shares[0].Values) {
			return nil, ErrInconsistentShares
		}
		xs[i] = share.X
	}
	if len(shares[0].Values) == 0 {
		return nil, ErrEmptySecret
	}

	rec, err := NewReconstructor(s.field, xs)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, len(shares[0].Values))
	ys := make([]*saferith.Nat, len(shares))
	for unit := range secret {
		for i := range shares {
			ys[i] = shares[i].Values[unit]
		}
		b, err := rec.ReconstructByte(ys)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", unit, err)
		}
		secret[unit] = b
	}
	return secret, nil
}
