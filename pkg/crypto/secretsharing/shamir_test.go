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
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/cronokirby/saferith"

	"github.com/jeremyhahn/go-sss/internal/testutil"
	"github.com/jeremyhahn/go-sss/pkg/field"
)

func newTestField(t *testing.T) *field.Field {
	t.Helper()
	p, err := field.GeneratePrime(rand.Reader, field.DefaultPrimeBits)
	if err != nil {
		t.Fatalf("failed to generate prime: %v", err)
	}
	f, err := field.New(p)
	if err != nil {
		t.Fatalf("failed to create field: %v", err)
	}
	return f
}

// TestShareConfigValidate tests threshold and share count validation.
func TestShareConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *ShareConfig
		wantError bool
	}{
		{name: "valid configuration", config: &ShareConfig{Threshold: 3, TotalShares: 5}},
		{name: "threshold equals total shares", config: &ShareConfig{Threshold: 5, TotalShares: 5}},
		{name: "minimum valid configuration", config: &ShareConfig{Threshold: 2, TotalShares: 2}},
		{name: "maximum valid configuration", config: &ShareConfig{Threshold: 255, TotalShares: 255}},
		{name: "nil config", config: nil, wantError: true},
		{name: "threshold of 1", config: &ShareConfig{Threshold: 1, TotalShares: 5}, wantError: true},
		{name: "one of one", config: &ShareConfig{Threshold: 1, TotalShares: 1}, wantError: true},
		{name: "zero threshold", config: &ShareConfig{Threshold: 0, TotalShares: 5}, wantError: true},
		{name: "threshold greater than total", config: &ShareConfig{Threshold: 6, TotalShares: 5}, wantError: true},
		{name: "total shares exceeds limit", config: &ShareConfig{Threshold: 3, TotalShares: 256}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestSplitCombine tests share generation and reconstruction with K shares.
func TestSplitCombine(t *testing.T) {
	f := newTestField(t)

	tests := []struct {
		name   string
		config *ShareConfig
		secret []byte
	}{
		{name: "small secret", config: &ShareConfig{Threshold: 3, TotalShares: 5}, secret: []byte("hello world")},
		{name: "single byte", config: &ShareConfig{Threshold: 2, TotalShares: 3}, secret: []byte{42}},
		{name: "zero byte", config: &ShareConfig{Threshold: 2, TotalShares: 2}, secret: []byte{0}},
		{name: "binary data", config: &ShareConfig{Threshold: 3, TotalShares: 5}, secret: []byte{0x00, 0xFF, 0x80, 0x7F, 0x01, 0xFE}},
		{name: "threshold equals total", config: &ShareConfig{Threshold: 4, TotalShares: 4}, secret: []byte("all of them")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shamir, err := NewShamir(f, tt.config, rand.Reader)
			if err != nil {
				t.Fatalf("failed to create Shamir: %v", err)
			}

			shares, err := shamir.Split(tt.secret)
			if err != nil {
				t.Fatalf("failed to split secret: %v", err)
			}
			if len(shares) != tt.config.TotalShares {
				t.Fatalf("expected %d shares, got %d", tt.config.TotalShares, len(shares))
			}
			for i, share := range shares {
				if share.X != i+1 {
					t.Errorf("share %d has wrong x: expected %d, got %d", i, i+1, share.X)
				}
				if len(share.Values) != len(tt.secret) {
					t.Errorf("share %d has %d values, want %d", i, len(share.Values), len(tt.secret))
				}
			}

			reconstructed, err := shamir.Combine(shares[:tt.config.Threshold])
			if err != nil {
				t.Fatalf("failed to combine shares: %v", err)
			}
			if !bytes.Equal(reconstructed, tt.secret) {
				t.Errorf("reconstructed secret doesn't match original:\ngot:  %v\nwant: %v", reconstructed, tt.secret)
			}

			reconstructedAll, err := shamir.Combine(shares)
			if err != nil {
				t.Fatalf("failed to combine all shares: %v", err)
			}
			if !bytes.Equal(reconstructedAll, tt.secret) {
				t.Errorf("reconstructed secret (all shares) doesn't match original")
			}
		})
	}
}

// TestCombine_EveryCombination reconstructs from every K-subset, in both
// orders, to show the result does not depend on which shares are used.
func TestCombine_EveryCombination(t *testing.T) {
	f := newTestField(t)
	config := &ShareConfig{Threshold: 3, TotalShares: 5}
	secret := []byte("HELLO, WORLD!")

	shamir, err := NewShamir(f, config, rand.Reader)
	if err != nil {
		t.Fatalf("failed to create Shamir: %v", err)
	}
	shares, err := shamir.Split(secret)
	if err != nil {
		t.Fatalf("failed to split secret: %v", err)
	}

	for _, combo := range testutil.Combinations(config.TotalShares, config.Threshold) {
		subset := make([]Share, len(combo))
		reversed := make([]Share, len(combo))
		for i, idx := range combo {
			subset[i] = shares[idx]
			reversed[len(combo)-1-i] = shares[idx]
		}
		for _, set := range [][]Share{subset, reversed} {
			got, err := shamir.Combine(set)
			if err != nil {
				t.Fatalf("combination %v: %v", combo, err)
			}
			if !bytes.Equal(got, secret) {
				t.Errorf("combination %v reconstructed %q", combo, got)
			}
		}
	}
}

// TestCombine_LargeScheme exercises the upper end of the share range.
func TestCombine_LargeScheme(t *testing.T) {
	f := newTestField(t)
	secret := []byte{0x00, 0x01, 0xFE, 0xFF}

	for _, config := range []*ShareConfig{
		{Threshold: 2, TotalShares: 250},
		{Threshold: 125, TotalShares: 250},
		{Threshold: 250, TotalShares: 250},
	} {
		shamir, err := NewShamir(f, config, testutil.NewDeterministicReader("large"))
		if err != nil {
			t.Fatalf("failed to create Shamir: %v", err)
		}
		shares, err := shamir.Split(secret)
		if err != nil {
			t.Fatalf("failed to split secret: %v", err)
		}
		got, err := shamir.Combine(shares[config.TotalShares-config.Threshold:])
		if err != nil {
			t.Fatalf("%d-of-%d: %v", config.Threshold, config.TotalShares, err)
		}
		if !bytes.Equal(got, secret) {
			t.Errorf("%d-of-%d reconstructed %v", config.Threshold, config.TotalShares, got)
		}
	}
}

// TestCombine_InsufficientShares checks the threshold guard and that K-1
// points never interpolate back to the secret.
func TestCombine_InsufficientShares(t *testing.T) {
	f := newTestField(t)
	config := &ShareConfig{Threshold: 3, TotalShares: 5}
	shamir, err := NewShamir(f, config, rand.Reader)
	if err != nil {
		t.Fatalf("failed to create Shamir: %v", err)
	}

	shares, err := shamir.Split([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to split secret: %v", err)
	}
	if _, err := shamir.Combine(shares[:2]); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}

	const trials = 200
	secretByte := byte(0xA5)
	matches := 0
	splitter, err := NewSplitter(f, config, rand.Reader)
	if err != nil {
		t.Fatalf("failed to create splitter: %v", err)
	}
	for i := 0; i < trials; i++ {
		ys, err := splitter.SplitByte(secretByte)
		if err != nil {
			t.Fatalf("split failed: %v", err)
		}
		v, err := Interpolate(f, []Point{{X: 1, Y: ys[0]}, {X: 4, Y: ys[3]}})
		if err != nil {
			t.Fatalf("interpolate failed: %v", err)
		}
		if f.ToBig(v).Cmp(big.NewInt(int64(secretByte))) == 0 {
			matches++
		}
	}
	if matches != 0 {
		t.Errorf("K-1 points recovered the secret in %d of %d trials", matches, trials)
	}
}

// TestSplit_EmptySecret tests that empty secrets are rejected.
func TestSplit_EmptySecret(t *testing.T) {
	f := newTestField(t)
	shamir, err := NewShamir(f, &ShareConfig{Threshold: 2, TotalShares: 3}, rand.Reader)
	if err != nil {
		t.Fatalf("failed to create Shamir: %v", err)
	}
	if _, err := shamir.Split(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

// TestSplit_Deterministic shows the entropy source is the only source of
// randomness.
func TestSplit_Deterministic(t *testing.T) {
	f := newTestField(t)
	config := &ShareConfig{Threshold: 3, TotalShares: 4}

	run := func() []Share {
		shamir, err := NewShamir(f, config, testutil.NewDeterministicReader("seed"))
		if err != nil {
			t.Fatalf("failed to create Shamir: %v", err)
		}
		shares, err := shamir.Split([]byte("repeatable"))
		if err != nil {
			t.Fatalf("failed to split: %v", err)
		}
		return shares
	}

	a, b := run(), run()
	for i := range a {
		for u := range a[i].Values {
			if !f.Equal(a[i].Values[u], b[i].Values[u]) {
				t.Fatalf("share %d unit %d differs between identical seeds", i, u)
			}
		}
	}
}

// TestNewReconstructor tests x-coordinate validation.
func TestNewReconstructor(t *testing.T) {
	f := newTestField(t)

	tests := []struct {
		name    string
		xs      []int
		wantErr error
	}{
		{name: "valid", xs: []int{1, 3, 5}},
		{name: "single point", xs: []int{1}, wantErr: ErrInsufficientShares},
		{name: "zero x", xs: []int{0, 1}, wantErr: ErrInvalidX},
		{name: "negative x", xs: []int{-1, 1}, wantErr: ErrInvalidX},
		{name: "x above limit", xs: []int{1, 256}, wantErr: ErrInvalidX},
		{name: "duplicate x", xs: []int{2, 3, 2}, wantErr: ErrDuplicateX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewReconstructor(f, tt.xs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rec.X()) != len(tt.xs) {
				t.Errorf("X() = %v, want %v", rec.X(), tt.xs)
			}
		})
	}
}

// TestReconstructByte_OutOfRange tests that a non-byte result is reported.
func TestReconstructByte_OutOfRange(t *testing.T) {
	f, err := field.New(big.NewInt(65537))
	if err != nil {
		t.Fatalf("failed to create field: %v", err)
	}
	rec, err := NewReconstructor(f, []int{1, 2})
	if err != nil {
		t.Fatalf("failed to create reconstructor: %v", err)
	}

	// f(x) = 1000 + x gives f(1) = 1001, f(2) = 1002.
	_, err = rec.ReconstructByte([]*saferith.Nat{f.FromUint64(1001), f.FromUint64(1002)})
	if !errors.Is(err, ErrUnitOutOfRange) {
		t.Errorf("expected ErrUnitOutOfRange, got %v", err)
	}

	// f(x) = 200 + 7x
	b, err := rec.ReconstructByte([]*saferith.Nat{f.FromUint64(207), f.FromUint64(214)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != 200 {
		t.Errorf("expected 200, got %d", b)
	}

	if _, err := rec.Reconstruct([]*saferith.Nat{f.FromUint64(1)}); !errors.Is(err, ErrInconsistentShares) {
		t.Errorf("expected ErrInconsistentShares, got %v", err)
	}
}

// TestEvaluatePolynomial tests Horner evaluation against a hand computed value.
func TestEvaluatePolynomial(t *testing.T) {
	f, err := field.New(big.NewInt(257))
	if err != nil {
		t.Fatalf("failed to create field: %v", err)
	}

	// 5 + 3x + 2x^2 at x = 2 is 19; at x = 20 it is 865 mod 257 = 94.
	coeffs := []*saferith.Nat{f.FromUint64(5), f.FromUint64(3), f.FromUint64(2)}
	if got := f.ToBig(evaluatePolynomial(f, coeffs, f.FromUint64(2))).Int64(); got != 19 {
		t.Errorf("p(2) = %d, want 19", got)
	}
	if got := f.ToBig(evaluatePolynomial(f, coeffs, f.FromUint64(20))).Int64(); got != 94 {
		t.Errorf("p(20) = %d, want 94", got)
	}
	if got := f.ToBig(evaluatePolynomial(f, nil, f.FromUint64(3))).Int64(); got != 0 {
		t.Errorf("empty polynomial = %d, want 0", got)
	}
}
