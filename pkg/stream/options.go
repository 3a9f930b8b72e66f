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

// Package stream splits and reconstructs secrets of any length in fixed-size
// chunks. A Sharer feeds secret bytes through the splitter into N share
// streams; a Combiner reads K share streams in lock-step and writes the
// reconstructed secret, checking the trailing digest at the end.
package stream

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

const (
	// DefaultChunkSize is the number of secret bytes (or share values per
	// share) processed per step.
	DefaultChunkSize = 8192

	// MaxChunkSize bounds the per-step buffers.
	MaxChunkSize = 16 << 20
)

// Options configures a Sharer or Combiner.
type Options struct {
	// Threshold is K. Required for splitting; when set for reconstruction
	// it is the minimum number of sources accepted.
	Threshold int

	// Shares is N. Used for splitting only.
	Shares int

	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int

	// Digest is the verification algorithm. The zero value and verify.None
	// disable verification.
	Digest verify.Algorithm

	// Password enables shuffling when non-empty.
	Password []byte

	// KDF selects the shuffle key derivation. Nil means the Argon2id
	// defaults.
	KDF *kdf.KDFParams

	// Random supplies coefficients and primes. Defaults to crypto/rand.
	Random io.Reader

	Logger  logger.Logger
	Metrics *metrics.Recorder
}

func (o *Options) chunkSize() int {
	if o.ChunkSize == 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o *Options) random() io.Reader {
	if o.Random == nil {
		return rand.Reader
	}
	return o.Random
}

func (o *Options) log() logger.Logger {
	return logger.OrNoOp(o.Logger)
}

// newProgress limits chunk progress logs to the first chunk and then one
// per second.
func newProgress() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: time.Second}
}

// digest returns the effective algorithm in canonical form, None when
// disabled. Names are matched the way verify.Parse matches them.
func (o *Options) digest() verify.Algorithm {
	if o.Digest == "" {
		return verify.None
	}
	if a, err := verify.Parse(string(o.Digest)); err == nil {
		return a
	}
	return o.Digest
}

// Shuffled reports whether shares are obfuscated.
func (o *Options) Shuffled() bool {
	return len(o.Password) > 0
}

func (o *Options) validateCommon() error {
	if o.ChunkSize < 0 || o.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size must be between 1 and %d, got %d", ErrInvalidConfig, MaxChunkSize, o.ChunkSize)
	}
	if o.Digest != "" {
		if _, err := verify.Parse(string(o.Digest)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if o.Shuffled() && o.KDF != nil {
		if err := kdf.Validate(o.KDF); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Validate checks the options for splitting.
func (o *Options) Validate() error {
	if err := (&secretsharing.ShareConfig{Threshold: o.Threshold, TotalShares: o.Shares}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return o.validateCommon()
}

// validateCombine checks the options for reconstruction from n sources.
func (o *Options) validateCombine(n int) error {
	if o.Threshold != 0 && o.Threshold < secretsharing.MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d, got %d", ErrInvalidConfig, secretsharing.MinThreshold, o.Threshold)
	}
	if n < secretsharing.MinThreshold || n < o.Threshold {
		need := max(o.Threshold, secretsharing.MinThreshold)
		return fmt.Errorf("%w: need %d, got %d", secretsharing.ErrInsufficientShares, need, n)
	}
	return o.validateCommon()
}

// newShuffler derives the shuffle key for prime, or returns nil when
// shuffling is off.
func (o *Options) newShuffler(prime *big.Int) (*shuffle.Shuffler, error) {
	if !o.Shuffled() {
		return nil, nil
	}
	return shuffle.New(o.Password, prime, o.KDF)
}
