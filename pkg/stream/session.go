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

package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// SplitResult describes a completed split.
type SplitResult struct {
	Prime        *big.Int
	SecretLength int64
	// Units is the number of values in each share, digest included.
	Units    uint64
	Digest   verify.Algorithm
	Shuffled bool
}

// CombineResult describes a completed reconstruction.
type CombineResult struct {
	SecretLength int64
	Units        uint64
	Verified     bool
}

// Split generates a fresh prime of primeBits bits, writes it to primeSink,
// and streams src into len(sinks) shares. secretLen may be negative when the
// length is unknown. An empty secret, declared or found by reading ahead one
// byte, is rejected before anything is generated.
func Split(ctx context.Context, src io.Reader, secretLen int64, sinks []io.Writer, primeSink io.Writer, opts Options, primeBits int) (result *SplitResult, err error) {
	start := time.Now()
	log := opts.log().WithContext(ctx)
	defer func() {
		observe(opts.Metrics, log, metrics.OpSplit, start, err)
	}()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if secretLen == 0 {
		return nil, ErrEmptySecret
	}
	if secretLen < 0 {
		br := bufio.NewReader(src)
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrEmptySecret
			}
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		src = br
	}
	if primeBits == 0 {
		primeBits = field.DefaultPrimeBits
	}

	prime, err := field.GeneratePrime(opts.random(), primeBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate prime: %w", err)
	}
	f, err := field.New(prime)
	if err != nil {
		return nil, err
	}
	if err := codec.WritePrime(primeSink, prime); err != nil {
		return nil, fmt.Errorf("failed to write prime: %w", err)
	}

	opts.Logger = log
	sharer, err := NewSharer(f, opts, sinks, secretLen)
	if err != nil {
		return nil, err
	}
	if _, err := sharer.readFrom(ctx, src); err != nil {
		return nil, err
	}
	if err := sharer.Finalize(); err != nil {
		return nil, err
	}

	opts.Metrics.AddSecretBytes(metrics.OpSplit, sharer.Consumed())
	opts.Metrics.AddShareValues(metrics.OpSplit, int64(sharer.Units())*int64(len(sinks)))
	log.Info("secret split",
		logger.Int64("secret_bytes", sharer.Consumed()),
		logger.Int("threshold", opts.Threshold),
		logger.Int("shares", opts.Shares),
		logger.Int("prime_bits", prime.BitLen()),
		logger.String("digest", opts.digest().String()),
		logger.Bool("shuffled", opts.Shuffled()))

	return &SplitResult{
		Prime:        prime,
		SecretLength: sharer.Consumed(),
		Units:        sharer.Units(),
		Digest:       opts.digest(),
		Shuffled:     opts.Shuffled(),
	}, nil
}

// Combine reads the prime record from primeSrc and reconstructs the secret
// from sources into w. On error the data written to w must be discarded.
func Combine(ctx context.Context, sources []Source, primeSrc io.Reader, w io.Writer, opts Options) (result *CombineResult, err error) {
	start := time.Now()
	log := opts.log().WithContext(ctx)
	defer func() {
		observe(opts.Metrics, log, metrics.OpCombine, start, err)
	}()

	if err := opts.validateCombine(len(sources)); err != nil {
		return nil, err
	}

	prime, err := codec.ReadPrime(primeSrc)
	if err != nil {
		return nil, fmt.Errorf("prime: %w", err)
	}
	f, err := field.New(prime)
	if err != nil {
		return nil, fmt.Errorf("prime: %w", err)
	}

	opts.Logger = log
	combiner, err := NewCombiner(f, opts, sources)
	if err != nil {
		return nil, err
	}
	n, err := combiner.writeTo(ctx, w)
	if err != nil {
		return nil, err
	}

	opts.Metrics.AddSecretBytes(metrics.OpCombine, n)
	opts.Metrics.AddShareValues(metrics.OpCombine, int64(combiner.Units())*int64(len(sources)))
	log.Info("secret reconstructed",
		logger.Int64("secret_bytes", n),
		logger.Ints("shares", combiner.xs),
		logger.Bool("verified", opts.digest().Enabled()))

	return &CombineResult{
		SecretLength: n,
		Units:        combiner.Units(),
		Verified:     opts.digest().Enabled(),
	}, nil
}

func observe(rec *metrics.Recorder, log logger.Logger, op string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		class := ErrorClass(err)
		rec.RecordError(op, class)
		if class == ClassVerification {
			rec.RecordVerificationFailure()
		}
		log.Error(op+" failed", logger.Error(err), logger.String("error_class", class))
	}
	rec.RecordOperation(op, status, time.Since(start))
}
