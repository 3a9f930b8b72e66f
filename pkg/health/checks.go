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

package health

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
	"github.com/jeremyhahn/go-sss/pkg/stream"
)

const (
	// entropySample is the size of each of the two entropy reads compared.
	entropySample = 32

	// roundTripBytes is the secret size used by RoundTripCheck.
	roundTripBytes = 4096

	roundTripPassword = "sss-self-check"
)

// Check names registered by the CLI.
const (
	CheckEntropy   = "entropy"
	CheckPrime     = "prime"
	CheckKDF       = "kdf"
	CheckRoundTrip = "roundtrip"
)

func unhealthy(name string, err error) CheckResult {
	return CheckResult{Name: name, Status: StatusUnhealthy, Error: err.Error()}
}

// EntropyCheck reads two samples from r and fails when a read errors, a
// sample is a single repeated byte or both samples are equal.
func EntropyCheck(r io.Reader, source string) CheckFunc {
	return func(ctx context.Context) CheckResult {
		a := make([]byte, entropySample)
		b := make([]byte, entropySample)
		if _, err := io.ReadFull(r, a); err != nil {
			return unhealthy(CheckEntropy, err)
		}
		if _, err := io.ReadFull(r, b); err != nil {
			return unhealthy(CheckEntropy, err)
		}
		if constant(a) || constant(b) || bytes.Equal(a, b) {
			return unhealthy(CheckEntropy, fmt.Errorf("source %s returned repeating output", source))
		}
		return CheckResult{
			Name:    CheckEntropy,
			Status:  StatusHealthy,
			Message: fmt.Sprintf("source %s", source),
		}
	}
}

func constant(p []byte) bool {
	for _, b := range p[1:] {
		if b != p[0] {
			return false
		}
	}
	return true
}

// PrimeCheck generates a prime of bits bits from r and builds a field on it.
func PrimeCheck(r io.Reader, bits int) CheckFunc {
	return func(ctx context.Context) CheckResult {
		p, err := field.GeneratePrime(r, bits)
		if err != nil {
			return unhealthy(CheckPrime, err)
		}
		if _, err := field.New(p); err != nil {
			return unhealthy(CheckPrime, err)
		}
		return CheckResult{
			Name:    CheckPrime,
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d-bit prime", p.BitLen()),
		}
	}
}

// KDFCheck derives a shuffle key with params. A derivation slower than
// budget is reported degraded; a zero budget disables the limit.
func KDFCheck(params *kdf.KDFParams, budget time.Duration) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if params == nil {
			params = kdf.DefaultParams(kdf.DefaultAlgorithm)
		}
		start := time.Now()
		s, err := shuffle.New([]byte(roundTripPassword), big.NewInt(257), params)
		if err != nil {
			return unhealthy(CheckKDF, err)
		}
		s.Destroy()
		elapsed := time.Since(start)

		msg := fmt.Sprintf("%s in %s", params.Algorithm, elapsed.Round(time.Millisecond))
		if budget > 0 && elapsed > budget {
			return CheckResult{
				Name:    CheckKDF,
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%s exceeds budget %s", msg, budget),
			}
		}
		return CheckResult{Name: CheckKDF, Status: StatusHealthy, Message: msg}
	}
}

// RoundTripCheck splits a random secret into 3 shares with threshold 2
// using the digest, KDF and entropy source of opts, reconstructs it from
// shares 1 and 3 and compares. The shares are shuffled with a fixed
// password when opts carries none.
func RoundTripCheck(opts stream.Options, primeBits int) CheckFunc {
	return func(ctx context.Context) CheckResult {
		opts.Threshold = 2
		opts.Shares = 3
		if len(opts.Password) == 0 {
			opts.Password = []byte(roundTripPassword)
		}
		random := opts.Random
		if random == nil {
			random = rand.Reader
		}

		secret := make([]byte, roundTripBytes)
		if _, err := io.ReadFull(random, secret); err != nil {
			return unhealthy(CheckRoundTrip, err)
		}

		shares := make([]bytes.Buffer, opts.Shares)
		sinks := make([]io.Writer, opts.Shares)
		for i := range shares {
			sinks[i] = &shares[i]
		}
		var prime bytes.Buffer
		split, err := stream.Split(ctx, bytes.NewReader(secret), int64(len(secret)), sinks, &prime, opts, primeBits)
		if err != nil {
			return unhealthy(CheckRoundTrip, fmt.Errorf("split: %w", err))
		}

		var out bytes.Buffer
		sources := []stream.Source{
			{X: 1, R: &shares[0]},
			{X: 3, R: &shares[2]},
		}
		if _, err := stream.Combine(ctx, sources, &prime, &out, opts); err != nil {
			return unhealthy(CheckRoundTrip, fmt.Errorf("combine: %w", err))
		}
		if !bytes.Equal(out.Bytes(), secret) {
			return unhealthy(CheckRoundTrip, fmt.Errorf("%w: reconstructed secret differs", stream.ErrVerification))
		}
		return CheckResult{
			Name:   CheckRoundTrip,
			Status: StatusHealthy,
			Message: fmt.Sprintf("%d bytes, %d-bit prime, digest %s",
				len(secret), split.Prime.BitLen(), split.Digest),
		}
	}
}
