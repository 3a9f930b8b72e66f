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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

var (
	// ErrInvalidConfig is returned for options that cannot describe a
	// session. It is raised before any I/O or randomness is spent.
	ErrInvalidConfig = errors.New("stream: invalid configuration")

	// ErrEmptySecret is returned when the secret holds no bytes.
	ErrEmptySecret = errors.New("stream: secret cannot be empty")

	// ErrSecretLength is returned when a Sharer created with a declared
	// length receives a different number of bytes.
	ErrSecretLength = errors.New("stream: secret length differs from declared length")

	// ErrFinalized is returned by Update or Finalize after Finalize.
	ErrFinalized = errors.New("stream: sharer already finalized")

	// ErrLengthMismatch is returned when share streams disagree on their
	// length. It is a format error.
	ErrLengthMismatch = fmt.Errorf("%w: share streams differ in length", codec.ErrFormat)

	// ErrVerification is returned when reconstruction produced data that
	// cannot be the secret: a digest mismatch or a unit outside the byte
	// range. Whatever was written to the output must be discarded.
	ErrVerification = errors.New("stream: reconstructed secret failed verification")
)

// Error classes reported by ErrorClass.
const (
	ClassConfig       = "config"
	ClassFormat       = "format"
	ClassVerification = "verification"
	ClassIO           = "io"
)

var configErrors = []error{
	ErrInvalidConfig,
	ErrEmptySecret,
	ErrSecretLength,
	ErrFinalized,
	secretsharing.ErrInvalidConfig,
	secretsharing.ErrInsufficientShares,
	secretsharing.ErrInvalidX,
	field.ErrInvalidPrimeBits,
	shuffle.ErrEmptyPassword,
	kdf.ErrUnsupportedAlgorithm,
	kdf.ErrInvalidMemory,
	kdf.ErrInvalidTime,
	kdf.ErrInvalidThreads,
	kdf.ErrInvalidIterations,
	kdf.ErrInvalidHash,
	kdf.ErrInvalidKeyLength,
	verify.ErrUnknownAlgorithm,
}

var formatErrors = []error{
	codec.ErrFormat,
	field.ErrNotPrime,
	field.ErrPrimeTooSmall,
}

var verificationErrors = []error{
	ErrVerification,
	verify.ErrDigestMismatch,
	verify.ErrTooShort,
	secretsharing.ErrUnitOutOfRange,
	secretsharing.ErrDuplicateX,
	field.ErrOutOfRange,
	shuffle.ErrValueOutOfRange,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConfigError reports whether err rejects the requested parameters.
func IsConfigError(err error) bool {
	return err != nil && isAny(err, configErrors)
}

// IsFormatError reports whether err means share or prime data is malformed.
func IsFormatError(err error) bool {
	return err != nil && isAny(err, formatErrors)
}

// IsVerificationError reports whether well-formed input reconstructed to
// something that is not the secret: wrong shares, prime or password.
func IsVerificationError(err error) bool {
	return err != nil && isAny(err, verificationErrors)
}

// ErrorClass names the class of err for logs and metrics. Anything not in
// another class is treated as I/O.
func ErrorClass(err error) string {
	switch {
	case IsVerificationError(err):
		return ClassVerification
	case IsFormatError(err):
		return ClassFormat
	case IsConfigError(err):
		return ClassConfig
	default:
		return ClassIO
	}
}
