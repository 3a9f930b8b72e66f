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

// Package verify computes the integrity digest appended to a secret before
// it is split, and strips and checks it after reconstruction.
package verify

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a digest function.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
	BLAKE3     Algorithm = "blake3"
	None       Algorithm = "none"

	// Default is used when no algorithm is configured.
	Default = SHA256
)

var (
	// ErrUnknownAlgorithm is returned by Parse for an unsupported name.
	ErrUnknownAlgorithm = errors.New("verify: unknown digest algorithm")

	// ErrDigestMismatch is returned when a reconstructed secret does not
	// match its digest.
	ErrDigestMismatch = errors.New("verify: digest mismatch")

	// ErrTooShort is returned when the reconstructed data is shorter than
	// the digest it should end with.
	ErrTooShort = errors.New("verify: data shorter than digest")
)

// Algorithms lists the supported names in display order.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA512, SHA3_256, BLAKE2b256, BLAKE3, None}
}

// Parse resolves a case-insensitive algorithm name. The empty string maps to
// Default.
func Parse(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Default, nil
	}
	for _, a := range Algorithms() {
		if string(a) == n {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	return string(a)
}

// Enabled reports whether a digest is appended at all.
func (a Algorithm) Enabled() bool {
	return a != None
}

// Size returns the digest length in bytes, zero for None.
func (a Algorithm) Size() int {
	switch a {
	case SHA256, SHA3_256, BLAKE2b256, BLAKE3:
		return 32
	case SHA512:
		return 64
	default:
		return 0
	}
}

// New returns a fresh hash for a. None has no hash and yields an error.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q has no hash", ErrUnknownAlgorithm, string(a))
	}
}

// Sum hashes data in one call.
func (a Algorithm) Sum(data []byte) ([]byte, error) {
	h, err := a.New()
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// Equal compares two digests in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
