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

// Package kdf turns a custodian password into the key that drives share
// shuffling. Adapters wrap Argon2, PBKDF2 and HKDF behind one interface so
// the algorithm and its cost can be chosen in configuration and recorded in
// the session manifest.
package kdf

import (
	"crypto"
	_ "crypto/sha256" // link SHA-256 for crypto.Hash.New
	_ "crypto/sha512" // link SHA-512 for crypto.Hash.New
	"errors"
	"fmt"
	"strings"
)

// KDFAlgorithm represents the key derivation function algorithm type
type KDFAlgorithm string

const (
	// AlgorithmHKDF is HKDF (RFC 5869). It does no stretching and is only
	// suitable when the password is already high-entropy key material.
	AlgorithmHKDF KDFAlgorithm = "hkdf"

	// AlgorithmPBKDF2 is PBKDF2 (RFC 8018).
	AlgorithmPBKDF2 KDFAlgorithm = "pbkdf2"

	// AlgorithmArgon2i is the data-independent Argon2 variant.
	AlgorithmArgon2i KDFAlgorithm = "argon2i"

	// AlgorithmArgon2id is the hybrid Argon2 variant and the default.
	AlgorithmArgon2id KDFAlgorithm = "argon2id"

	// DefaultAlgorithm is used when none is configured.
	DefaultAlgorithm = AlgorithmArgon2id

	// DefaultKeyLength is the derived key size; it matches a ChaCha20 key.
	DefaultKeyLength = 32
)

// String returns the string representation of the KDF algorithm
func (a KDFAlgorithm) String() string {
	return string(a)
}

// ParseAlgorithm resolves a case-insensitive name. "argon2" is accepted as
// an alias for argon2id and the empty string selects DefaultAlgorithm.
func ParseAlgorithm(name string) (KDFAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultAlgorithm, nil
	case "argon2", "argon2id":
		return AlgorithmArgon2id, nil
	case "argon2i":
		return AlgorithmArgon2i, nil
	case "pbkdf2":
		return AlgorithmPBKDF2, nil
	case "hkdf":
		return AlgorithmHKDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// HashName names the hash used by PBKDF2 and HKDF. It serializes as a plain
// string in configuration files and manifests.
type HashName string

const (
	HashSHA256 HashName = "sha256"
	HashSHA512 HashName = "sha512"
)

// Crypto maps the name to a crypto.Hash; unknown names map to zero.
func (h HashName) Crypto() crypto.Hash {
	switch HashName(strings.ToLower(string(h))) {
	case HashSHA256:
		return crypto.SHA256
	case HashSHA512:
		return crypto.SHA512
	default:
		return 0
	}
}

// KDFParams contains parameters for key derivation. Salt and Info are
// supplied at derivation time and never serialized.
type KDFParams struct {
	Algorithm KDFAlgorithm `yaml:"algorithm" json:"algorithm" cbor:"1,keyasint"`

	// Iterations is the PBKDF2 round count.
	Iterations int `yaml:"iterations,omitempty" json:"iterations,omitempty" cbor:"2,keyasint,omitempty"`

	// Memory is the Argon2 memory cost in KiB.
	Memory uint32 `yaml:"memory,omitempty" json:"memory,omitempty" cbor:"3,keyasint,omitempty"`

	// Threads is the Argon2 lane count.
	Threads uint8 `yaml:"threads,omitempty" json:"threads,omitempty" cbor:"4,keyasint,omitempty"`

	// Time is the Argon2 pass count.
	Time uint32 `yaml:"time,omitempty" json:"time,omitempty" cbor:"5,keyasint,omitempty"`

	KeyLength int `yaml:"key_length" json:"key_length" cbor:"6,keyasint"`

	// Hash selects the PBKDF2/HKDF hash.
	Hash HashName `yaml:"hash,omitempty" json:"hash,omitempty" cbor:"7,keyasint,omitempty"`

	Salt []byte `yaml:"-" json:"-" cbor:"-"`
	Info []byte `yaml:"-" json:"-" cbor:"-"`
}

// WithSalt returns a copy of p carrying salt and info.
func (p *KDFParams) WithSalt(salt, info []byte) *KDFParams {
	cp := *p
	cp.Salt = salt
	cp.Info = info
	return &cp
}

// KDFAdapter is the interface for key derivation function adapters
type KDFAdapter interface {
	// DeriveKey derives a key from the input key material using the specified parameters
	DeriveKey(ikm []byte, params *KDFParams) ([]byte, error)

	// Algorithm returns the KDF algorithm this adapter implements
	Algorithm() KDFAlgorithm

	// ValidateParams rejects parameters this adapter cannot use. Salt is
	// not checked when it is nil so stored parameters can be validated
	// before a salt exists.
	ValidateParams(params *KDFParams) error
}

var (
	// ErrInvalidSalt indicates the salt is too short
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is invalid
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidHash indicates the hash function is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported hash function")

	// ErrInvalidIKM indicates the password is empty
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported by this adapter
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// DefaultParams returns recommended default parameters for each KDF
// algorithm, or nil for an unknown one.
func DefaultParams(algorithm KDFAlgorithm) *KDFParams {
	switch algorithm {
	case AlgorithmHKDF:
		return &KDFParams{
			Algorithm: AlgorithmHKDF,
			KeyLength: DefaultKeyLength,
			Hash:      HashSHA256,
		}
	case AlgorithmPBKDF2:
		return &KDFParams{
			Algorithm:  AlgorithmPBKDF2,
			Iterations: 600000, // OWASP recommendation for PBKDF2-SHA256 (2023)
			KeyLength:  DefaultKeyLength,
			Hash:       HashSHA256,
		}
	case AlgorithmArgon2id, AlgorithmArgon2i:
		return &KDFParams{
			Algorithm: algorithm,
			Memory:    64 * 1024, // 64 MiB
			Time:      3,
			Threads:   4,
			KeyLength: DefaultKeyLength,
		}
	default:
		return nil
	}
}

// NewAdapter returns the adapter for algorithm.
func NewAdapter(algorithm KDFAlgorithm) (KDFAdapter, error) {
	switch algorithm {
	case AlgorithmArgon2id, AlgorithmArgon2i:
		return NewArgon2Adapter(algorithm), nil
	case AlgorithmPBKDF2:
		return NewPBKDF2Adapter(), nil
	case AlgorithmHKDF:
		return NewHKDFAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(algorithm))
	}
}

// Derive selects the adapter named by params and derives a key.
func Derive(ikm []byte, params *KDFParams) ([]byte, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params cannot be nil", ErrUnsupportedAlgorithm)
	}
	adapter, err := NewAdapter(params.Algorithm)
	if err != nil {
		return nil, err
	}
	return adapter.DeriveKey(ikm, params)
}

// Validate checks params against the adapter they name.
func Validate(params *KDFParams) error {
	if params == nil {
		return fmt.Errorf("%w: params cannot be nil", ErrUnsupportedAlgorithm)
	}
	adapter, err := NewAdapter(params.Algorithm)
	if err != nil {
		return err
	}
	return adapter.ValidateParams(params)
}
