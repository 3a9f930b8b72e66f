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

// Package manifest describes a split session in a small CBOR sidecar file
// written next to the shares. It records the parameters needed to
// reconstruct (threshold, digest algorithm, shuffle settings) so custodians
// do not have to remember them. It never contains secret material.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// Version is the manifest format version.
const Version = 1

// maxSize bounds how much of a manifest file is read.
const maxSize = 64 << 10

var (
	// ErrInvalid is returned for a manifest that fails validation.
	ErrInvalid = errors.New("manifest: invalid manifest")

	// ErrUnsupportedVersion is returned for a newer format version.
	ErrUnsupportedVersion = errors.New("manifest: unsupported version")
)

// Manifest is the session description.
type Manifest struct {
	Version   int    `cbor:"1,keyasint" json:"version"`
	SessionID string `cbor:"2,keyasint" json:"session_id"`
	Threshold int    `cbor:"3,keyasint" json:"threshold"`
	Shares    int    `cbor:"4,keyasint" json:"shares"`

	// Digest is the verification algorithm; "none" when disabled.
	Digest   verify.Algorithm `cbor:"5,keyasint" json:"digest"`
	Shuffled bool             `cbor:"6,keyasint,omitempty" json:"shuffled"`

	// KDF is present only for shuffled sessions.
	KDF *kdf.KDFParams `cbor:"7,keyasint,omitempty" json:"kdf,omitempty"`

	PrimeBits int `cbor:"8,keyasint" json:"prime_bits"`

	// SecretLength is -1 when the secret was streamed without a known length.
	SecretLength int64 `cbor:"9,keyasint" json:"secret_length"`

	// CreatedAt is Unix seconds.
	CreatedAt int64 `cbor:"10,keyasint" json:"created_at"`

	Tool string `cbor:"11,keyasint,omitempty" json:"tool,omitempty"`
}

// New returns a manifest with a fresh session id and creation time.
func New(threshold, shares int) *Manifest {
	return &Manifest{
		Version:   Version,
		SessionID: uuid.NewString(),
		Threshold: threshold,
		Shares:    shares,
		Digest:    verify.None,
		CreatedAt: time.Now().Unix(),
	}
}

// Created returns CreatedAt as a time.
func (m *Manifest) Created() time.Time {
	return time.Unix(m.CreatedAt, 0).UTC()
}

// Validate checks the manifest is internally consistent.
func (m *Manifest) Validate() error {
	if m.Version < 1 {
		return fmt.Errorf("%w: version %d", ErrInvalid, m.Version)
	}
	if m.Version > Version {
		return fmt.Errorf("%w: %d (newest known is %d)", ErrUnsupportedVersion, m.Version, Version)
	}
	if _, err := uuid.Parse(m.SessionID); err != nil {
		return fmt.Errorf("%w: session id: %v", ErrInvalid, err)
	}
	cfg := &secretsharing.ShareConfig{Threshold: m.Threshold, TotalShares: m.Shares}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := verify.Parse(string(m.Digest)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if m.Shuffled {
		if m.KDF == nil {
			return fmt.Errorf("%w: shuffled session without kdf parameters", ErrInvalid)
		}
		if err := kdf.Validate(m.KDF); err != nil {
			return fmt.Errorf("%w: kdf: %v", ErrInvalid, err)
		}
	}
	if m.SecretLength == 0 || m.SecretLength < -1 {
		return fmt.Errorf("%w: secret length %d", ErrInvalid, m.SecretLength)
	}
	return nil
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 8,
		MaxMapPairs:     64,
		IndefLength:     cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal validates m and encodes it with deterministic CBOR.
func Marshal(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(m)
}

// Unmarshal decodes and validates a manifest.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Write encodes m to w.
func Write(w io.Writer, m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read decodes a manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalid, maxSize)
	}
	return Unmarshal(data)
}
