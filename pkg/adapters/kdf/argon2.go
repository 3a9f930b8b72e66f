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

package kdf

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2 cost bounds. KDF parameters are read back from manifests written by
// other hosts, so the upper bounds keep a tampered file from stalling or
// exhausting the machine that reconstructs.
const (
	MinArgon2SaltLength = 16

	// Memory is in KiB: 8 MiB to 4 GiB.
	MinArgon2Memory = 8 * 1024
	MaxArgon2Memory = 4 * 1024 * 1024

	MinArgon2Time = 1
	MaxArgon2Time = 64

	MinArgon2Threads = 1
)

// Argon2Adapter derives keys with Argon2i or Argon2id.
type Argon2Adapter struct {
	variant KDFAlgorithm
}

// NewArgon2Adapter creates a new Argon2 adapter for variant. Anything other
// than AlgorithmArgon2i selects Argon2id.
func NewArgon2Adapter(variant KDFAlgorithm) *Argon2Adapter {
	if variant != AlgorithmArgon2i {
		variant = AlgorithmArgon2id
	}
	return &Argon2Adapter{variant: variant}
}

// DeriveKey stretches ikm with the configured variant. A salt is required.
func (a *Argon2Adapter) DeriveKey(ikm []byte, params *KDFParams) ([]byte, error) {
	if err := a.ValidateParams(params); err != nil {
		return nil, err
	}
	if err := requireInput(ikm, params.Salt, MinArgon2SaltLength); err != nil {
		return nil, err
	}

	derive := argon2.IDKey
	if a.variant == AlgorithmArgon2i {
		derive = argon2.Key
	}
	return derive(ikm, params.Salt, params.Time, params.Memory, params.Threads, uint32(params.KeyLength)), nil
}

func (a *Argon2Adapter) Algorithm() KDFAlgorithm {
	return a.variant
}

func (a *Argon2Adapter) ValidateParams(params *KDFParams) error {
	if err := checkCommon(params, a.variant, MinArgon2SaltLength); err != nil {
		return err
	}
	switch {
	case params.Memory < MinArgon2Memory || params.Memory > MaxArgon2Memory:
		return fmt.Errorf("%w: %d KiB (must be %d-%d)", ErrInvalidMemory, params.Memory, MinArgon2Memory, MaxArgon2Memory)
	case params.Time < MinArgon2Time || params.Time > MaxArgon2Time:
		return fmt.Errorf("%w: %d passes (must be %d-%d)", ErrInvalidTime, params.Time, MinArgon2Time, MaxArgon2Time)
	case params.Threads < MinArgon2Threads:
		return fmt.Errorf("%w: %d lanes", ErrInvalidThreads, params.Threads)
	}
	return nil
}
