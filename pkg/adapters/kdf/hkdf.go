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
	"crypto"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFAdapter derives keys with HKDF extract-and-expand. It applies no work
// factor, so the input must already be high-entropy key material.
type HKDFAdapter struct{}

func NewHKDFAdapter() *HKDFAdapter {
	return &HKDFAdapter{}
}

func (h *HKDFAdapter) DeriveKey(ikm []byte, params *KDFParams) ([]byte, error) {
	if err := h.ValidateParams(params); err != nil {
		return nil, err
	}
	if err := requireInput(ikm, nil, 0); err != nil {
		return nil, err
	}

	key := make([]byte, params.KeyLength)
	r := hkdf.New(params.Hash.Crypto().New, ikm, params.Salt, params.Info)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (h *HKDFAdapter) Algorithm() KDFAlgorithm {
	return AlgorithmHKDF
}

func (h *HKDFAdapter) ValidateParams(params *KDFParams) error {
	if err := checkCommon(params, AlgorithmHKDF, 0); err != nil {
		return err
	}
	hash, err := checkHash(params.Hash)
	if err != nil {
		return err
	}
	// RFC 5869 output limit
	if limit := 255 * hash.Size(); params.KeyLength > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidKeyLength, params.KeyLength, limit)
	}
	return nil
}

// checkCommon validates the fields every adapter shares. A nil salt is
// accepted so parameters can be validated before the salt is known.
func checkCommon(params *KDFParams, alg KDFAlgorithm, minSalt int) error {
	if params == nil {
		return fmt.Errorf("%w: params cannot be nil", ErrInvalidKeyLength)
	}
	if params.Algorithm != alg {
		return fmt.Errorf("%w: %q given to the %s adapter", ErrUnsupportedAlgorithm, params.Algorithm, alg)
	}
	if params.KeyLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeyLength, params.KeyLength)
	}
	if params.Salt != nil && len(params.Salt) < minSalt {
		return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidSalt, len(params.Salt), minSalt)
	}
	return nil
}

// requireInput rejects empty key material and, when minSalt > 0, a missing
// or short salt.
func requireInput(ikm, salt []byte, minSalt int) error {
	if len(ikm) == 0 {
		return ErrInvalidIKM
	}
	if minSalt > 0 && len(salt) < minSalt {
		return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidSalt, len(salt), minSalt)
	}
	return nil
}

func checkHash(name HashName) (crypto.Hash, error) {
	h := name.Crypto()
	if h == 0 || !h.Available() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, name)
	}
	return h, nil
}
