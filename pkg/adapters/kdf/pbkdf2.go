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

	"golang.org/x/crypto/pbkdf2"
)

const (
	MinPBKDF2Iterations = 100000
	MaxPBKDF2Iterations = 100000000

	MinPBKDF2SaltLength = 16
)

// PBKDF2Adapter derives keys with PBKDF2-HMAC.
type PBKDF2Adapter struct{}

func NewPBKDF2Adapter() *PBKDF2Adapter {
	return &PBKDF2Adapter{}
}

func (p *PBKDF2Adapter) DeriveKey(ikm []byte, params *KDFParams) ([]byte, error) {
	if err := p.ValidateParams(params); err != nil {
		return nil, err
	}
	if err := requireInput(ikm, params.Salt, MinPBKDF2SaltLength); err != nil {
		return nil, err
	}
	return pbkdf2.Key(ikm, params.Salt, params.Iterations, params.KeyLength, params.Hash.Crypto().New), nil
}

func (p *PBKDF2Adapter) Algorithm() KDFAlgorithm {
	return AlgorithmPBKDF2
}

func (p *PBKDF2Adapter) ValidateParams(params *KDFParams) error {
	if err := checkCommon(params, AlgorithmPBKDF2, MinPBKDF2SaltLength); err != nil {
		return err
	}
	if params.Iterations < MinPBKDF2Iterations || params.Iterations > MaxPBKDF2Iterations {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidIterations, params.Iterations, MinPBKDF2Iterations, MaxPBKDF2Iterations)
	}
	_, err := checkHash(params.Hash)
	return err
}
