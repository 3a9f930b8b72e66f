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

package rand

import (
	"errors"
	"io"
)

var errNotConfigured = errors.New("rand: source not configured")

// hardwareSource is one source ModeAuto may pick.
type hardwareSource struct {
	mode     Mode
	compiled func() bool
	open     func(*Config) (Resolver, error)
}

// autoOrder lists hardware sources from most to least preferred. PKCS#11 is
// only tried when configured since it needs a module path.
var autoOrder = []hardwareSource{
	{
		mode:     ModePKCS11,
		compiled: pkcs11Available,
		open: func(cfg *Config) (Resolver, error) {
			if cfg.PKCS11 == nil {
				return nil, errNotConfigured
			}
			return newPKCS11Resolver(cfg.PKCS11)
		},
	},
	{
		mode:     ModeTPM2,
		compiled: tpm2Available,
		open:     func(cfg *Config) (Resolver, error) { return newTPM2Resolver(cfg.TPM2) },
	},
}

// newAutoResolver returns the first hardware source that opens and serves a
// probe read, or the software source.
func newAutoResolver(cfg *Config) (Resolver, error) {
	for _, src := range autoOrder {
		if !src.compiled() {
			continue
		}
		r, err := src.open(cfg)
		if err != nil {
			continue
		}
		if probe(r) {
			return r, nil
		}
		_ = r.Close()
	}
	return Software(), nil
}

// probe reports whether r claims availability and can produce one byte.
func probe(r Resolver) bool {
	if !r.Available() {
		return false
	}
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return err == nil
}
