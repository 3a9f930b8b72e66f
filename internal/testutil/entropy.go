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

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20"
)

// deterministicReader is a ChaCha20 keystream keyed by a seed. It lets tests
// replay coefficient and prime draws exactly.
type deterministicReader struct {
	cipher *chacha20.Cipher
}

// NewDeterministicReader returns an endless, reproducible entropy stream.
// Never use it outside tests.
func NewDeterministicReader(seed string) io.Reader {
	key := sha256.Sum256([]byte(seed))
	c, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		panic(err)
	}
	return &deterministicReader{cipher: c}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	clear(p)
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Combinations returns every k-element subset of 0..n-1 in lexicographic
// order.
func Combinations(n, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			out = append(out, append([]int(nil), idx...))
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}
