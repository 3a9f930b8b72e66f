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

package verify

import (
	"fmt"
	"hash"
	"io"
)

// Holdback passes reconstructed bytes through to w while hashing them,
// keeping the trailing Size() bytes back since they may be the digest
// rather than secret data. Call Verify once all data has been written.
type Holdback struct {
	w    io.Writer
	h    hash.Hash
	size int
	tail []byte
	out  int64
}

// NewHoldback wraps w for algorithm a. With None every byte passes straight
// through and Verify always succeeds.
func NewHoldback(w io.Writer, a Algorithm) (*Holdback, error) {
	hb := &Holdback{w: w, size: a.Size()}
	if a.Enabled() {
		h, err := a.New()
		if err != nil {
			return nil, err
		}
		hb.h = h
		hb.tail = make([]byte, 0, 2*hb.size)
	}
	return hb, nil
}

// Write implements io.Writer.
func (hb *Holdback) Write(p []byte) (int, error) {
	if hb.size == 0 {
		n, err := hb.w.Write(p)
		hb.out += int64(n)
		return n, err
	}

	hb.tail = append(hb.tail, p...)
	if excess := len(hb.tail) - hb.size; excess > 0 {
		release := hb.tail[:excess]
		hb.h.Write(release)
		if _, err := hb.w.Write(release); err != nil {
			return 0, err
		}
		hb.out += int64(excess)
		hb.tail = append(hb.tail[:0], hb.tail[excess:]...)
	}
	return len(p), nil
}

// Written returns the number of bytes released to the underlying writer.
func (hb *Holdback) Written() int64 {
	return hb.out
}

// Verify compares the held-back bytes against the digest of everything
// released.
func (hb *Holdback) Verify() error {
	if hb.size == 0 {
		return nil
	}
	if len(hb.tail) < hb.size {
		return fmt.Errorf("%w: have %d bytes, digest is %d", ErrTooShort, len(hb.tail), hb.size)
	}
	if !Equal(hb.h.Sum(nil), hb.tail) {
		return ErrDigestMismatch
	}
	return nil
}
