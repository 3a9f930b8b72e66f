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

package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Writer emits a share stream value by value.
type Writer struct {
	w       *bufio.Writer
	count   uint64
	written uint64
}

// NewWriter writes the stream header. Pass UnknownCount when the number of
// values is not known up front.
func NewWriter(w io.Writer, count uint64) (*Writer, error) {
	bw := bufio.NewWriter(w)
	var header [countSize]byte
	binary.BigEndian.PutUint64(header[:], count)
	if _, err := bw.Write(header[:]); err != nil {
		return nil, err
	}
	return &Writer{w: bw, count: count}, nil
}

// WriteValue appends one value.
func (w *Writer) WriteValue(v *big.Int) error {
	if w.count != UnknownCount && w.written == w.count {
		return fmt.Errorf("%w: more than %d values", ErrCountMismatch, w.count)
	}
	if err := WriteInt(w.w, v); err != nil {
		return err
	}
	w.written++
	return nil
}

// Written returns the number of values written so far.
func (w *Writer) Written() uint64 {
	return w.written
}

// Flush writes buffered data to the underlying writer. For a stream with a
// declared count it fails if fewer values were written.
func (w *Writer) Flush() error {
	if w.count != UnknownCount && w.written != w.count {
		return fmt.Errorf("%w: wrote %d of %d values", ErrCountMismatch, w.written, w.count)
	}
	return w.w.Flush()
}

// Reader decodes a share stream value by value.
type Reader struct {
	r     *bufio.Reader
	count uint64
	read  uint64
}

// NewReader consumes the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var header [countSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream header", ErrTruncated)
		}
		return nil, err
	}
	return &Reader{r: br, count: binary.BigEndian.Uint64(header[:])}, nil
}

// Count returns the declared number of values and whether it is known.
func (r *Reader) Count() (uint64, bool) {
	return r.count, r.count != UnknownCount
}

// Read returns the number of values decoded so far.
func (r *Reader) Read() uint64 {
	return r.read
}

// ReadValue returns the next value, or io.EOF after the last one. A stream
// with a declared count that ends early yields ErrTruncated, and one with
// bytes past its last value yields ErrTrailingData.
func (r *Reader) ReadValue() (*big.Int, error) {
	known := r.count != UnknownCount
	if known && r.read == r.count {
		if err := expectEOF(r.r); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	v, err := ReadInt(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) && known {
			return nil, fmt.Errorf("%w: got %d of %d values", ErrTruncated, r.read, r.count)
		}
		return nil, err
	}
	r.read++
	return v, nil
}
