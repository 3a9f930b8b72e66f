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

// Package codec implements the binary share format.
//
// All integers are big-endian. A share stream is
//
//	[u64] count
//	count * ([u32] length, [length] signed big-endian two's-complement value)
//
// and a prime record is a single length-prefixed value. A count of
// UnknownCount marks a stream whose length was not known when it was
// written; its records run to end of input.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
)

const (
	// UnknownCount is the header value of a share stream written without a
	// known length.
	UnknownCount uint64 = math.MaxUint64

	// MaxValueLen bounds the declared length of one encoded value. It covers
	// the widest supported prime with room to spare and stops a corrupt
	// length prefix from forcing a huge allocation.
	MaxValueLen = 1024

	countSize  = 8
	lengthSize = 4
)

var (
	// ErrFormat is the parent of every malformed-input error in this package.
	ErrFormat = errors.New("codec: malformed share data")

	// ErrTruncated is returned when input ends inside a header or value, or
	// before the declared number of values.
	ErrTruncated = fmt.Errorf("%w: truncated input", ErrFormat)

	// ErrNegativeValue is returned when a value carries a sign bit.
	ErrNegativeValue = fmt.Errorf("%w: negative value", ErrFormat)

	// ErrValueTooLarge is returned when a length prefix exceeds MaxValueLen.
	ErrValueTooLarge = fmt.Errorf("%w: value length too large", ErrFormat)

	// ErrTrailingData is returned when bytes follow the declared content.
	ErrTrailingData = fmt.Errorf("%w: trailing data", ErrFormat)

	// ErrCountMismatch is returned by Writer when the number of values
	// written differs from the declared count.
	ErrCountMismatch = errors.New("codec: value count does not match header")
)

// SignedBytes returns the minimal big-endian two's-complement encoding of v.
// Zero encodes as a single 0x00 byte.
func SignedBytes(v *big.Int) []byte {
	if v.Sign() >= 0 {
		b := v.Bytes()
		if len(b) == 0 || b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
		return b
	}

	// The shortest l with -2^(8l-1) <= v, encoded as 2^(8l) + v.
	mag := new(big.Int).Neg(v)
	mag.Sub(mag, big.NewInt(1))
	l := mag.BitLen()/8 + 1
	t := new(big.Int).Lsh(big.NewInt(1), uint(8*l))
	t.Add(t, v)
	out := make([]byte, l)
	return t.FillBytes(out)
}

// FromSignedBytes decodes a big-endian two's-complement value. An empty
// slice decodes as zero.
func FromSignedBytes(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return v
}

// WriteInt writes one length-prefixed value.
func WriteInt(w io.Writer, v *big.Int) error {
	b := SignedBytes(v)
	var length [lengthSize]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadInt reads one length-prefixed, non-negative value. io.EOF is returned
// only when r is exhausted before the first length byte.
func ReadInt(r io.Reader) (*big.Int, error) {
	var length [lengthSize]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: length prefix", ErrTruncated)
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(length[:])
	if n > MaxValueLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrValueTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: expected %d value bytes", ErrTruncated, n)
		}
		return nil, err
	}

	v := FromSignedBytes(buf)
	if v.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	return v, nil
}

// WritePrime writes the prime record.
func WritePrime(w io.Writer, prime *big.Int) error {
	if prime == nil || prime.Sign() <= 0 {
		return fmt.Errorf("codec: prime must be positive")
	}
	return WriteInt(w, prime)
}

// ReadPrime reads a prime record and rejects anything after it. The value is
// not checked for primality; that belongs to field.New.
func ReadPrime(r io.Reader) (*big.Int, error) {
	p, err := ReadInt(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty prime record", ErrTruncated)
		}
		return nil, err
	}
	if err := expectEOF(r); err != nil {
		return nil, err
	}
	return p, nil
}

// Share is a decoded share: its x-coordinate and values in unit order.
type Share struct {
	X      int
	Values []*big.Int
}

// Encode writes a complete share stream with a known count.
func Encode(w io.Writer, share *Share) error {
	sw, err := NewWriter(w, uint64(len(share.Values)))
	if err != nil {
		return err
	}
	for _, v := range share.Values {
		if err := sw.WriteValue(v); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// Decode reads a complete share stream. The x-coordinate is not part of the
// encoding and is supplied by the caller.
func Decode(r io.Reader, x int) (*Share, error) {
	sr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	share := &Share{X: x}
	if count, ok := sr.Count(); ok && count <= 1<<20 {
		share.Values = make([]*big.Int, 0, count)
	}
	for {
		v, err := sr.ReadValue()
		if errors.Is(err, io.EOF) {
			return share, nil
		}
		if err != nil {
			return nil, err
		}
		share.Values = append(share.Values, v)
	}
}

func expectEOF(r io.Reader) error {
	var one [1]byte
	n, err := r.Read(one[:])
	for n == 0 && err == nil {
		n, err = r.Read(one[:])
	}
	if n > 0 {
		return ErrTrailingData
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
