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

package stream

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"

	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
)

// Sharer splits a secret into N share streams incrementally. Call Update
// any number of times, then Finalize exactly once. Share streams are
// incomplete until Finalize returns nil. A Sharer is not safe for
// concurrent use.
type Sharer struct {
	field    *field.Field
	opts     Options
	splitter *secretsharing.Splitter
	writers  []*codec.Writer
	shuffler *shuffle.Shuffler
	hash     hash.Hash
	log      logger.Logger
	progress *rate.Sometimes

	// pending holds the current shuffle block of each share.
	pending [][]*big.Int
	block   uint64

	secretLen int64
	consumed  int64
	units     uint64
	finalized bool
	err       error
}

// NewSharer writes the stream header to each of the N sinks. sinks[i]
// receives the share with x = i+1. A negative secretLen means the length is
// unknown and the header records the unknown-count sentinel.
func NewSharer(f *field.Field, opts Options, sinks []io.Writer, secretLen int64) (*Sharer, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field cannot be nil", ErrInvalidConfig)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(sinks) != opts.Shares {
		return nil, fmt.Errorf("%w: %d sinks for %d shares", ErrInvalidConfig, len(sinks), opts.Shares)
	}
	if secretLen == 0 {
		return nil, ErrEmptySecret
	}

	splitter, err := secretsharing.NewSplitter(f, &secretsharing.ShareConfig{
		Threshold:   opts.Threshold,
		TotalShares: opts.Shares,
	}, opts.random())
	if err != nil {
		return nil, err
	}

	s := &Sharer{
		field:     f,
		opts:      opts,
		splitter:  splitter,
		log:       opts.log().With(logger.Int("threshold", opts.Threshold), logger.Int("shares", opts.Shares)),
		progress:  newProgress(),
		secretLen: secretLen,
	}

	digest := opts.digest()
	if digest.Enabled() {
		if s.hash, err = digest.New(); err != nil {
			return nil, err
		}
	}

	if s.shuffler, err = opts.newShuffler(f.Prime()); err != nil {
		return nil, err
	}
	if s.shuffler != nil {
		s.pending = make([][]*big.Int, opts.Shares)
		for i := range s.pending {
			s.pending[i] = make([]*big.Int, 0, shuffle.BlockSize)
		}
	}

	count := codec.UnknownCount
	if secretLen > 0 {
		count = uint64(secretLen) + uint64(digest.Size())
	}
	s.writers = make([]*codec.Writer, len(sinks))
	for i, sink := range sinks {
		w, err := codec.NewWriter(sink, count)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		s.writers[i] = w
	}
	return s, nil
}

// Update splits p and writes the resulting values. p may be any length.
func (s *Sharer) Update(p []byte) error {
	if s.finalized {
		return ErrFinalized
	}
	if s.err != nil {
		return s.err
	}
	if s.secretLen > 0 && s.consumed+int64(len(p)) > s.secretLen {
		return s.fail(fmt.Errorf("%w: more than %d bytes", ErrSecretLength, s.secretLen))
	}
	if s.hash != nil {
		s.hash.Write(p)
	}
	if err := s.splitUnits(p); err != nil {
		return s.fail(err)
	}
	s.consumed += int64(len(p))
	return nil
}

// Finalize appends the digest, flushes any partial shuffle block and
// flushes every share stream. It must be called exactly once.
func (s *Sharer) Finalize() error {
	if s.finalized {
		return ErrFinalized
	}
	s.finalized = true
	if s.err != nil {
		return s.err
	}
	if s.consumed == 0 {
		return ErrEmptySecret
	}
	if s.secretLen > 0 && s.consumed != s.secretLen {
		return fmt.Errorf("%w: got %d of %d bytes", ErrSecretLength, s.consumed, s.secretLen)
	}

	if s.hash != nil {
		if err := s.splitUnits(s.hash.Sum(nil)); err != nil {
			return err
		}
	}
	if s.shuffler != nil && len(s.pending[0]) > 0 {
		if err := s.flushBlock(); err != nil {
			return err
		}
	}
	for i, w := range s.writers {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("share %d: %w", i+1, err)
		}
	}

	s.log.Debug("sharer finalized",
		logger.Int64("secret_bytes", s.consumed),
		logger.Uint64("units", s.units))
	return nil
}

// ReadFrom reads r to EOF in ChunkSize pieces, passing each to Update. It
// does not call Finalize.
func (s *Sharer) ReadFrom(r io.Reader) (int64, error) {
	return s.readFrom(context.Background(), r)
}

func (s *Sharer) readFrom(ctx context.Context, r io.Reader) (int64, error) {
	buf := make([]byte, s.opts.chunkSize())
	defer clear(buf)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if uerr := s.Update(buf[:n]); uerr != nil {
				return total, uerr
			}
			total += int64(n)
			s.progress.Do(func() {
				s.log.Debug("chunk split", logger.Int("bytes", n), logger.Int64("total", total))
			})
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Consumed returns the number of secret bytes accepted so far.
func (s *Sharer) Consumed() int64 {
	return s.consumed
}

// Units returns the number of values issued per share, digest included.
func (s *Sharer) Units() uint64 {
	return s.units
}

func (s *Sharer) fail(err error) error {
	s.err = err
	return err
}

func (s *Sharer) splitUnits(p []byte) error {
	for _, b := range p {
		ys, err := s.splitter.SplitByte(b)
		if err != nil {
			return err
		}
		s.units++

		if s.shuffler == nil {
			for i, y := range ys {
				if err := s.writers[i].WriteValue(s.field.ToBig(y)); err != nil {
					return fmt.Errorf("share %d: %w", i+1, err)
				}
			}
			continue
		}

		for i, y := range ys {
			s.pending[i] = append(s.pending[i], s.field.ToBig(y))
		}
		if len(s.pending[0]) == shuffle.BlockSize {
			if err := s.flushBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sharer) flushBlock() error {
	for i, values := range s.pending {
		x := i + 1
		if err := s.shuffler.Shuffle(x, s.block, values); err != nil {
			return fmt.Errorf("share %d: %w", x, err)
		}
		for _, v := range values {
			if err := s.writers[i].WriteValue(v); err != nil {
				return fmt.Errorf("share %d: %w", x, err)
			}
		}
		clear(values)
		s.pending[i] = values[:0]
	}
	s.block++
	return nil
}
