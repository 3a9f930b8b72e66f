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
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// Source is one share stream and the x-coordinate it was issued for.
type Source struct {
	X int
	R io.Reader
}

// Combiner owns every source of a reconstruction and advances them
// together, so all sources are always at the same value offset.
type Combiner struct {
	field    *field.Field
	prime    *big.Int
	opts     Options
	rec      *secretsharing.Reconstructor
	readers  []*codec.Reader
	xs       []int
	shuffler *shuffle.Shuffler
	log      logger.Logger
	progress *rate.Sometimes

	count uint64
	known bool
	batch int
	units uint64
	done  bool
}

// NewCombiner validates the sources and reads their stream headers.
// Sources declaring different value counts fail with ErrLengthMismatch.
func NewCombiner(f *field.Field, opts Options, sources []Source) (*Combiner, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field cannot be nil", ErrInvalidConfig)
	}
	if err := opts.validateCombine(len(sources)); err != nil {
		return nil, err
	}

	xs := make([]int, len(sources))
	for i, src := range sources {
		if src.R == nil {
			return nil, fmt.Errorf("%w: share %d has no reader", ErrInvalidConfig, src.X)
		}
		xs[i] = src.X
	}
	rec, err := secretsharing.NewReconstructor(f, xs)
	if err != nil {
		return nil, err
	}

	c := &Combiner{
		field:    f,
		prime:    f.Prime(),
		opts:     opts,
		rec:      rec,
		xs:       xs,
		log:      opts.log().With(logger.Ints("shares", xs)),
		progress: newProgress(),
		batch:    opts.chunkSize(),
	}

	c.readers = make([]*codec.Reader, len(sources))
	for i, src := range sources {
		r, err := codec.NewReader(src.R)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", src.X, err)
		}
		count, known := r.Count()
		if i == 0 {
			c.count, c.known = count, known
		} else if count != c.count {
			return nil, fmt.Errorf("%w: share %d declares %s, share %d declares %s",
				ErrLengthMismatch, xs[0], countString(c.count), src.X, countString(count))
		}
		c.readers[i] = r
	}

	if c.shuffler, err = opts.newShuffler(f.Prime()); err != nil {
		return nil, err
	}
	if c.shuffler != nil {
		// Batches must cover whole shuffle blocks.
		c.batch = (c.batch + shuffle.BlockSize - 1) / shuffle.BlockSize * shuffle.BlockSize
	}
	return c, nil
}

// Count returns the value count declared by the share headers and whether
// it is known.
func (c *Combiner) Count() (uint64, bool) {
	return c.count, c.known
}

// Units returns the number of values reconstructed so far.
func (c *Combiner) Units() uint64 {
	return c.units
}

// WriteTo reconstructs the secret into w and verifies its digest. It
// returns the number of secret bytes written. On any error the bytes
// already written to w are not the secret and must be discarded.
func (c *Combiner) WriteTo(w io.Writer) (int64, error) {
	return c.writeTo(context.Background(), w)
}

func (c *Combiner) writeTo(ctx context.Context, w io.Writer) (int64, error) {
	if c.done {
		return 0, fmt.Errorf("%w: combiner already used", ErrInvalidConfig)
	}
	c.done = true

	digest := c.opts.digest()
	hb, err := verify.NewHoldback(w, digest)
	if err != nil {
		return 0, err
	}

	batches := make([][]*big.Int, len(c.readers))
	ys := make([]*saferith.Nat, len(c.readers))
	out := make([]byte, 0, c.batch)
	defer clear(out[:cap(out)])

	for {
		if err := ctx.Err(); err != nil {
			return hb.Written(), err
		}

		n, err := c.readBatch(batches)
		if err != nil {
			return hb.Written(), err
		}
		if n == 0 {
			break
		}

		if c.shuffler != nil {
			if err := c.unshuffle(batches, n); err != nil {
				return hb.Written(), err
			}
		}

		out = out[:n]
		for u := 0; u < n; u++ {
			for i := range batches {
				y, err := c.field.FromBig(batches[i][u])
				if err != nil {
					return hb.Written(), fmt.Errorf("%w: share %d value %d: %w", ErrVerification, c.xs[i], c.units+uint64(u), err)
				}
				ys[i] = y
			}
			b, err := c.rec.ReconstructByte(ys)
			if err != nil {
				return hb.Written(), fmt.Errorf("%w: unit %d: %w", ErrVerification, c.units+uint64(u), err)
			}
			out[u] = b
		}
		c.units += uint64(n)

		if _, err := hb.Write(out); err != nil {
			return hb.Written(), err
		}
		c.progress.Do(func() {
			c.log.Debug("chunk reconstructed", logger.Int("units", n), logger.Uint64("total", c.units))
		})

		if n < c.batch {
			break
		}
	}

	if c.units == 0 {
		return 0, fmt.Errorf("%w: share streams hold no values", codec.ErrTruncated)
	}
	if err := hb.Verify(); err != nil {
		return hb.Written(), fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return hb.Written(), nil
}

// readBatch reads up to c.batch values from every source. All sources must
// return the same number of values.
func (c *Combiner) readBatch(batches [][]*big.Int) (int, error) {
	n := -1
	for i, r := range c.readers {
		batch := batches[i][:0]
		for len(batch) < c.batch {
			v, err := r.ReadValue()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return 0, fmt.Errorf("share %d: %w", c.xs[i], err)
			}
			if err := c.checkValue(v); err != nil {
				return 0, fmt.Errorf("share %d value %d: %w", c.xs[i], c.units+uint64(len(batch)), err)
			}
			batch = append(batch, v)
		}
		batches[i] = batch

		if n >= 0 && len(batch) != n {
			return 0, fmt.Errorf("%w: after %d values share %d yielded %d, share %d yielded %d",
				ErrLengthMismatch, c.units, c.xs[0], n, c.xs[i], len(batch))
		}
		n = len(batch)
	}
	return n, nil
}

func (c *Combiner) unshuffle(batches [][]*big.Int, n int) error {
	first := c.units / shuffle.BlockSize
	for i, values := range batches {
		for off, block := 0, first; off < n; off, block = off+shuffle.BlockSize, block+1 {
			end := min(off+shuffle.BlockSize, n)
			if err := c.shuffler.Unshuffle(c.xs[i], block, values[off:end]); err != nil {
				if errors.Is(err, shuffle.ErrValueOutOfRange) {
					err = fmt.Errorf("%w: %w", ErrVerification, err)
				}
				return fmt.Errorf("share %d: %w", c.xs[i], err)
			}
		}
	}
	return nil
}

// checkValue rejects values no share can hold. A negative value is
// malformed; one at or above the prime is well-formed data for some other
// prime, so it fails verification.
func (c *Combiner) checkValue(v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative share value", codec.ErrFormat)
	}
	if v.Cmp(c.prime) >= 0 {
		return fmt.Errorf("%w: value exceeds the %d-bit prime", ErrVerification, c.prime.BitLen())
	}
	return nil
}

func countString(count uint64) string {
	if count == codec.UnknownCount {
		return "unknown length"
	}
	return fmt.Sprintf("%d values", count)
}
