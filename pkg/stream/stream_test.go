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
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sss/internal/testutil"
	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/shuffle"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

const helloWorld = "HELLO, WORLD!"

// fastKDF keeps shuffle tests quick.
func fastKDF() *kdf.KDFParams {
	return &kdf.KDFParams{
		Algorithm: kdf.AlgorithmArgon2id,
		Memory:    kdf.MinArgon2Memory,
		Time:      1,
		Threads:   1,
		KeyLength: 32,
	}
}

type session struct {
	prime  []byte
	shares [][]byte
	result *SplitResult
}

func splitSecret(t *testing.T, secret []byte, secretLen int64, opts Options) *session {
	t.Helper()
	bufs := make([]*bytes.Buffer, opts.Shares)
	sinks := make([]io.Writer, opts.Shares)
	for i := range bufs {
		bufs[i] = &bytes.Buffer{}
		sinks[i] = bufs[i]
	}
	var prime bytes.Buffer

	result, err := Split(context.Background(), bytes.NewReader(secret), secretLen, sinks, &prime, opts, field.DefaultPrimeBits)
	require.NoError(t, err)

	s := &session{prime: prime.Bytes(), result: result}
	for _, b := range bufs {
		s.shares = append(s.shares, b.Bytes())
	}
	return s
}

func (s *session) sources(xs ...int) []Source {
	sources := make([]Source, len(xs))
	for i, x := range xs {
		sources[i] = Source{X: x, R: bytes.NewReader(s.shares[x-1])}
	}
	return sources
}

func (s *session) field(t *testing.T) *field.Field {
	t.Helper()
	prime, err := codec.ReadPrime(bytes.NewReader(s.prime))
	require.NoError(t, err)
	f, err := field.New(prime)
	require.NoError(t, err)
	return f
}

func (s *session) combine(opts Options, xs ...int) ([]byte, error) {
	var out bytes.Buffer
	_, err := Combine(context.Background(), s.sources(xs...), bytes.NewReader(s.prime), &out, opts)
	return out.Bytes(), err
}

func TestHelloWorld(t *testing.T) {
	opts := Options{
		Threshold: 3,
		Shares:    5,
		ChunkSize: 4,
		Digest:    verify.SHA256,
		Random:    testutil.NewDeterministicReader("hello"),
	}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	require.Len(t, s.shares, 5)
	assert.Equal(t, int64(13), s.result.SecretLength)
	assert.Equal(t, uint64(13+32), s.result.Units)

	for _, xs := range [][]int{{1, 3, 5}, {2, 4, 5}} {
		got, err := s.combine(Options{Threshold: 3, ChunkSize: 4, Digest: verify.SHA256}, xs...)
		require.NoError(t, err, "shares %v", xs)
		assert.Equal(t, helloWorld, string(got), "shares %v", xs)
	}
}

func TestHelloWorld_BelowThreshold(t *testing.T) {
	opts := Options{Threshold: 3, Shares: 5, ChunkSize: 4, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	t.Run("threshold known", func(t *testing.T) {
		_, err := s.combine(Options{Threshold: 3, Digest: verify.SHA256}, 1, 2)
		assert.ErrorIs(t, err, secretsharing.ErrInsufficientShares)
		assert.True(t, IsConfigError(err))
	})

	t.Run("threshold unknown", func(t *testing.T) {
		got, err := s.combine(Options{Digest: verify.SHA256}, 1, 2)
		require.Error(t, err)
		assert.True(t, IsVerificationError(err), "got %v", err)
		assert.NotEqual(t, helloWorld, string(got))
	})

	t.Run("threshold unknown without digest", func(t *testing.T) {
		got, err := s.combine(Options{}, 4, 5)
		if err == nil {
			assert.NotEqual(t, helloWorld, string(got[:min(len(got), len(helloWorld))]))
		} else {
			assert.True(t, IsVerificationError(err), "got %v", err)
		}
	})
}

func TestEmptySecret(t *testing.T) {
	sinks := []io.Writer{&bytes.Buffer{}, &bytes.Buffer{}}
	opts := Options{Threshold: 2, Shares: 2, Digest: verify.SHA256}

	var prime bytes.Buffer
	_, err := Split(context.Background(), bytes.NewReader(nil), 0, sinks, &prime, opts, 64)
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.True(t, IsConfigError(err))
	assert.Zero(t, prime.Len(), "no prime may be generated for an empty secret")

	_, err = Split(context.Background(), bytes.NewReader(nil), -1, sinks, &prime, opts, 64)
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.Zero(t, prime.Len(), "no prime may be generated for an empty stream of unknown length")
	for i, sink := range sinks {
		assert.Zero(t, sink.(*bytes.Buffer).Len(), "share %d was written", i+1)
	}

	_, err = Split(context.Background(), iotest.ErrReader(io.ErrClosedPipe), -1, sinks, &prime, opts, 64)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Zero(t, prime.Len())
}

func TestDigestNameCase(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 2, Digest: "SHA256"}
	require.NoError(t, opts.Validate())
	assert.Equal(t, verify.SHA256, opts.digest())

	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
	assert.Equal(t, verify.SHA256, s.result.Digest)

	got, err := s.combine(Options{Digest: " Sha256 "}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, helloWorld, string(got))
}

func TestRoundTrip(t *testing.T) {
	const chunk = 16
	sizes := []int{1, chunk - 1, chunk, chunk + 1, 3*chunk + 5}

	configs := []struct {
		name     string
		k, n     int
		digest   verify.Algorithm
		password string
	}{
		{"2-of-4 sha256", 2, 4, verify.SHA256, ""},
		{"3-of-4 blake3", 3, 4, verify.BLAKE3, ""},
		{"3-of-5 no digest", 3, 5, "", ""},
		{"2-of-3 shuffled", 2, 3, verify.SHA512, "hunter2"},
	}

	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			opts := Options{
				Threshold: cfg.k,
				Shares:    cfg.n,
				ChunkSize: chunk,
				Digest:    cfg.digest,
				Password:  []byte(cfg.password),
				KDF:       fastKDF(),
			}
			for _, size := range sizes {
				secret := make([]byte, size)
				_, err := io.ReadFull(rand.Reader, secret)
				require.NoError(t, err)

				s := splitSecret(t, secret, int64(size), opts)
				for _, combo := range testutil.Combinations(cfg.n, cfg.k) {
					xs := make([]int, len(combo))
					for i, idx := range combo {
						xs[len(combo)-1-i] = idx + 1
					}
					got, err := s.combine(opts, xs...)
					require.NoError(t, err, "size=%d shares=%v", size, xs)
					assert.Equal(t, secret, got, "size=%d shares=%v", size, xs)
				}
			}
		})
	}
}

func TestRoundTrip_ShuffleBlocks(t *testing.T) {
	opts := Options{
		Threshold: 2,
		Shares:    3,
		ChunkSize: 100, // rounded up to a whole block when reading
		Digest:    verify.SHA256,
		Password:  []byte("correct horse"),
		KDF:       fastKDF(),
	}
	secret := bytes.Repeat([]byte("0123456789"), 3*shuffle.BlockSize/10+7)
	s := splitSecret(t, secret, int64(len(secret)), opts)

	got, err := s.combine(opts, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	// Shuffled shares are not plain shares under the same prime.
	plain := opts
	plain.Password = nil
	_, err = s.combine(plain, 3, 1)
	assert.True(t, IsVerificationError(err), "got %v", err)
}

func TestMoreThanThreshold(t *testing.T) {
	opts := Options{Threshold: 3, Shares: 5, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	got, err := s.combine(opts, 5, 4, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, helloWorld, string(got))

	got, err = s.combine(opts, 1, 2, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, helloWorld, string(got))
}

func TestUnknownLength(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, ChunkSize: 5, Digest: verify.SHA3_256}
	secret := []byte("streamed without a declared length")
	s := splitSecret(t, secret, -1, opts)

	r, err := codec.NewReader(bytes.NewReader(s.shares[0]))
	require.NoError(t, err)
	_, known := r.Count()
	assert.False(t, known)

	got, err := s.combine(opts, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestWrongPassword(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, Digest: verify.SHA256, Password: []byte("right"), KDF: fastKDF()}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	wrong := opts
	wrong.Password = []byte("wrong")
	got, err := s.combine(wrong, 1, 2)
	require.Error(t, err)
	assert.True(t, IsVerificationError(err), "got %v", err)
	assert.NotEqual(t, helloWorld, string(got))
}

func TestWrongPrime(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	// Roughly a third of random 64-bit primes are smaller than some share
	// value, the rest decode to garbage. Both must fail verification.
	for i := 0; i < 40; i++ {
		other, err := field.GeneratePrime(rand.Reader, field.DefaultPrimeBits)
		require.NoError(t, err)
		var prime bytes.Buffer
		require.NoError(t, codec.WritePrime(&prime, other))

		wrong := &session{prime: prime.Bytes(), shares: s.shares}
		_, err = wrong.combine(opts, 1, 2)
		require.Error(t, err)
		assert.True(t, IsVerificationError(err), "got %v", err)
		assert.False(t, IsFormatError(err), "got %v", err)
		assert.Equal(t, ClassVerification, ErrorClass(err))
	}

	notPrime := &session{prime: []byte{0, 0, 0, 2, 0x01, 0x00}, shares: s.shares}
	_, err := notPrime.combine(opts, 1, 2)
	assert.ErrorIs(t, err, field.ErrNotPrime)
	assert.True(t, IsFormatError(err))
}

func TestCombinerValueRange(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 2, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
	f := s.field(t)
	c, err := NewCombiner(f, opts, s.sources(1, 2))
	require.NoError(t, err)

	err = c.checkValue(big.NewInt(-1))
	assert.True(t, IsFormatError(err), "got %v", err)

	err = c.checkValue(f.Prime())
	assert.Equal(t, ClassVerification, ErrorClass(err))

	assert.NoError(t, c.checkValue(new(big.Int).Sub(f.Prime(), big.NewInt(1))))
}

func TestWrongDigestAlgorithm(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 2, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	for _, alg := range []verify.Algorithm{verify.SHA512, verify.BLAKE3, verify.BLAKE2b256} {
		wrong := opts
		wrong.Digest = alg
		_, err := s.combine(wrong, 1, 2)
		assert.True(t, IsVerificationError(err), "%s: got %v", alg, err)
	}
}

func TestBitFlip(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, ChunkSize: 8, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	original := s.shares[1]
	for pos := range original {
		for _, mask := range []byte{0x01, 0x80} {
			corrupt := append([]byte(nil), original...)
			corrupt[pos] ^= mask
			tampered := &session{prime: s.prime, shares: [][]byte{s.shares[0], corrupt, s.shares[2]}}

			got, err := tampered.combine(opts, 1, 2)
			require.Error(t, err, "flip %#x at byte %d accepted: %q", mask, pos, got)
			assert.True(t, IsFormatError(err) || IsVerificationError(err), "byte %d: %v", pos, err)
		}
	}
}

func TestLengthMismatch(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, ChunkSize: 4, Digest: verify.SHA256}

	t.Run("different declared counts", func(t *testing.T) {
		a := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
		b := splitSecret(t, []byte("HELLO"), 5, opts)
		mixed := &session{prime: a.prime, shares: [][]byte{a.shares[0], b.shares[1]}}
		_, err := mixed.combine(opts, 1, 2)
		assert.ErrorIs(t, err, ErrLengthMismatch)
		assert.True(t, IsFormatError(err))
	})

	t.Run("unknown length truncated at record boundary", func(t *testing.T) {
		s := splitSecret(t, []byte(helloWorld), -1, opts)
		short := recordPrefix(t, s.shares[1], 20)
		tampered := &session{prime: s.prime, shares: [][]byte{s.shares[0], short}}
		_, err := tampered.combine(opts, 1, 2)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("declared length truncated at record boundary", func(t *testing.T) {
		s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
		short := recordPrefix(t, s.shares[1], 20)
		tampered := &session{prime: s.prime, shares: [][]byte{s.shares[0], short}}
		_, err := tampered.combine(opts, 1, 2)
		assert.ErrorIs(t, err, codec.ErrTruncated)
		assert.True(t, IsFormatError(err))
	})

	t.Run("truncated mid record", func(t *testing.T) {
		s := splitSecret(t, []byte(helloWorld), -1, opts)
		short := s.shares[1][:len(s.shares[1])-1]
		tampered := &session{prime: s.prime, shares: [][]byte{s.shares[0], short}}
		_, err := tampered.combine(opts, 1, 2)
		assert.True(t, IsFormatError(err), "got %v", err)
	})
}

// recordPrefix returns the header and the first n records of a share.
func recordPrefix(t *testing.T, share []byte, n int) []byte {
	t.Helper()
	off := 8
	for i := 0; i < n; i++ {
		require.Less(t, off+4, len(share))
		l := int(share[off])<<24 | int(share[off+1])<<16 | int(share[off+2])<<8 | int(share[off+3])
		off += 4 + l
	}
	return share[:off]
}

func TestSharerDiscipline(t *testing.T) {
	f := testField(t)
	opts := Options{Threshold: 2, Shares: 2, Digest: verify.SHA256}

	t.Run("update after finalize", func(t *testing.T) {
		s, err := NewSharer(f, opts, []io.Writer{io.Discard, io.Discard}, -1)
		require.NoError(t, err)
		require.NoError(t, s.Update([]byte("abc")))
		require.NoError(t, s.Update([]byte("def")))
		require.NoError(t, s.Finalize())
		assert.Equal(t, int64(6), s.Consumed())
		assert.Equal(t, uint64(6+32), s.Units())

		assert.ErrorIs(t, s.Update([]byte("x")), ErrFinalized)
		assert.ErrorIs(t, s.Finalize(), ErrFinalized)
	})

	t.Run("finalize without data", func(t *testing.T) {
		s, err := NewSharer(f, opts, []io.Writer{io.Discard, io.Discard}, -1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Finalize(), ErrEmptySecret)
	})

	t.Run("declared length short", func(t *testing.T) {
		s, err := NewSharer(f, opts, []io.Writer{io.Discard, io.Discard}, 10)
		require.NoError(t, err)
		require.NoError(t, s.Update([]byte("12345")))
		assert.ErrorIs(t, s.Finalize(), ErrSecretLength)
	})

	t.Run("declared length exceeded", func(t *testing.T) {
		s, err := NewSharer(f, opts, []io.Writer{io.Discard, io.Discard}, 3)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Update([]byte("12345")), ErrSecretLength)
		assert.ErrorIs(t, s.Update([]byte("1")), ErrSecretLength, "errors are sticky")
	})

	t.Run("sink count", func(t *testing.T) {
		_, err := NewSharer(f, opts, []io.Writer{io.Discard}, -1)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("write error", func(t *testing.T) {
		s, err := NewSharer(f, opts, []io.Writer{io.Discard, failingWriter{}}, -1)
		require.NoError(t, err)
		require.NoError(t, s.Update([]byte("a")))
		err = s.Finalize()
		assert.ErrorIs(t, err, errWrite)
		assert.Equal(t, ClassIO, ErrorClass(err))
	})
}

var errWrite = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func testField(t *testing.T) *field.Field {
	t.Helper()
	p, err := field.GeneratePrime(rand.Reader, field.DefaultPrimeBits)
	require.NoError(t, err)
	f, err := field.New(p)
	require.NoError(t, err)
	return f
}

func TestCombinerSources(t *testing.T) {
	opts := Options{Threshold: 2, Shares: 3, Digest: verify.SHA256}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
	prime, err := codec.ReadPrime(bytes.NewReader(s.prime))
	require.NoError(t, err)
	f, err := field.New(prime)
	require.NoError(t, err)

	t.Run("duplicate x", func(t *testing.T) {
		_, err := NewCombiner(f, opts, s.sources(2, 2))
		assert.ErrorIs(t, err, secretsharing.ErrDuplicateX)
		assert.True(t, IsVerificationError(err))
	})

	t.Run("x zero", func(t *testing.T) {
		_, err := NewCombiner(f, opts, []Source{{X: 0, R: bytes.NewReader(s.shares[0])}, {X: 1, R: bytes.NewReader(s.shares[0])}})
		assert.ErrorIs(t, err, secretsharing.ErrInvalidX)
		assert.True(t, IsConfigError(err))
	})

	t.Run("single source", func(t *testing.T) {
		_, err := NewCombiner(f, Options{}, s.sources(1))
		assert.ErrorIs(t, err, secretsharing.ErrInsufficientShares)
	})

	t.Run("wrong x for data", func(t *testing.T) {
		swapped := []Source{{X: 1, R: bytes.NewReader(s.shares[1])}, {X: 2, R: bytes.NewReader(s.shares[0])}}
		c, err := NewCombiner(f, opts, swapped)
		require.NoError(t, err)
		_, err = c.WriteTo(io.Discard)
		assert.True(t, IsVerificationError(err), "got %v", err)
	})

	t.Run("single use", func(t *testing.T) {
		c, err := NewCombiner(f, opts, s.sources(1, 3))
		require.NoError(t, err)
		count, known := c.Count()
		assert.True(t, known)
		assert.Equal(t, uint64(13+32), count)

		var out bytes.Buffer
		n, err := c.WriteTo(&out)
		require.NoError(t, err)
		assert.Equal(t, int64(13), n)
		assert.Equal(t, helloWorld, out.String())

		_, err = c.WriteTo(io.Discard)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{Threshold: 2, Shares: 2}
	_, err := Split(ctx, bytes.NewReader([]byte("secret")), 6, []io.Writer{io.Discard, io.Discard}, io.Discard, opts, 64)
	assert.ErrorIs(t, err, context.Canceled)

	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)
	_, err = Combine(ctx, s.sources(1, 2), bytes.NewReader(s.prime), io.Discard, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Threshold: 2, Shares: 3}, false},
		{"threshold one", Options{Threshold: 1, Shares: 3}, true},
		{"shares one", Options{Threshold: 2, Shares: 1}, true},
		{"threshold above shares", Options{Threshold: 4, Shares: 3}, true},
		{"too many shares", Options{Threshold: 2, Shares: 256}, true},
		{"negative chunk", Options{Threshold: 2, Shares: 3, ChunkSize: -1}, true},
		{"unknown digest", Options{Threshold: 2, Shares: 3, Digest: "md5"}, true},
		{"bad kdf", Options{Threshold: 2, Shares: 3, Password: []byte("pw"), KDF: &kdf.KDFParams{Algorithm: "scrypt"}}, true},
		{"kdf ignored without password", Options{Threshold: 2, Shares: 3, KDF: &kdf.KDFParams{Algorithm: "scrypt"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidConfig, ClassConfig},
		{ErrEmptySecret, ClassConfig},
		{codec.ErrTruncated, ClassFormat},
		{ErrLengthMismatch, ClassFormat},
		{field.ErrNotPrime, ClassFormat},
		{verify.ErrDigestMismatch, ClassVerification},
		{secretsharing.ErrUnitOutOfRange, ClassVerification},
		{field.ErrOutOfRange, ClassVerification},
		{shuffle.ErrValueOutOfRange, ClassVerification},
		{io.ErrClosedPipe, ClassIO},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorClass(tt.err), "%v", tt.err)
	}
	assert.False(t, IsConfigError(nil))
	assert.False(t, IsFormatError(nil))
	assert.False(t, IsVerificationError(nil))
}

func TestMetricsRecorded(t *testing.T) {
	rec := metrics.NewRecorder()
	opts := Options{Threshold: 2, Shares: 3, Digest: verify.SHA256, Metrics: rec}
	s := splitSecret(t, []byte(helloWorld), int64(len(helloWorld)), opts)

	_, err := s.combine(opts, 1, 2)
	require.NoError(t, err)
	wrong := opts
	wrong.Digest = verify.SHA512
	_, err = s.combine(wrong, 1, 2)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "sss.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	for _, want := range []string{
		`sss_operations_total{operation="split",status="success"} 1`,
		`sss_operations_total{operation="combine",status="success"} 1`,
		`sss_operations_total{operation="combine",status="error"} 1`,
		`sss_secret_bytes_total{operation="split"} 13`,
		`sss_share_values_total{operation="split"} 135`,
		`sss_errors_total{error_class="verification",operation="combine"} 1`,
		`sss_verification_failures_total 1`,
	} {
		assert.True(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}
}

func TestShuffledSharesDifferFromPlain(t *testing.T) {
	// The same coefficients and prime with and without a password yield
	// different share bytes.
	plainOpts := Options{Threshold: 2, Shares: 2, Random: testutil.NewDeterministicReader("same")}
	f := testField(t)

	var plainA, plainB bytes.Buffer
	s, err := NewSharer(f, plainOpts, []io.Writer{&plainA, &plainB}, -1)
	require.NoError(t, err)
	require.NoError(t, s.Update([]byte(helloWorld)))
	require.NoError(t, s.Finalize())

	shuffledOpts := plainOpts
	shuffledOpts.Random = testutil.NewDeterministicReader("same")
	shuffledOpts.Password = []byte("pw")
	shuffledOpts.KDF = fastKDF()
	var shufA, shufB bytes.Buffer
	s, err = NewSharer(f, shuffledOpts, []io.Writer{&shufA, &shufB}, -1)
	require.NoError(t, err)
	require.NoError(t, s.Update([]byte(helloWorld)))
	require.NoError(t, s.Finalize())

	assert.NotEqual(t, plainA.Bytes(), shufA.Bytes())
	decoded, err := codec.Decode(bytes.NewReader(shufA.Bytes()), 1)
	require.NoError(t, err)
	assert.Len(t, decoded.Values, len(helloWorld))
	for _, v := range decoded.Values {
		assert.True(t, f.Contains(v))
	}
}
