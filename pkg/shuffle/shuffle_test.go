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

package shuffle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/codec"
)

var testPrime = big.NewInt(65537)

func testParams() *kdf.KDFParams {
	return &kdf.KDFParams{
		Algorithm: kdf.AlgorithmArgon2id,
		Memory:    kdf.MinArgon2Memory,
		Time:      1,
		Threads:   1,
		KeyLength: 32,
	}
}

func newTestShuffler(t *testing.T, password string, prime *big.Int) *Shuffler {
	t.Helper()
	s, err := New([]byte(password), prime, testParams())
	require.NoError(t, err)
	return s
}

func sequence(n int) []*big.Int {
	values := make([]*big.Int, n)
	for i := range values {
		values[i] = big.NewInt(int64(i * 7))
	}
	return values
}

func cloneValues(values []*big.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

func equalValues(a, b []*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	_, err := New(nil, testPrime, testParams())
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = New([]byte("pw"), nil, testParams())
	assert.ErrorIs(t, err, ErrInvalidPrime)

	_, err = New([]byte("pw"), big.NewInt(0), testParams())
	assert.ErrorIs(t, err, ErrInvalidPrime)

	bad := testParams()
	bad.Memory = 1
	_, err = New([]byte("pw"), testPrime, bad)
	assert.ErrorIs(t, err, kdf.ErrInvalidMemory)

	s := newTestShuffler(t, "pw", testPrime)
	params := s.Params()
	assert.Equal(t, kdf.AlgorithmArgon2id, params.Algorithm)
	assert.Nil(t, params.Salt)
}

func TestSaltDependsOnPrime(t *testing.T) {
	assert.Equal(t, Salt(testPrime), Salt(big.NewInt(65537)))
	assert.NotEqual(t, Salt(testPrime), Salt(big.NewInt(257)))
	assert.Len(t, Salt(testPrime), 32)
}

func TestRoundTrip(t *testing.T) {
	s := newTestShuffler(t, "hunter2", testPrime)

	for _, n := range []int{0, 1, 2, 13, BlockSize - 1, BlockSize} {
		original := sequence(n)
		values := cloneValues(original)

		require.NoError(t, s.Shuffle(3, 0, values))
		if n > 4 {
			assert.False(t, equalValues(original, values), "n=%d should change", n)
		}
		for _, v := range values {
			assert.True(t, v.Sign() >= 0 && v.Cmp(testPrime) < 0)
		}

		require.NoError(t, s.Unshuffle(3, 0, values))
		assert.True(t, equalValues(original, values), "n=%d", n)
	}
}

func TestDeterministic(t *testing.T) {
	a := newTestShuffler(t, "hunter2", testPrime)
	b := newTestShuffler(t, "hunter2", testPrime)

	va := sequence(50)
	vb := sequence(50)
	require.NoError(t, a.Shuffle(2, 9, va))
	require.NoError(t, b.Shuffle(2, 9, vb))
	assert.True(t, equalValues(va, vb))
}

func TestKeyedByCoordinateBlockAndPassword(t *testing.T) {
	s := newTestShuffler(t, "hunter2", testPrime)

	base := sequence(64)
	require.NoError(t, s.Shuffle(1, 0, base))

	otherX := sequence(64)
	require.NoError(t, s.Shuffle(2, 0, otherX))
	assert.False(t, equalValues(base, otherX))

	otherBlock := sequence(64)
	require.NoError(t, s.Shuffle(1, 1, otherBlock))
	assert.False(t, equalValues(base, otherBlock))

	wrong := newTestShuffler(t, "hunter3", testPrime)
	values := sequence(64)
	require.NoError(t, s.Shuffle(1, 0, values))
	require.NoError(t, wrong.Unshuffle(1, 0, values))
	assert.False(t, equalValues(sequence(64), values))
}

func TestShuffleShare(t *testing.T) {
	s := newTestShuffler(t, "hunter2", testPrime)

	original := sequence(3*BlockSize + 17)
	share := &codec.Share{X: 4, Values: cloneValues(original)}

	require.NoError(t, s.ShuffleShare(share))
	assert.False(t, equalValues(original, share.Values))

	// A share shuffled whole matches one shuffled block by block.
	blockwise := cloneValues(original)
	for off, block := 0, uint64(0); off < len(blockwise); off, block = off+BlockSize, block+1 {
		end := min(off+BlockSize, len(blockwise))
		require.NoError(t, s.Shuffle(4, block, blockwise[off:end]))
	}
	assert.True(t, equalValues(blockwise, share.Values))

	require.NoError(t, s.UnshuffleShare(share))
	assert.True(t, equalValues(original, share.Values))
}

func TestErrors(t *testing.T) {
	s := newTestShuffler(t, "hunter2", testPrime)

	assert.ErrorIs(t, s.Shuffle(0, 0, sequence(4)), ErrInvalidX)
	assert.ErrorIs(t, s.Shuffle(1, 0, sequence(BlockSize+1)), ErrBlockTooLarge)
	assert.ErrorIs(t, s.Unshuffle(1, 0, []*big.Int{big.NewInt(65537)}), ErrValueOutOfRange)
	assert.ErrorIs(t, s.Unshuffle(1, 0, []*big.Int{big.NewInt(-1)}), ErrValueOutOfRange)
}

func TestKeystreamSampling(t *testing.T) {
	ks, err := newKeystream(make([]byte, 32), 1, 0)
	require.NoError(t, err)

	counts := make([]int, 5)
	for i := 0; i < 5000; i++ {
		counts[ks.intn(5)]++
	}
	for i, c := range counts {
		assert.InDelta(t, 1000, c, 150, "bucket %d", i)
	}

	p := big.NewInt(257)
	for i := 0; i < 1000; i++ {
		v := ks.below(p)
		assert.True(t, v.Sign() >= 0 && v.Cmp(p) < 0)
	}
}

func TestDestroy(t *testing.T) {
	s := newTestShuffler(t, "hunter2", testPrime)
	s.Destroy()
	assert.Equal(t, [keySize]byte{}, s.key)
}
