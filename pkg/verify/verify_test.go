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
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{"SHA512", SHA512, false},
		{" sha3-256 ", SHA3_256, false},
		{"blake2b-256", BLAKE2b256, false},
		{"Blake3", BLAKE3, false},
		{"none", None, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizeMatchesHash(t *testing.T) {
	for _, a := range Algorithms() {
		t.Run(a.String(), func(t *testing.T) {
			if !a.Enabled() {
				assert.Equal(t, 0, a.Size())
				_, err := a.New()
				assert.Error(t, err)
				return
			}
			h, err := a.New()
			require.NoError(t, err)
			assert.Equal(t, a.Size(), h.Size())

			sum, err := a.Sum([]byte("abc"))
			require.NoError(t, err)
			assert.Len(t, sum, a.Size())
		})
	}
}

func TestSHA256KnownAnswer(t *testing.T) {
	sum, err := SHA256.Sum([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(sum))
}

func withDigest(t *testing.T, a Algorithm, data []byte) []byte {
	t.Helper()
	sum, err := a.Sum(data)
	require.NoError(t, err)
	return append(append([]byte(nil), data...), sum...)
}

func TestHoldback(t *testing.T) {
	secret := []byte("HELLO, WORLD!")

	for _, a := range Algorithms() {
		if !a.Enabled() {
			continue
		}
		t.Run(a.String(), func(t *testing.T) {
			stream := withDigest(t, a, secret)

			for _, chunk := range []int{1, 4, 7, 64, len(stream)} {
				var out bytes.Buffer
				hb, err := NewHoldback(&out, a)
				require.NoError(t, err)
				for off := 0; off < len(stream); off += chunk {
					end := min(off+chunk, len(stream))
					n, err := hb.Write(stream[off:end])
					require.NoError(t, err)
					assert.Equal(t, end-off, n)
				}
				require.NoError(t, hb.Verify(), "chunk=%d", chunk)
				assert.Equal(t, secret, out.Bytes())
				assert.Equal(t, int64(len(secret)), hb.Written())
			}
		})
	}
}

func TestHoldbackMismatch(t *testing.T) {
	stream := withDigest(t, SHA256, []byte("HELLO, WORLD!"))

	t.Run("flipped data bit", func(t *testing.T) {
		corrupt := append([]byte(nil), stream...)
		corrupt[3] ^= 0x01
		hb, err := NewHoldback(&bytes.Buffer{}, SHA256)
		require.NoError(t, err)
		_, err = hb.Write(corrupt)
		require.NoError(t, err)
		assert.ErrorIs(t, hb.Verify(), ErrDigestMismatch)
	})

	t.Run("flipped digest bit", func(t *testing.T) {
		corrupt := append([]byte(nil), stream...)
		corrupt[len(corrupt)-1] ^= 0x80
		hb, err := NewHoldback(&bytes.Buffer{}, SHA256)
		require.NoError(t, err)
		_, err = hb.Write(corrupt)
		require.NoError(t, err)
		assert.ErrorIs(t, hb.Verify(), ErrDigestMismatch)
	})

	t.Run("shorter than digest", func(t *testing.T) {
		hb, err := NewHoldback(&bytes.Buffer{}, SHA256)
		require.NoError(t, err)
		_, err = hb.Write(stream[:10])
		require.NoError(t, err)
		assert.ErrorIs(t, hb.Verify(), ErrTooShort)
	})
}

func TestHoldbackNone(t *testing.T) {
	var out bytes.Buffer
	hb, err := NewHoldback(&out, None)
	require.NoError(t, err)
	_, err = hb.Write([]byte("plain"))
	require.NoError(t, err)
	assert.NoError(t, hb.Verify())
	assert.Equal(t, "plain", out.String())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]byte{1, 2, 3}, []byte{1, 2, 3}))
	assert.False(t, Equal([]byte{1, 2, 3}, []byte{1, 2, 4}))
	assert.False(t, Equal([]byte{1, 2}, []byte{1, 2, 3}))
}
