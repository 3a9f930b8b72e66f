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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/crypto/rand"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sss.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, verify.SHA256, cfg.Digest())
	assert.Equal(t, field.DefaultPrimeBits, cfg.Sharing.PrimeBits)
	assert.Equal(t, kdf.AlgorithmArgon2id, cfg.Shuffle.KDF.Algorithm)
	assert.True(t, cfg.Manifest.Enabled)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Sharing, cfg.Sharing)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
sharing:
  chunk_size: 1024
  digest: blake3
  prime_bits: 128
shuffle:
  kdf:
    algorithm: pbkdf2
    iterations: 200000
    key_length: 32
    hash: sha512
random:
  mode: software
logging:
  level: debug
  format: json
metrics:
  textfile: /var/lib/node_exporter/sss.prom
manifest:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.Sharing.ChunkSize)
	assert.Equal(t, verify.BLAKE3, cfg.Digest())
	assert.Equal(t, 128, cfg.Sharing.PrimeBits)
	assert.Equal(t, kdf.AlgorithmPBKDF2, cfg.Shuffle.KDF.Algorithm)
	assert.Equal(t, 200000, cfg.Shuffle.KDF.Iterations)
	assert.Equal(t, kdf.HashSHA512, cfg.Shuffle.KDF.Hash)
	assert.Equal(t, rand.ModeSoftware, cfg.Random.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/node_exporter/sss.prom", cfg.Metrics.Textfile)
	assert.False(t, cfg.Manifest.Enabled)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sharing:\n  digest: none\n"))
	require.NoError(t, err)
	assert.Equal(t, verify.None, cfg.Digest())
	assert.Equal(t, Default().Sharing.ChunkSize, cfg.Sharing.ChunkSize)
	assert.True(t, cfg.Manifest.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "sharing: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeConfig(t, "sharing:\n  prime_bits: 8\n"))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SSS_PRIME_BITS", "256")
	t.Setenv("SSS_CHUNK_SIZE", "not-a-number")
	t.Setenv("SSS_DIGEST", "sha3-256")
	t.Setenv("SSS_LOG_LEVEL", "error")
	t.Setenv("SSS_KDF_ALGORITHM", "hkdf")
	t.Setenv("SSS_RNG_MODE", "SOFTWARE")
	t.Setenv("SSS_PKCS11_MODULE", "/usr/lib/softhsm/libsofthsm2.so")
	t.Setenv("SSS_PKCS11_PIN", "1234")
	t.Setenv("SSS_METRICS_FILE", "/tmp/sss.prom")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Sharing.PrimeBits)
	assert.Equal(t, Default().Sharing.ChunkSize, cfg.Sharing.ChunkSize)
	assert.Equal(t, verify.SHA3_256, cfg.Digest())
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, kdf.AlgorithmHKDF, cfg.Shuffle.KDF.Algorithm)
	assert.Equal(t, rand.ModeSoftware, cfg.Random.Mode)
	require.NotNil(t, cfg.Random.PKCS11)
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", cfg.Random.PKCS11.Module)
	assert.Equal(t, "1234", cfg.Random.PKCS11.PIN)
	assert.Equal(t, "/tmp/sss.prom", cfg.Metrics.Textfile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"small chunk", func(c *Config) { c.Sharing.ChunkSize = 1 }, false},
		{"no digest", func(c *Config) { c.Sharing.Digest = "none" }, false},
		{"zero chunk", func(c *Config) { c.Sharing.ChunkSize = 0 }, true},
		{"huge prime", func(c *Config) { c.Sharing.PrimeBits = 8192 }, true},
		{"unknown digest", func(c *Config) { c.Sharing.Digest = "md5" }, true},
		{"bad kdf", func(c *Config) { c.Shuffle.KDF.Algorithm = "scrypt" }, true},
		{"unknown rng", func(c *Config) { c.Random.Mode = "dice" }, true},
		{"unknown fallback", func(c *Config) { c.Random.FallbackMode = "dice" }, true},
		{"pkcs11 without module", func(c *Config) { c.Random.Mode = rand.ModePKCS11 }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "fatal" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Sharing.PrimeBits = 96
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Sharing, loaded.Sharing)
	assert.Equal(t, cfg.Shuffle.KDF.Algorithm, loaded.Shuffle.KDF.Algorithm)
}
