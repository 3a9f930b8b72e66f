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

// Package config loads the sss configuration file and applies environment
// overrides. Command-line flags are layered on top by the CLI.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-sss/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/crypto/rand"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/stream"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// Config represents the complete tool configuration
type Config struct {
	Sharing  SharingConfig  `yaml:"sharing"`
	Shuffle  ShuffleConfig  `yaml:"shuffle"`
	Random   rand.Config    `yaml:"random"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Manifest ManifestConfig `yaml:"manifest"`
}

// SharingConfig holds the split parameters. Share and threshold counts are
// command arguments.
type SharingConfig struct {
	ChunkSize int    `yaml:"chunk_size"`
	Digest    string `yaml:"digest"`
	PrimeBits int    `yaml:"prime_bits"`
}

// ShuffleConfig holds the key derivation used when a password is supplied
type ShuffleConfig struct {
	KDF kdf.KDFParams `yaml:"kdf"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the prometheus textfile export
type MetricsConfig struct {
	// Textfile is written after every command when set
	Textfile string `yaml:"textfile,omitempty"`
}

// ManifestConfig controls the session manifest sidecar
type ManifestConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Sharing: SharingConfig{
			ChunkSize: stream.DefaultChunkSize,
			Digest:    string(verify.Default),
			PrimeBits: field.DefaultPrimeBits,
		},
		Shuffle: ShuffleConfig{
			KDF: *kdf.DefaultParams(kdf.DefaultAlgorithm),
		},
		Random: rand.Config{
			Mode: rand.ModeAuto,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Manifest: ManifestConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file on top of Default and applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SSS_* environment variables. Settings that are
// also flags are bound by the CLI and are not repeated here.
func applyEnvOverrides(cfg *Config) {
	envInt("SSS_PRIME_BITS", &cfg.Sharing.PrimeBits)
	envInt("SSS_CHUNK_SIZE", &cfg.Sharing.ChunkSize)

	if digest := os.Getenv("SSS_DIGEST"); digest != "" {
		cfg.Sharing.Digest = digest
	}

	// Logging
	if level := os.Getenv("SSS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("SSS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Key derivation
	if alg := os.Getenv("SSS_KDF_ALGORITHM"); alg != "" {
		a, err := kdf.ParseAlgorithm(alg)
		if err != nil {
			log.Printf("Warning: invalid SSS_KDF_ALGORITHM value %q, using %s: %v", alg, cfg.Shuffle.KDF.Algorithm, err)
		} else if a != cfg.Shuffle.KDF.Algorithm {
			cfg.Shuffle.KDF = *kdf.DefaultParams(a)
		}
	}

	// Entropy source
	if mode := os.Getenv("SSS_RNG_MODE"); mode != "" {
		cfg.Random.Mode = rand.Mode(strings.ToLower(mode))
	}
	if dev := os.Getenv("SSS_TPM_DEVICE"); dev != "" {
		if cfg.Random.TPM2 == nil {
			cfg.Random.TPM2 = &rand.TPM2Config{}
		}
		cfg.Random.TPM2.Device = dev
	}
	if module := os.Getenv("SSS_PKCS11_MODULE"); module != "" {
		if cfg.Random.PKCS11 == nil {
			cfg.Random.PKCS11 = &rand.PKCS11Config{}
		}
		cfg.Random.PKCS11.Module = module
	}
	if pin := os.Getenv("SSS_PKCS11_PIN"); pin != "" && cfg.Random.PKCS11 != nil {
		cfg.Random.PKCS11.PIN = pin
	}

	if path := os.Getenv("SSS_METRICS_FILE"); path != "" {
		cfg.Metrics.Textfile = path
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %d: %v", name, v, *dst, err)
		return
	}
	*dst = n
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	s := c.Sharing
	if s.ChunkSize < 1 || s.ChunkSize > stream.MaxChunkSize {
		return fmt.Errorf("invalid chunk size: %d (must be 1-%d)", s.ChunkSize, stream.MaxChunkSize)
	}
	if s.PrimeBits < field.MinPrimeBits || s.PrimeBits > field.MaxPrimeBits {
		return fmt.Errorf("invalid prime bits: %d (must be %d-%d)", s.PrimeBits, field.MinPrimeBits, field.MaxPrimeBits)
	}
	if _, err := verify.Parse(s.Digest); err != nil {
		return err
	}

	if err := kdf.Validate(&c.Shuffle.KDF); err != nil {
		return fmt.Errorf("invalid shuffle kdf: %w", err)
	}

	if _, err := rand.ParseMode(string(c.Random.Mode)); err != nil {
		return err
	}
	if c.Random.FallbackMode != "" {
		if _, err := rand.ParseMode(string(c.Random.FallbackMode)); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}
	if c.Random.Mode == rand.ModePKCS11 && (c.Random.PKCS11 == nil || c.Random.PKCS11.Module == "") {
		return fmt.Errorf("random.pkcs11.module is required for pkcs11 mode")
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch logger.Format(strings.ToLower(c.Logging.Format)) {
	case logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// Digest returns the parsed verification algorithm. Call after Validate.
func (c *Config) Digest() verify.Algorithm {
	a, _ := verify.Parse(c.Sharing.Digest)
	return a
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
