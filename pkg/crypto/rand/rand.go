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

// Package rand provides the entropy source injected into prime generation
// and polynomial coefficient sampling. Hardware sources (TPM 2.0 and
// PKCS#11) are compiled in with the tpm2 and pkcs11 build tags; the
// software source wraps crypto/rand and is always available.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mode selects an entropy source.
type Mode string

const (
	// ModeAuto picks the best compiled-in source that opens successfully.
	// Preference order: PKCS#11 > TPM2 > Software
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand
	ModeSoftware Mode = "software"

	// ModeTPM2 uses the TPM 2.0 GetRandom command
	ModeTPM2 Mode = "tpm2"

	// ModePKCS11 uses C_GenerateRandom on an HSM slot
	ModePKCS11 Mode = "pkcs11"
)

// ErrNotCompiled is returned when a hardware mode was excluded at build time.
var ErrNotCompiled = errors.New("rand: source not compiled into this binary")

// notCompiled reports that mode was left out of this build.
func notCompiled(mode Mode) error {
	return fmt.Errorf("%w: %s (rebuild with -tags %s)", ErrNotCompiled, mode, mode)
}

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("rand: source closed")

// ParseMode resolves a case-insensitive mode name. The empty string maps to
// ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSoftware, ModeTPM2, ModePKCS11:
		return m, nil
	default:
		return "", fmt.Errorf("rand: unknown mode %q", s)
	}
}

// Config selects and configures the entropy source.
type Config struct {
	// Mode defaults to ModeAuto.
	Mode Mode `yaml:"mode"`

	// FallbackMode is used when a read from Mode fails. Empty disables
	// fallback and read errors are returned.
	FallbackMode Mode `yaml:"fallback_mode,omitempty"`

	TPM2   *TPM2Config   `yaml:"tpm2,omitempty"`
	PKCS11 *PKCS11Config `yaml:"pkcs11,omitempty"`
}

// TPM2Config configures the TPM 2.0 source.
type TPM2Config struct {
	// Device defaults to /dev/tpmrm0
	Device string `yaml:"device,omitempty"`

	// MaxRequestSize caps bytes per GetRandom call. Default 32.
	MaxRequestSize int `yaml:"max_request_size,omitempty"`

	// SimulatorAddress connects to a TCP simulator (host:port of the
	// command port; the platform port is the next one) instead of Device.
	SimulatorAddress string `yaml:"simulator_address,omitempty"`

	// Simulator runs the in-process reference TPM simulator. Test use only.
	Simulator bool `yaml:"simulator,omitempty"`
}

// PKCS11Config configures the PKCS#11 source.
type PKCS11Config struct {
	// Module is the path to the PKCS#11 library
	Module string `yaml:"module"`

	SlotID uint `yaml:"slot_id"`

	// PIN logs the session in when set. Prefer the SSS_PKCS11_PIN
	// environment variable over storing it in a file.
	PIN string `yaml:"-" json:"-"`
}

// Resolver is an io.Reader over the selected source.
type Resolver interface {
	io.Reader

	// Mode reports which source serves reads.
	Mode() Mode

	// Available reports whether the source can serve reads.
	Available() bool

	// Close releases hardware handles.
	Close() error
}

// NewResolver opens the source described by cfg. A nil cfg selects
// ModeAuto.
func NewResolver(cfg *Config) (Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	primary, err := open(cfg, cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackMode == "" || cfg.FallbackMode == primary.Mode() {
		return primary, nil
	}
	fallback, err := open(cfg, cfg.FallbackMode)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return &fallbackResolver{primary: primary, fallback: fallback}, nil
}

func open(cfg *Config, mode Mode) (Resolver, error) {
	switch mode {
	case "", ModeAuto:
		return newAutoResolver(cfg)
	case ModeSoftware:
		return Software(), nil
	case ModeTPM2:
		return newTPM2Resolver(cfg.TPM2)
	case ModePKCS11:
		return newPKCS11Resolver(cfg.PKCS11)
	default:
		return nil, fmt.Errorf("rand: unknown mode %q", mode)
	}
}

// Software returns the crypto/rand source.
func Software() Resolver {
	return softwareResolver{}
}

type softwareResolver struct{}

func (softwareResolver) Read(p []byte) (int, error) { return rand.Read(p) }
func (softwareResolver) Mode() Mode                 { return ModeSoftware }
func (softwareResolver) Available() bool            { return true }
func (softwareResolver) Close() error               { return nil }

// fallbackResolver retries a failed read on a second source.
type fallbackResolver struct {
	primary  Resolver
	fallback Resolver
}

func (f *fallbackResolver) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.primary, p)
	if err == nil {
		return n, nil
	}
	return io.ReadFull(f.fallback, p)
}

func (f *fallbackResolver) Mode() Mode {
	if f.primary.Available() {
		return f.primary.Mode()
	}
	return f.fallback.Mode()
}

func (f *fallbackResolver) Available() bool {
	return f.primary.Available() || f.fallback.Available()
}

func (f *fallbackResolver) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}

// chunkedRead fills p by calling fn for at most max bytes at a time.
func chunkedRead(p []byte, max int, fn func(n int) ([]byte, error)) (int, error) {
	off := 0
	for off < len(p) {
		want := min(len(p)-off, max)
		b, err := fn(want)
		if err != nil {
			return off, err
		}
		if len(b) == 0 {
			return off, io.ErrNoProgress
		}
		off += copy(p[off:], b)
	}
	return off, nil
}
