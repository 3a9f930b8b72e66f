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

//go:build tpm2

package rand

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/tcp"
	"github.com/google/go-tpm/tpmutil"
)

const (
	defaultTPM2Device      = "/dev/tpmrm0"
	defaultTPM2RequestSize = 32
)

// tpm2Resolver draws entropy with TPM2_GetRandom.
type tpm2Resolver struct {
	mu      sync.RWMutex
	rwc     transport.TPMCloser
	maxSize int
}

var _ Resolver = (*tpm2Resolver)(nil)

func newTPM2Resolver(config *TPM2Config) (Resolver, error) {
	cfg := TPM2Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Device == "" {
		cfg.Device = defaultTPM2Device
	}
	if cfg.MaxRequestSize <= 0 || cfg.MaxRequestSize > 0xffff {
		cfg.MaxRequestSize = defaultTPM2RequestSize
	}

	var rwc transport.TPMCloser
	switch {
	case cfg.Simulator:
		sim, err := simulator.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to start TPM simulator: %w", err)
		}
		rwc = transport.FromReadWriteCloser(sim)
	case cfg.SimulatorAddress != "":
		host, port, err := net.SplitHostPort(cfg.SimulatorAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid TPM simulator address %q: %w", cfg.SimulatorAddress, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid TPM simulator port %q: %w", port, err)
		}
		// swtpm listens for platform commands on the port after the command port
		platform := net.JoinHostPort(host, strconv.Itoa(p+1))
		rwc, err = tcp.Open(tcp.Config{
			CommandAddress:  cfg.SimulatorAddress,
			PlatformAddress: platform,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to TPM simulator at %s: %w", cfg.SimulatorAddress, err)
		}
	default:
		dev, err := tpmutil.OpenTPM(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to open TPM2 device %s: %w", cfg.Device, err)
		}
		rwc = transport.FromReadWriteCloser(dev)
	}

	return &tpm2Resolver{rwc: rwc, maxSize: cfg.MaxRequestSize}, nil
}

func tpm2Available() bool {
	return true
}

func (t *tpm2Resolver) Read(p []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.rwc == nil {
		return 0, ErrClosed
	}
	return chunkedRead(p, t.maxSize, func(n int) ([]byte, error) {
		rsp, err := tpm2.GetRandom{BytesRequested: uint16(n)}.Execute(t.rwc)
		if err != nil {
			return nil, fmt.Errorf("TPM2 GetRandom failed: %w", err)
		}
		return rsp.RandomBytes.Buffer, nil
	})
}

func (t *tpm2Resolver) Mode() Mode { return ModeTPM2 }

func (t *tpm2Resolver) Available() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rwc != nil
}

func (t *tpm2Resolver) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rwc == nil {
		return nil
	}
	err := t.rwc.Close()
	t.rwc = nil
	return err
}
