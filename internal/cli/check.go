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

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/crypto/rand"
	"github.com/jeremyhahn/go-sss/pkg/health"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/stream"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// errCheckFailed is returned when any self-check is unhealthy.
var errCheckFailed = errors.New("self-check failed")

type checkReport struct {
	OperationID string               `json:"operation_id"`
	Status      health.Status        `json:"status"`
	Checks      []health.CheckResult `json:"checks"`
}

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run self-checks against the configured settings",
		Long: `Check the entropy source, prime generation and shuffle key
derivation, then split and reconstruct a random secret in memory using
the configured digest, chunk size and KDF.

A key derivation slower than --kdf-budget is reported as degraded. The
command fails only when a check is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(a.check)
		},
	}

	f := cmd.Flags()
	f.Int("prime-bits", 0, "prime size to test (default from config)")
	f.Int("chunk-size", 0, "chunk size to test (default from config)")
	f.String("digest", "", "digest to test (default from config)")
	f.Duration("kdf-budget", 5*time.Second, "slowest acceptable shuffle key derivation, 0 for no limit")
	return cmd
}

func (a *app) check() error {
	start := time.Now()
	log := a.log.WithContext(a.ctx)

	digest, err := verify.Parse(a.v.GetString("digest"))
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	primeBits := a.v.GetInt("prime-bits")
	kdfParams := a.cfg.Shuffle.KDF

	checker := health.NewChecker()
	rng, err := rand.NewResolver(&a.cfg.Random)
	if err != nil {
		checker.RegisterCheck(health.CheckEntropy, func(ctx context.Context) health.CheckResult {
			return health.CheckResult{
				Name:   health.CheckEntropy,
				Status: health.StatusUnhealthy,
				Error:  err.Error(),
			}
		})
	} else {
		defer rng.Close()
		checker.RegisterCheck(health.CheckEntropy, health.EntropyCheck(rng, string(rng.Mode())))
		checker.RegisterCheck(health.CheckPrime, health.PrimeCheck(rng, primeBits))
	}
	checker.RegisterCheck(health.CheckKDF, health.KDFCheck(&kdfParams, a.v.GetDuration("kdf-budget")))
	if rng != nil {
		checker.RegisterCheck(health.CheckRoundTrip, health.RoundTripCheck(stream.Options{
			ChunkSize: a.v.GetInt("chunk-size"),
			Digest:    digest,
			KDF:       &kdfParams,
			Random:    rng,
			Logger:    a.log,
		}, primeBits))
	}

	results := checker.Run(a.ctx)
	status := health.AggregateStatus(results)
	for _, r := range results {
		log.Debug("self-check",
			logger.String("check", r.Name),
			logger.String("status", string(r.Status)),
			logger.Duration("latency", r.Latency))
	}

	opStatus := metrics.StatusSuccess
	if status == health.StatusUnhealthy {
		opStatus = metrics.StatusError
	}
	a.metrics.RecordOperation(metrics.OpCheck, opStatus, time.Since(start))

	if err := a.printer().PrintCheck(&checkReport{
		OperationID: a.opID,
		Status:      status,
		Checks:      results,
	}); err != nil {
		return err
	}
	if status == health.StatusUnhealthy {
		return errCheckFailed
	}
	return nil
}
