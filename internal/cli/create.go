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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sss/internal/password"
	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/crypto/rand"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
	"github.com/jeremyhahn/go-sss/pkg/manifest"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/stream"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

// stdinName selects standard input as the secret.
const stdinName = "-"

func newCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <input> <shares> [threshold]",
		Short: "Split a file into shares",
		Long: `Split <input> into <shares> share files, any [threshold] of which
reconstruct it. The threshold defaults to the number of shares.

Share files are named <stem>.s1 .. <stem>.sN and written next to the
prime file <stem>.prime and, unless disabled, the manifest
<stem>.manifest. Use - as <input> to read the secret from standard
input; --stem is then required.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func() error { return a.create(cmd, args) })
		},
	}

	f := cmd.Flags()
	f.StringP("out-dir", "d", ".", "directory for the share, prime and manifest files")
	f.StringP("stem", "s", "", "share file stem (default is the input file name)")
	f.String("prime-file", "", "prime file name, relative to --out-dir (default <stem>.prime)")
	f.BoolP("password", "p", false, "prompt for a password to shuffle the shares")
	f.String("password-file", "", "read the shuffle password from the first line of this file")
	f.Int("prime-bits", field.DefaultPrimeBits, "size of the generated prime")
	f.Int("chunk-size", stream.DefaultChunkSize, "bytes processed per step")
	f.String("digest", string(verify.Default), "verification digest (sha256, sha512, sha3-256, blake2b-256, blake3, none)")
	f.Bool("no-manifest", false, "do not write the manifest")
	f.BoolP("confirm", "c", false, "test-reconstruct the shares and compare with the input")
	f.BoolP("force", "f", false, "overwrite existing files without asking")
	return cmd
}

type createPlan struct {
	input      string
	secretLen  int64
	shares     int
	threshold  int
	outDir     string
	stem       string
	sharePaths []string
	primePath  string
	manifest   string
	digest     verify.Algorithm
	primeBits  int
}

func (a *app) planCreate(args []string) (*createPlan, error) {
	p := &createPlan{input: args[0]}

	var err error
	if p.shares, err = parseCount("shares", args[1]); err != nil {
		return nil, err
	}
	p.threshold = p.shares
	if len(args) == 3 {
		if p.threshold, err = parseCount("threshold", args[2]); err != nil {
			return nil, err
		}
	}

	cfg := &secretsharing.ShareConfig{Threshold: p.threshold, TotalShares: p.shares}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}

	p.stem = a.v.GetString("stem")
	if p.input == stdinName {
		if p.stem == "" {
			return nil, fmt.Errorf("%w: --stem is required when reading standard input", stream.ErrInvalidConfig)
		}
		if a.v.GetBool("confirm") {
			return nil, fmt.Errorf("%w: --confirm cannot re-read standard input", stream.ErrInvalidConfig)
		}
		p.secretLen = -1
	} else {
		st, err := os.Stat(p.input)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret input file: %w", err)
		}
		if !st.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %q is not a regular file", stream.ErrInvalidConfig, p.input)
		}
		if st.Size() == 0 {
			return nil, fmt.Errorf("%w: %q is an empty file", stream.ErrEmptySecret, p.input)
		}
		p.secretLen = st.Size()
		if p.stem == "" {
			p.stem = filepath.Base(p.input)
		}
	}

	p.outDir = a.v.GetString("out-dir")
	if err := requireDir(p.outDir); err != nil {
		return nil, err
	}

	if p.digest, err = verify.Parse(a.v.GetString("digest")); err != nil {
		return nil, fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	p.primeBits = a.v.GetInt("prime-bits")

	for x := 1; x <= p.shares; x++ {
		p.sharePaths = append(p.sharePaths, SharePath(p.outDir, p.stem, x))
	}
	p.primePath = PrimePath(p.outDir, p.stem, a.v.GetString("prime-file"))
	if !a.v.GetBool("no-manifest") {
		p.manifest = ManifestPath(p.outDir, p.stem)
	}
	return p, nil
}

func (p *createPlan) outputs() []string {
	out := append([]string{}, p.sharePaths...)
	out = append(out, p.primePath)
	if p.manifest != "" {
		out = append(out, p.manifest)
	}
	return out
}

func (a *app) create(cmd *cobra.Command, args []string) error {
	plan, err := a.planCreate(args)
	if err != nil {
		return err
	}
	log := a.log.WithContext(a.ctx)

	if !a.v.GetBool("force") {
		var existing []string
		for _, path := range plan.outputs() {
			if _, err := os.Stat(path); err == nil {
				existing = append(existing, path)
			}
		}
		if len(existing) > 0 {
			ok, err := a.confirm(fmt.Sprintf("%d output file(s) already exist, starting with '%s'. Overwrite?", len(existing), existing[0]))
			if err != nil {
				return err
			}
			if !ok {
				return errAborted
			}
		}
	}

	pw, err := a.resolvePassword(cmd, false, true)
	if err != nil {
		return err
	}
	var secretPassword []byte
	if pw != nil {
		defer pw.Clear()
		if secretPassword, err = pw.Bytes(); err != nil {
			return err
		}
	}

	rng, err := rand.NewResolver(&a.cfg.Random)
	if err != nil {
		return fmt.Errorf("failed to open entropy source: %w", err)
	}
	defer rng.Close()
	log.Debug("entropy source", logger.String("mode", string(rng.Mode())))

	var src io.Reader = a.streams.In
	if plan.input != stdinName {
		f, release, err := openLocked(plan.input)
		if err != nil {
			return fmt.Errorf("failed to read secret input file: %w", err)
		}
		defer release()
		src = f
	}

	kdfParams := a.cfg.Shuffle.KDF
	opts := stream.Options{
		Threshold: plan.threshold,
		Shares:    plan.shares,
		ChunkSize: a.v.GetInt("chunk-size"),
		Digest:    plan.digest,
		Password:  secretPassword,
		KDF:       &kdfParams,
		Random:    rng,
		Logger:    a.log,
		Metrics:   a.metrics,
	}
	defer password.Zero(secretPassword)

	out, err := createPendingSet(plan.outputs())
	if err != nil {
		return err
	}
	defer out.abort()

	sinks := make([]io.Writer, plan.shares)
	for i := range sinks {
		sinks[i] = out.files[i]
	}
	result, err := stream.Split(a.ctx, src, plan.secretLen, sinks, out.files[plan.shares], opts, plan.primeBits)
	if err != nil {
		return err
	}

	if plan.manifest != "" {
		m := manifest.New(plan.threshold, plan.shares)
		m.Digest = result.Digest
		m.Shuffled = result.Shuffled
		if result.Shuffled {
			m.KDF = &kdfParams
		}
		m.PrimeBits = plan.primeBits
		m.SecretLength = result.SecretLength
		m.Tool = "sss " + Version
		if err := manifest.Write(out.files[plan.shares+1], m); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	if err := out.commit(); err != nil {
		return err
	}

	report := &createReport{
		OperationID: a.opID,
		Input:       plan.input,
		OutDir:      plan.outDir,
		Shares:      plan.sharePaths,
		PrimeFile:   plan.primePath,
		Manifest:    plan.manifest,
		Threshold:   plan.threshold,
		SecretBytes: result.SecretLength,
		PrimeBits:   result.Prime.BitLen(),
		Digest:      string(result.Digest),
		Shuffled:    result.Shuffled,
	}

	if a.v.GetBool("confirm") {
		if err := a.confirmShares(plan, opts); err != nil {
			return err
		}
		report.Confirmed = true
	}

	return a.printer().PrintCreate(report)
}

// confirmShares reconstructs the secret from the first threshold shares
// and compares it byte for byte with the input.
func (a *app) confirmShares(plan *createPlan, opts stream.Options) (err error) {
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		a.metrics.RecordOperation(metrics.OpConfirm, status, time.Since(start))
	}()

	sources := make([]stream.Source, plan.threshold)
	for i := range sources {
		f, release, err := openLocked(plan.sharePaths[i])
		if err != nil {
			return err
		}
		defer release()
		sources[i] = stream.Source{X: i + 1, R: f}
	}
	prime, release, err := openLocked(plan.primePath)
	if err != nil {
		return err
	}
	defer release()

	orig, releaseInput, err := openLocked(plan.input)
	if err != nil {
		return err
	}
	defer releaseInput()

	cmp := &compareWriter{want: orig}
	opts.Threshold = plan.threshold
	if _, err := stream.Combine(a.ctx, sources, prime, cmp, opts); err != nil {
		return fmt.Errorf("test reconstruction failed: %w", err)
	}
	if err := cmp.finish(); err != nil {
		return fmt.Errorf("test reconstruction failed: %w", err)
	}
	a.log.WithContext(a.ctx).Info("test reconstruction passed", logger.Int("threshold", plan.threshold))
	return nil
}

var errContentMismatch = fmt.Errorf("%w: reconstructed secret differs from the input", stream.ErrVerification)

// compareWriter checks written bytes against want.
type compareWriter struct {
	want io.Reader
	buf  []byte
}

func (c *compareWriter) Write(p []byte) (int, error) {
	if cap(c.buf) < len(p) {
		c.buf = make([]byte, len(p))
	}
	b := c.buf[:len(p)]
	if _, err := io.ReadFull(c.want, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, errContentMismatch
		}
		return 0, err
	}
	if !bytes.Equal(p, b) {
		return 0, errContentMismatch
	}
	return len(p), nil
}

// finish reports a mismatch if want holds more bytes.
func (c *compareWriter) finish() error {
	var one [1]byte
	n, err := c.want.Read(one[:])
	if n > 0 {
		return errContentMismatch
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
