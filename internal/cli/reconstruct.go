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
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sss/internal/password"
	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/codec"
	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/manifest"
	"github.com/jeremyhahn/go-sss/pkg/stream"
	"github.com/jeremyhahn/go-sss/pkg/verify"
)

func newReconstructCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconstruct <stem> <threshold> [output]",
		Short: "Reconstruct a secret from share files",
		Long: `Reconstruct the secret from <threshold> share files named
<stem>.s<x> in --input-dir. The output defaults to <stem>.out and is
only written once the digest has been verified.

When <stem>.manifest is present it supplies the digest algorithm, the
shuffle setting and the minimum threshold.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func() error { return a.reconstruct(cmd, args) })
		},
	}

	f := cmd.Flags()
	f.StringP("input-dir", "d", ".", "directory holding the share, prime and manifest files")
	f.String("prime-file", "", "prime file name, relative to --input-dir (default <stem>.prime)")
	f.BoolP("password", "p", false, "prompt for the password the shares were shuffled with")
	f.String("password-file", "", "read the shuffle password from the first line of this file")
	f.String("shares", "", "comma separated share indices to use, e.g. 1,3,5 (default the first <threshold> found)")
	f.String("digest", string(verify.Default), "verification digest, when there is no manifest")
	f.Int("chunk-size", stream.DefaultChunkSize, "share values read per step")
	f.BoolP("force", "f", false, "overwrite the output without asking")
	return cmd
}

func (a *app) reconstruct(cmd *cobra.Command, args []string) error {
	stem := args[0]
	threshold, err := parseCount("threshold", args[1])
	if err != nil {
		return err
	}
	if threshold < secretsharing.MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d", stream.ErrInvalidConfig, secretsharing.MinThreshold)
	}
	output := stem + ".out"
	if len(args) == 3 {
		output = args[2]
	}
	log := a.log.WithContext(a.ctx)

	inDir := a.v.GetString("input-dir")
	if err := requireDir(inDir); err != nil {
		return err
	}

	m, err := readManifest(ManifestPath(inDir, stem))
	if err != nil {
		return err
	}

	digest, err := verify.Parse(a.v.GetString("digest"))
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	kdfParams := a.cfg.Shuffle.KDF
	shuffled := false
	if m != nil {
		if threshold < m.Threshold {
			return fmt.Errorf("%w: the shares were created with threshold %d", secretsharing.ErrInsufficientShares, m.Threshold)
		}
		if !cmd.Flags().Changed("digest") {
			digest = m.Digest
		}
		shuffled = m.Shuffled
		if m.KDF != nil {
			kdfParams = *m.KDF
		}
		log.Debug("manifest loaded",
			logger.String("session_id", m.SessionID),
			logger.Int("threshold", m.Threshold),
			logger.Int("shares", m.Shares),
			logger.Bool("shuffled", m.Shuffled))
	}

	xs, err := a.selectShares(inDir, stem, threshold, m)
	if err != nil {
		return err
	}

	pw, err := a.resolvePassword(cmd, shuffled, false)
	if err != nil {
		return err
	}
	if m != nil && !m.Shuffled && pw != nil {
		pw.Clear()
		return fmt.Errorf("%w: the shares were not shuffled; omit the password", stream.ErrInvalidConfig)
	}
	var secretPassword []byte
	if pw != nil {
		defer pw.Clear()
		if secretPassword, err = pw.Bytes(); err != nil {
			return err
		}
		defer password.Zero(secretPassword)
	}

	exists, err := checkOutput(output)
	if err != nil {
		return err
	}
	if exists && !a.v.GetBool("force") {
		ok, err := a.confirm(fmt.Sprintf("'%s' already exists, overwrite?", output))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	sources := make([]stream.Source, len(xs))
	for i, x := range xs {
		f, release, err := openLocked(SharePath(inDir, stem, x))
		if err != nil {
			return fmt.Errorf("failed to read share file: %w", err)
		}
		defer release()
		sources[i] = stream.Source{X: x, R: f}
	}
	prime, release, err := openLocked(PrimePath(inDir, stem, a.v.GetString("prime-file")))
	if err != nil {
		return fmt.Errorf("failed to read prime file: %w", err)
	}
	defer release()

	out, err := createPendingSet([]string{output})
	if err != nil {
		return err
	}
	defer out.abort()

	opts := stream.Options{
		Threshold: threshold,
		ChunkSize: a.v.GetInt("chunk-size"),
		Digest:    digest,
		Password:  secretPassword,
		KDF:       &kdfParams,
		Logger:    a.log,
		Metrics:   a.metrics,
	}
	result, err := stream.Combine(a.ctx, sources, prime, out.files[0], opts)
	if err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}

	return a.printer().PrintReconstruct(&reconstructReport{
		OperationID: a.opID,
		Output:      output,
		Shares:      xs,
		SecretBytes: result.SecretLength,
		Digest:      string(digest),
		Verified:    result.Verified,
	})
}

// selectShares returns the x-coordinates to combine: the --shares list, or
// the first threshold share files found.
func (a *app) selectShares(dir, stem string, threshold int, m *manifest.Manifest) ([]int, error) {
	var xs []int
	if list := a.v.GetString("shares"); list != "" {
		var err error
		if xs, err = parseShareList(list); err != nil {
			return nil, err
		}
	} else {
		xs = findShares(dir, stem, threshold)
	}
	if len(xs) < threshold {
		return nil, fmt.Errorf("%w: need %d share files, found %d", secretsharing.ErrInsufficientShares, threshold, len(xs))
	}
	if m != nil {
		for _, x := range xs {
			if x > m.Shares {
				return nil, fmt.Errorf("%w: share %d was never issued (%d shares)", secretsharing.ErrInvalidX, x, m.Shares)
			}
		}
	}
	return xs, nil
}

// readManifest returns nil without error when there is no manifest.
func readManifest(path string) (*manifest.Manifest, error) {
	// #nosec G304 - path is derived from user arguments
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := manifest.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", codec.ErrFormat, path, err)
	}
	return m, nil
}
