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

// Package cli implements the sss command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-sss/internal/config"
	"github.com/jeremyhahn/go-sss/internal/password"
	"github.com/jeremyhahn/go-sss/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sss/pkg/correlation"
	"github.com/jeremyhahn/go-sss/pkg/metrics"
	"github.com/jeremyhahn/go-sss/pkg/stream"
)

// envPrefix prefixes the environment variable bound to every flag, with
// dashes mapped to underscores: --prime-bits is SSS_PRIME_BITS.
const envPrefix = "SSS"

// errAborted is returned when the user declines an overwrite.
var errAborted = errors.New("aborted")

// Streams are the standard streams a command talks to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Prompter reads passwords. Nil disables prompting.
	Prompter password.Prompter
}

// DefaultStreams returns the process streams with a terminal prompter.
func DefaultStreams() Streams {
	return Streams{
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
		Prompter: password.NewTerminal(),
	}
}

// app is the state shared by one command invocation.
type app struct {
	streams Streams
	v       *viper.Viper
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Recorder
	ctx     context.Context
	opID    string
	in      *bufio.Reader
}

// NewRootCmd builds the command tree.
func NewRootCmd(streams Streams) *cobra.Command {
	a := &app{
		streams: streams,
		v:       viper.New(),
		log:     logger.NewNoOp(),
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "sss",
		Short: "Shamir secret sharing for files of any size",
		Long: `sss splits a file into N share files so that any K of them
reconstruct it exactly while fewer reveal nothing about it.

Shares are streamed in fixed-size chunks, so memory use does not depend
on the size of the secret. A digest of the secret is shared along with
it and checked on reconstruction. With a password the share values are
additionally masked and permuted.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (YAML)")
	pf.StringP("output", "o", string(OutputFormatText), "output format (text, json)")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("log-format", "", "log format (text, json)")
	pf.String("metrics-file", "", "write prometheus metrics to this textfile after the command")

	rootCmd.AddCommand(
		newCreateCmd(a),
		newReconstructCmd(a),
		newCheckCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// Execute runs the command line and reports a failure through the
// printer. It returns the error so the caller can set the exit status.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	streams := DefaultStreams()
	root := NewRootCmd(streams)
	err := root.ExecuteContext(ctx)
	if err != nil {
		format, _ := root.PersistentFlags().GetString("output")
		_ = NewPrinter(format, streams.Err).PrintError(err)
	}
	return err
}

// setup loads the configuration and builds the logger, metrics and
// operation id. Flags beat environment variables, which beat the config
// file.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// SSS_PASSWORD holds the password itself, not the prompt switch
		if f.Name == "password" {
			return
		}
		_ = a.v.BindPFlag(f.Name, f)
	})

	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	a.cfg = cfg

	a.v.SetDefault("prime-bits", cfg.Sharing.PrimeBits)
	a.v.SetDefault("chunk-size", cfg.Sharing.ChunkSize)
	a.v.SetDefault("digest", cfg.Sharing.Digest)
	a.v.SetDefault("no-manifest", !cfg.Manifest.Enabled)
	a.v.SetDefault("log-format", cfg.Logging.Format)
	a.v.SetDefault("metrics-file", cfg.Metrics.Textfile)

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	if a.v.GetBool("verbose") {
		level = logger.LevelDebug
	}
	format := logger.Format(strings.ToLower(a.v.GetString("log-format")))
	if format != logger.FormatText && format != logger.FormatJSON {
		return fmt.Errorf("%w: unknown log format %q", stream.ErrInvalidConfig, format)
	}
	if f := OutputFormat(a.v.GetString("output")); f != OutputFormatText && f != OutputFormatJSON {
		return fmt.Errorf("%w: unknown output format %q", stream.ErrInvalidConfig, f)
	}

	a.log = logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: format,
		Output: a.streams.Err,
	})
	a.metrics = metrics.NewRecorder()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.ctx, a.opID = correlation.Ensure(ctx)
	a.log.WithContext(a.ctx).Debug("configuration loaded",
		logger.String("command", cmd.Name()),
		logger.String("config", a.v.GetString("config")))
	return nil
}

// run wraps a command body, exporting metrics whether or not it succeeds.
func (a *app) run(fn func() error) error {
	err := fn()
	if path := a.v.GetString("metrics-file"); path != "" && a.metrics != nil {
		a.metrics.CollectResources()
		if werr := a.metrics.WriteTextfile(path); werr != nil {
			a.log.WithContext(a.ctx).Warn("failed to write metrics textfile",
				logger.String("path", path), logger.Error(werr))
		}
	}
	return err
}

func (a *app) printer() *Printer {
	return NewPrinter(a.v.GetString("output"), a.streams.Out)
}

// confirm asks a yes/no question on the error stream and reads the answer
// from the input stream. Anything but y or yes is a no.
func (a *app) confirm(question string) (bool, error) {
	if a.in == nil {
		a.in = bufio.NewReader(a.streams.In)
	}
	fmt.Fprintf(a.streams.Err, "%s [y/N] ", question)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// resolvePassword returns the shuffle password when one was requested
// with --password or --password-file, or when required is set.
func (a *app) resolvePassword(cmd *cobra.Command, required, confirm bool) (*password.ClearPassword, error) {
	prompt, _ := cmd.Flags().GetBool("password")
	file := a.v.GetString("password-file")
	if !prompt && file == "" && !required {
		return nil, nil
	}

	pw, err := password.Resolve(password.Options{
		File:     file,
		Prompter: a.streams.Prompter,
		Confirm:  confirm,
	})
	if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrMismatch) {
		return nil, fmt.Errorf("%w: %w", stream.ErrInvalidConfig, err)
	}
	if err != nil {
		return nil, err
	}
	if pw == nil {
		return nil, fmt.Errorf("%w: a password is required but none could be read", stream.ErrInvalidConfig)
	}
	return pw, nil
}
