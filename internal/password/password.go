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

// Package password holds the shuffle password in memory and resolves it
// from the environment, a file or an interactive prompt.
package password

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// EnvVar is consulted before any other password source.
const EnvVar = "SSS_PASSWORD"

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")

	// ErrMismatch is returned when the confirmation differs from the first
	// entry.
	ErrMismatch = errors.New("passwords do not match")
)

// ClearPassword stores a password in memory as cleartext. Clear zeroes it.
type ClearPassword struct {
	password []byte
}

// NewClearPassword copies password. Returns ErrEmptyPassword for an empty
// input.
func NewClearPassword(password []byte) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	p := make([]byte, len(password))
	copy(p, password)
	return &ClearPassword{password: p}, nil
}

// Bytes returns a copy of the password, or ErrPasswordZeroed after Clear.
func (p *ClearPassword) Bytes() ([]byte, error) {
	if p == nil || p.password == nil {
		return nil, ErrPasswordZeroed
	}
	result := make([]byte, len(p.password))
	copy(result, p.password)
	return result, nil
}

// Clear overwrites the password. It is irreversible and safe to call more
// than once.
func (p *ClearPassword) Clear() {
	if p == nil || p.password == nil {
		return
	}
	Zero(p.password)
	p.password = nil
}

// Equal compares two passwords in constant time.
func Equal(a, b *ClearPassword) (bool, error) {
	if a == nil || a.password == nil || b == nil || b.password == nil {
		return false, ErrPasswordZeroed
	}
	return subtle.ConstantTimeCompare(a.password, b.password) == 1, nil
}

// Zero overwrites b.
func Zero(b []byte) {
	// ConstantTimeCopy keeps the compiler from dropping the writes
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// Prompter reads one password entry without echo.
type Prompter interface {
	ReadPassword(prompt string) ([]byte, error)
}

// Terminal prompts on a terminal file descriptor. When In is not a
// terminal a single line is read from it instead, which lets passwords be
// piped.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

// NewTerminal returns a Terminal on stdin, prompting on stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

// ReadPassword implements Prompter.
func (t *Terminal) ReadPassword(prompt string) ([]byte, error) {
	fd := int(t.In.Fd()) // #nosec G115 - file descriptors fit in int
	if !term.IsTerminal(fd) {
		return readLine(t.In)
	}
	fmt.Fprint(t.Out, prompt)
	defer fmt.Fprintln(t.Out)
	return term.ReadPassword(fd)
}

// Prompt asks for a password, and when confirm is set asks again and
// requires both entries to match.
func Prompt(p Prompter, confirm bool) (*ClearPassword, error) {
	first, err := p.ReadPassword("Password: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	defer Zero(first)
	if len(first) == 0 {
		return nil, ErrEmptyPassword
	}

	if confirm {
		second, err := p.ReadPassword("Confirm password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		defer Zero(second)
		if subtle.ConstantTimeCompare(first, second) != 1 {
			return nil, ErrMismatch
		}
	}
	return NewClearPassword(first)
}

// FromFile reads the first line of path.
func FromFile(path string) (*ClearPassword, error) {
	// #nosec G304 - path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open password file: %w", err)
	}
	defer f.Close()

	line, err := readLine(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read password file: %w", err)
	}
	defer Zero(line)
	return NewClearPassword(line)
}

// Options selects the password sources tried by Resolve.
type Options struct {
	// File is read when set and EnvVar is empty.
	File string

	// Prompter is used last. Nil disables prompting.
	Prompter Prompter

	// Confirm asks for the password twice when prompting.
	Confirm bool
}

// Resolve returns the password from, in order, the SSS_PASSWORD environment
// variable, opts.File and opts.Prompter. It returns nil with no error when
// no source is configured.
func Resolve(opts Options) (*ClearPassword, error) {
	if v, ok := os.LookupEnv(EnvVar); ok {
		if v == "" {
			return nil, fmt.Errorf("%s: %w", EnvVar, ErrEmptyPassword)
		}
		return NewClearPassword([]byte(v))
	}
	if opts.File != "" {
		return FromFile(opts.File)
	}
	if opts.Prompter != nil {
		return Prompt(opts.Prompter, opts.Confirm)
	}
	return nil, nil
}

func readLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPassword
		}
		return nil, err
	}
	out := bytes.TrimRight(line, "\r\n")
	trimmed := make([]byte, len(out))
	copy(trimmed, out)
	Zero(line)
	return trimmed, nil
}
