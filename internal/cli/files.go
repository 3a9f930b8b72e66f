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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/stream"
)

// SharePath names the share file for x: <dir>/<stem>.s<x>.
func SharePath(dir, stem string, x int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.s%d", stem, x))
}

// PrimePath resolves the prime file name against dir. An absolute name is
// used as-is; an empty name defaults to <stem>.prime.
func PrimePath(dir, stem, name string) string {
	if name == "" {
		name = stem + ".prime"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// ManifestPath names the manifest sidecar for stem.
func ManifestPath(dir, stem string) string {
	return filepath.Join(dir, stem+".manifest")
}

type pathKind int

const (
	pathMissing pathKind = iota // does not exist but its parent directory does
	pathFile
	pathDir
	pathInvalid // neither it nor its parent exists
)

func checkPath(path string) (pathKind, error) {
	st, err := os.Stat(path)
	switch {
	case err == nil && st.IsDir():
		return pathDir, nil
	case err == nil:
		return pathFile, nil
	case !errors.Is(err, fs.ErrNotExist):
		return pathInvalid, err
	}

	parent := filepath.Dir(path)
	pst, err := os.Stat(parent)
	if err != nil || !pst.IsDir() {
		return pathInvalid, nil
	}
	return pathMissing, nil
}

func requireDir(path string) error {
	kind, err := checkPath(path)
	if err != nil {
		return err
	}
	if kind != pathDir {
		return fmt.Errorf("%w: %q is not a directory", stream.ErrInvalidConfig, path)
	}
	return nil
}

// checkOutput rejects directories and paths whose parent is missing, and
// reports whether the file already exists.
func checkOutput(path string) (exists bool, err error) {
	kind, err := checkPath(path)
	if err != nil {
		return false, err
	}
	switch kind {
	case pathDir:
		return false, fmt.Errorf("%w: %q is a directory, not a file", stream.ErrInvalidConfig, path)
	case pathInvalid:
		return false, fmt.Errorf("%w: %q is not a valid path", stream.ErrInvalidConfig, path)
	case pathFile:
		return true, nil
	default:
		return false, nil
	}
}

// parseCount parses a positional share count.
func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", stream.ErrInvalidConfig, name, s)
	}
	return n, nil
}

// parseShareList parses "1,3,5" into x-coordinates.
func parseShareList(s string) ([]int, error) {
	var xs []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, err := strconv.Atoi(part)
		if err != nil || x < 1 || x > secretsharing.MaxShares {
			return nil, fmt.Errorf("%w: invalid share index %q", stream.ErrInvalidConfig, part)
		}
		xs = append(xs, x)
	}
	return xs, nil
}

// findShares returns the x of the first n share files present in dir,
// scanning upward from 1.
func findShares(dir, stem string, n int) []int {
	var xs []int
	for x := 1; x <= secretsharing.MaxShares && len(xs) < n; x++ {
		if st, err := os.Stat(SharePath(dir, stem, x)); err == nil && st.Mode().IsRegular() {
			xs = append(xs, x)
		}
	}
	return xs
}

// pendingFile is written under a temporary name and renamed into place by
// publish, so an interrupted run never leaves a partial file at the final
// path.
type pendingFile struct {
	path   string
	f      *os.File
	unlock func() error
	closed bool
	placed bool
}

func createPending(path string) (*pendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	unlock, err := lockFile(f, true)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &pendingFile{path: path, f: f, unlock: unlock}, nil
}

func (p *pendingFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// finish flushes and closes the temporary file.
func (p *pendingFile) finish() error {
	if p.closed {
		return nil
	}
	syncErr := p.f.Sync()
	_ = p.unlock()
	closeErr := p.f.Close()
	p.closed = true
	return errors.Join(syncErr, closeErr)
}

// publish renames a finished file to its final path.
func (p *pendingFile) publish() error {
	if err := os.Rename(p.f.Name(), p.path); err != nil {
		return err
	}
	p.placed = true
	return nil
}

// abort removes whatever the file left behind, including its final path
// once published.
func (p *pendingFile) abort() {
	if !p.closed {
		_ = p.unlock()
		_ = p.f.Close()
		p.closed = true
	}
	if p.placed {
		_ = os.Remove(p.path)
		p.placed = false
		return
	}
	_ = os.Remove(p.f.Name())
}

// pendingSet commits or aborts a group of pending files together. Either
// every file reaches its final path or none does.
type pendingSet struct {
	files     []*pendingFile
	committed bool
}

func createPendingSet(paths []string) (*pendingSet, error) {
	s := &pendingSet{}
	for _, path := range paths {
		p, err := createPending(path)
		if err != nil {
			s.abort()
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		s.files = append(s.files, p)
	}
	return s, nil
}

// commit finishes every file before renaming any, then publishes them in
// order. A failed rename removes the files already published.
func (s *pendingSet) commit() error {
	for _, p := range s.files {
		if err := p.finish(); err != nil {
			s.abort()
			return fmt.Errorf("failed to write %s: %w", p.path, err)
		}
	}
	for _, p := range s.files {
		if err := p.publish(); err != nil {
			s.abort()
			return fmt.Errorf("failed to write %s: %w", p.path, err)
		}
	}
	s.committed = true
	return nil
}

// abort removes every file of an uncommitted set. It is a no-op after
// commit.
func (s *pendingSet) abort() {
	if s.committed {
		return
	}
	for _, p := range s.files {
		p.abort()
	}
}

// openLocked opens path for reading under a shared lock.
func openLocked(path string) (*os.File, func(), error) {
	// #nosec G304 - share paths are derived from user arguments
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	unlock, err := lockFile(f, false)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, func() {
		_ = unlock()
		_ = f.Close()
	}, nil
}
