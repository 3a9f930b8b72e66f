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

// Package logger is the structured logging facade used across go-sss.
// Library packages accept a Logger and default to NoOp; the CLI wires the
// slog adapter.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level is a log severity. Values match log/slog so they convert directly.
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

func (l Level) String() string {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return slog.Level(l).String()
	default:
		return "UNKNOWN"
	}
}

// ParseLevel resolves a case-insensitive level name. The empty string is
// info.
func ParseLevel(s string) (Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	case "debug", "info", "warn", "error":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(name)); err != nil {
			return LevelInfo, err
		}
		return Level(lvl), nil
	default:
		return LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}

// Logger is the logging interface used by the coordinators and the CLI.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every record.
	With(fields ...Field) Logger

	WithError(err error) Logger

	// WithContext returns a child logger carrying the operation id found
	// in ctx, if any.
	WithContext(ctx context.Context) Logger
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// Redacted is logged in place of sensitive values.
const Redacted = "[redacted]"

// sensitiveKeys never reach a handler with their real value, whichever
// constructor built the field.
var sensitiveKeys = map[string]bool{
	"password":   true,
	"passphrase": true,
	"pin":        true,
	"secret":     true,
	"key":        true,
}

// Sensitive reports whether values logged under key are redacted.
func Sensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field      { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, v time.Duration) Field { return Field{Key: key, Value: v} }
func Ints(key string, values []int) Field        { return Field{Key: key, Value: values} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }

// Error returns the conventional "error" field.
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Secret records that a sensitive value was present without logging it.
func Secret(key string) Field {
	return Field{Key: key, Value: Redacted}
}

// NoOp discards everything.
type NoOp struct{}

// NewNoOp returns a logger that discards all output.
func NewNoOp() Logger { return NoOp{} }

func (NoOp) Debug(string, ...Field)               {}
func (NoOp) Info(string, ...Field)                {}
func (NoOp) Warn(string, ...Field)                {}
func (NoOp) Error(string, ...Field)               {}
func (n NoOp) With(...Field) Logger               { return n }
func (n NoOp) WithError(error) Logger             { return n }
func (n NoOp) WithContext(context.Context) Logger { return n }

// OrNoOp returns l, or NoOp when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOp{}
	}
	return l
}
