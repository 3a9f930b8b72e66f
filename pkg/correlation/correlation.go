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

// Package correlation tags every log line of one create or reconstruct run
// with a shared operation id.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// LogField is the structured log key the id is emitted under.
const LogField = "operation_id"

type operationKey struct{}

// WithOperationID returns a context carrying id. A nil ctx is replaced by
// context.Background().
func WithOperationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operationKey{}, id)
}

// OperationID returns the id carried by ctx, or "".
func OperationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(operationKey{}).(string)
	return id
}

// NewID returns a random version 4 UUID.
func NewID() string {
	return uuid.NewString()
}

// Ensure returns ctx unchanged when it already carries an id. Otherwise a
// fresh id is attached.
func Ensure(ctx context.Context) (context.Context, string) {
	id := OperationID(ctx)
	if id == "" {
		id = NewID()
		ctx = WithOperationID(ctx, id)
	}
	return ctx, id
}
