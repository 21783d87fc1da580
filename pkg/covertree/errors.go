// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying each error kind in the index. Query-time
// errors are returned, never panicked; build-time invariant violations
// panic instead, since they indicate a corrupted tree that must never be
// published (see buildInvariant).
var (
	// ErrPointCloud is raised when a distance or label query against the
	// point cloud fails, e.g. an out-of-range index.
	ErrPointCloud = errors.New("[COVERTREE]> point cloud query failed")
	// ErrDoubleNest is raised when the writer tries to nest a node that
	// already has a self-child.
	ErrDoubleNest = errors.New("[COVERTREE]> node already has a nested child")
	// ErrInsertBeforeNest is raised when the writer tries to attach an
	// explicit child to a node with no self-child yet.
	ErrInsertBeforeNest = errors.New("[COVERTREE]> cannot insert child before nesting")
	// ErrIndexNotInTree is raised when a query references an address
	// absent from the current snapshot.
	ErrIndexNotInTree = errors.New("[COVERTREE]> address not present in tree")
	// ErrMalformedQuery is raised for k=0 or an empty query vector.
	ErrMalformedQuery = errors.New("[COVERTREE]> malformed query")
	// ErrPluginAbsent is raised when plugin state was requested but never
	// attached; callers recover this case as (nil, false) rather than
	// treating it as a propagating error.
	ErrPluginAbsent = errors.New("[COVERTREE]> plugin value not attached")
)

// TreeError wraps a sentinel error kind with request-specific context.
type TreeError struct {
	Kind error
	Msg  string
}

func (e *TreeError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *TreeError) Unwrap() error { return e.Kind }

func newTreeError(kind error, format string, args ...any) *TreeError {
	return &TreeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// StatusHint maps an error kind to the HTTP status code an external
// service layer should report. The mapping itself lives here so a caller
// wrapping this package in an HTTP handler does not need to re-derive the
// kind switch: 400 for malformed input, 404 for not-found, 500 otherwise.
func StatusHint(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrMalformedQuery):
		return 400
	case errors.Is(err, ErrIndexNotInTree):
		return 404
	case errors.Is(err, ErrPluginAbsent):
		return 404
	case errors.Is(err, ErrPointCloud):
		return 400
	default:
		return 500
	}
}

// buildInvariant panics with a logged message if cond is false. It is used
// exclusively during build to enforce that no partially-built, invariant-
// violating tree is ever published.
func buildInvariant(cond bool, format string, args ...any) {
	if !cond {
		msg := fmt.Sprintf(format, args...)
		abortf("build invariant violated: %s", msg)
		panic("[COVERTREE]> build invariant violated: " + msg)
	}
}
