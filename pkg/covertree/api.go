// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file contains the service-facing request taxonomy the core tree is
// driven through: already-parsed requests in, typed responses out. Parsing
// a caller's wire encoding into one of these request types is out of scope.
package covertree

import "fmt"

// ErrTrackingUnsupported is returned by Dispatch for a TrackingRequest: the
// core tree has no tracker worker to delegate to (out of scope).
var ErrTrackingUnsupported = fmt.Errorf("[COVERTREE]> tracking requests are not handled by the core tree")

// Request is any of ParametersRequest, KnnRequest, RoutingKnnRequest,
// PathRequest, TrackingRequest, or UnknownRequest.
type Request interface {
	isRequest()
}

// ParametersRequest asks for the tree's current shape.
type ParametersRequest struct{}

// KnnRequest asks for the k nearest points to Point.
type KnnRequest struct {
	K     int
	Point []float64
}

// RoutingKnnRequest asks for the k nearest nodes (by center) to Point.
type RoutingKnnRequest struct {
	K     int
	Point []float64
}

// PathRequest asks for the root-to-leaf covering descent for Point.
type PathRequest struct {
	Point []float64
}

// TrackingRequest would be delegated to a tracker worker; the core tree
// rejects it with ErrTrackingUnsupported.
type TrackingRequest struct {
	TrackerName string
}

// UnknownRequest is an opaque passthrough for anything a caller's parser
// could not classify.
type UnknownRequest struct {
	Message string
	Status  int
}

func (ParametersRequest) isRequest() {}
func (KnnRequest) isRequest()        {}
func (RoutingKnnRequest) isRequest() {}
func (PathRequest) isRequest()       {}
func (TrackingRequest) isRequest()   {}
func (UnknownRequest) isRequest()    {}

// Response is the typed counterpart to Request, returned by Dispatch.
type Response struct {
	Parameters *TreeSummary
	Knn        []NamedDistance
	RoutingKnn []NodeDistance
	Path       []NodeDistance
}

// Dispatch routes req to the matching Tree operation. Callers parsing an
// external wire format (HTTP, RPC, ...) construct the Request value
// themselves; Dispatch never sees raw bytes.
func Dispatch(t *Tree, req Request) (Response, error) {
	switch r := req.(type) {
	case ParametersRequest:
		s := t.Summary()
		return Response{Parameters: &s}, nil
	case KnnRequest:
		out, err := t.Knn(r.Point, r.K)
		if err != nil {
			return Response{}, err
		}
		return Response{Knn: out}, nil
	case RoutingKnnRequest:
		out, err := t.RoutingKnn(r.Point, r.K)
		if err != nil {
			return Response{}, err
		}
		return Response{RoutingKnn: out}, nil
	case PathRequest:
		out, err := t.Path(r.Point)
		if err != nil {
			return Response{}, err
		}
		return Response{Path: out}, nil
	case TrackingRequest:
		return Response{}, ErrTrackingUnsupported
	case UnknownRequest:
		return Response{}, newTreeError(ErrMalformedQuery, "unknown request (status %d): %s", r.Status, r.Message)
	default:
		return Response{}, newTreeError(ErrMalformedQuery, "unrecognized request type %T", req)
	}
}
