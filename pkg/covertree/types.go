// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

// PointIndex identifies a point in a PointCloud. Treated as a dense
// non-negative integer for hashing.
type PointIndex uint64

// Address uniquely identifies a node by the scale it lives at and the
// point that is its center. A center point index may recur across scales
// only as part of a single nesting chain.
type Address struct {
	Scale  int32
	Center PointIndex
}

// Less orders addresses first by scale, then by center point index. Used
// for the sorted child-count lists in Categorical and for deterministic
// iteration order elsewhere.
func (a Address) Less(b Address) bool {
	if a.Scale != b.Scale {
		return a.Scale < b.Scale
	}
	return a.Center < b.Center
}

// NamedDistance pairs a point index with its distance to a query, the
// result element of Knn.
type NamedDistance struct {
	Distance float64
	Point    PointIndex
}

// NodeDistance pairs a node address with its distance to a query, the
// result element of RoutingKnn and Path.
type NodeDistance struct {
	Distance float64
	Address  Address
}

// PartitionStrategy selects how a node's unassigned points are handed to
// candidate children during a build.
type PartitionStrategy int

const (
	// FirstCovering assigns each point to the first child whose covering
	// radius reaches it, in child-creation order. This is the default,
	// matching the reference implementation's unconditional behavior.
	FirstCovering PartitionStrategy = iota
	// NearestChild reassigns each point to its closest open child rather
	// than the first one found to cover it.
	NearestChild
)

func (p PartitionStrategy) String() string {
	if p == NearestChild {
		return "nearest_child"
	}
	return "first_covering"
}
