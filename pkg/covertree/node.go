// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"sort"
)

// pluginKey identifies a plugin's attached value on a node. Concrete
// plugins register a distinct key (see plugin.go).
type pluginKey string

// childSet holds a node's self-child scale plus its other, distinctly-
// centered children. Absence of a childSet means the node is a leaf.
type childSet struct {
	nestedScale int32
	addresses   []Address // sorted by address, self-child excluded
}

// Node is one cover-tree node: its address, cached radius/cover-count,
// children (if any), the points it covers directly (singletons), and any
// attached plugin state. Nodes are created and mutated only by a tree's
// writer and are never deleted from a published snapshot.
type Node struct {
	address    Address
	radius     float64
	coverCount uint64
	children   *childSet
	singletons []PointIndex
	summary    LabelSummary
	hasSummary bool
	plugins    map[pluginKey]any
}

// NewNode creates a leaf node at the given address.
func NewNode(address Address) *Node {
	return &Node{address: address, coverCount: 1}
}

func (n *Node) Address() Address   { return n.address }
func (n *Node) Radius() float64    { return n.radius }
func (n *Node) CoverCount() uint64 { return n.coverCount }
func (n *Node) IsLeaf() bool       { return n.children == nil }

// Singletons returns the point indices this node covers directly. The
// returned slice must not be mutated by the caller.
func (n *Node) Singletons() []PointIndex { return n.singletons }

// Children reports the self-child scale and the node's other children, if
// any. ok is false for a leaf.
func (n *Node) Children() (nestedScale int32, addresses []Address, ok bool) {
	if n.children == nil {
		return 0, nil, false
	}
	return n.children.nestedScale, n.children.addresses, true
}

// selfChildAddress returns the address of n's self-child. Only valid when
// n is not a leaf.
func (n *Node) selfChildAddress() Address {
	return Address{Scale: n.children.nestedScale, Center: n.address.Center}
}

// GetPlugin performs a type-safe lookup of an attached plugin value.
func (n *Node) GetPlugin(key string) (any, bool) {
	if n.plugins == nil {
		return nil, false
	}
	v, ok := n.plugins[pluginKey(key)]
	return v, ok
}

// InsertPlugin attaches typed plugin state under key, overwriting any
// previous value. Writer-only.
func (n *Node) InsertPlugin(key string, value any) {
	if n.plugins == nil {
		n.plugins = make(map[pluginKey]any)
	}
	n.plugins[pluginKey(key)] = value
}

// InsertNestedChild promotes a leaf to a routing node with the given
// self-child scale. Returns ErrDoubleNest if n is already nested.
func (n *Node) InsertNestedChild(scale int32) error {
	if n.children != nil {
		return newTreeError(ErrDoubleNest, "node %+v already nested at scale %d", n.address, n.children.nestedScale)
	}
	n.children = &childSet{nestedScale: scale}
	return nil
}

// InsertChild appends an explicit, distinctly-centered child. Returns
// ErrInsertBeforeNest if n has no self-child yet.
func (n *Node) InsertChild(addr Address) error {
	if n.children == nil {
		return newTreeError(ErrInsertBeforeNest, "node %+v has no nested child yet", n.address)
	}
	i := sort.Search(len(n.children.addresses), func(i int) bool {
		return !n.children.addresses[i].Less(addr)
	})
	n.children.addresses = append(n.children.addresses, Address{})
	copy(n.children.addresses[i+1:], n.children.addresses[i:])
	n.children.addresses[i] = addr
	return nil
}

// InsertSingleton adds a direct descendant and bumps cover_count.
func (n *Node) InsertSingleton(idx PointIndex) {
	n.singletons = append(n.singletons, idx)
	n.coverCount++
}

// InsertSingletons adds several direct descendants at once.
func (n *Node) InsertSingletons(idx []PointIndex) {
	n.singletons = append(n.singletons, idx...)
	n.coverCount += uint64(len(idx))
}

// SetRadius caches the maximum observed distance from the center to any
// descendant.
func (n *Node) SetRadius(r float64) { n.radius = r }

// SetCoverCount overwrites the cached descendant count, used by the
// bottom-up finalization pass in tree.go.
func (n *Node) SetCoverCount(c uint64) { n.coverCount = c }

// UpdateLabelSummary recomputes and caches the label summary over this
// node's direct singletons plus its own center point.
func (n *Node) UpdateLabelSummary(cloud PointCloud) error {
	idx := make([]PointIndex, 0, len(n.singletons)+1)
	idx = append(idx, n.address.Center)
	idx = append(idx, n.singletons...)
	s, err := cloud.LabelSummary(idx)
	if err != nil {
		return err
	}
	n.summary = s
	n.hasSummary = true
	return nil
}

func (n *Node) LabelSummary() (LabelSummary, bool) { return n.summary, n.hasSummary }

// Knn pushes this node's contribution into a query heap: every singleton
// becomes a result candidate, every child (self-child first) becomes a
// frontier entry, and for a leaf the center itself is also a candidate.
// distToCenter is the already-known distance from query to this node's
// center.
func (n *Node) Knn(distToCenter float64, query []float64, cloud PointCloud, heap *QueryHeap) error {
	if len(n.singletons) > 0 {
		dists, err := cloud.DistancesToPoint(query, n.singletons)
		if err != nil {
			return err
		}
		heap.PushOutliers(n.singletons, dists)
	}

	if n.children == nil {
		heap.PushOutliers([]PointIndex{n.address.Center}, []float64{distToCenter})
		return nil
	}

	addrs := make([]Address, 0, len(n.children.addresses)+1)
	dists := make([]float64, 0, len(n.children.addresses)+1)
	addrs = append(addrs, n.selfChildAddress())
	dists = append(dists, distToCenter)

	if len(n.children.addresses) > 0 {
		centers := make([]PointIndex, len(n.children.addresses))
		for i, a := range n.children.addresses {
			centers[i] = a.Center
		}
		cd, err := cloud.DistancesToPoint(query, centers)
		if err != nil {
			return err
		}
		addrs = append(addrs, n.children.addresses...)
		dists = append(dists, cd...)
	}

	parent := n.address
	heap.PushNodes(addrs, dists, &parent)
	return nil
}

// RoutingKnn is identical to Knn except singletons are never pushed as
// result candidates — only node centers, via the child/self-child
// addresses pushed onto the frontier, ever become candidates downstream.
func (n *Node) RoutingKnn(distToCenter float64, query []float64, cloud PointCloud, heap *QueryHeap) error {
	heap.PushCandidateAddress(n.address, distToCenter)

	if n.children == nil {
		return nil
	}

	addrs := make([]Address, 0, len(n.children.addresses)+1)
	dists := make([]float64, 0, len(n.children.addresses)+1)
	addrs = append(addrs, n.selfChildAddress())
	dists = append(dists, distToCenter)

	if len(n.children.addresses) > 0 {
		centers := make([]PointIndex, len(n.children.addresses))
		for i, a := range n.children.addresses {
			centers[i] = a.Center
		}
		cd, err := cloud.DistancesToPoint(query, centers)
		if err != nil {
			return err
		}
		addrs = append(addrs, n.children.addresses...)
		dists = append(dists, cd...)
	}

	parent := n.address
	heap.PushNodes(addrs, dists, &parent)
	return nil
}

// candidate is a child considered by NearestCoveringChild/CoveringChild.
type candidate struct {
	dist float64
	addr Address
}

func (n *Node) candidates(base, distToCenter float64, query []float64, cloud PointCloud) ([]candidate, error) {
	if n.children == nil {
		return nil, nil
	}
	out := make([]candidate, 0, len(n.children.addresses)+1)
	out = append(out, candidate{dist: distToCenter, addr: n.selfChildAddress()})
	if len(n.children.addresses) > 0 {
		centers := make([]PointIndex, len(n.children.addresses))
		for i, a := range n.children.addresses {
			centers[i] = a.Center
		}
		dists, err := cloud.DistancesToPoint(query, centers)
		if err != nil {
			return nil, err
		}
		for i, a := range n.children.addresses {
			out = append(out, candidate{dist: dists[i], addr: a})
		}
	}
	return out, nil
}

// NearestCoveringChild returns the single closest child (self-child or
// explicit) whose covering radius reaches the query, ties broken by
// smaller distance. ok is false if no child covers the query.
func (n *Node) NearestCoveringChild(base, distToCenter float64, query []float64, cloud PointCloud) (dist float64, addr Address, ok bool) {
	cands, err := n.candidates(base, distToCenter, query, cloud)
	if err != nil || len(cands) == 0 {
		return 0, Address{}, false
	}
	best := -1
	for i, c := range cands {
		if c.dist > math.Pow(base, float64(c.addr.Scale)) {
			continue
		}
		if best == -1 || c.dist < cands[best].dist {
			best = i
		}
	}
	if best == -1 {
		return 0, Address{}, false
	}
	return cands[best].dist, cands[best].addr, true
}

// CoveringChild returns the first child (self-child preferred, then
// explicit children in stored order) whose covering radius reaches the
// query. Used for deterministic path descent.
func (n *Node) CoveringChild(base, distToCenter float64, query []float64, cloud PointCloud) (dist float64, addr Address, ok bool) {
	cands, err := n.candidates(base, distToCenter, query, cloud)
	if err != nil {
		return 0, Address{}, false
	}
	for _, c := range cands {
		if c.dist <= math.Pow(base, float64(c.addr.Scale)) {
			return c.dist, c.addr, true
		}
	}
	return 0, Address{}, false
}

// CheckSeparation reports whether the minimum pairwise distance among
// singletons ∪ {center} ∪ child centers is at least the given scale
// radius, per the cover tree's separation invariant.
func (n *Node) CheckSeparation(scaleRadius float64, cloud PointCloud) bool {
	idx := make([]PointIndex, 0, len(n.singletons)+2)
	idx = append(idx, n.address.Center)
	idx = append(idx, n.singletons...)
	if n.children != nil {
		// The self-child shares n's center, already in idx.
		for _, a := range n.children.addresses {
			idx = append(idx, a.Center)
		}
	}
	if len(idx) < 2 {
		return true
	}
	adj, err := cloud.Adjacency(idx)
	if err != nil {
		return false
	}
	for i := range adj {
		for j := range adj[i] {
			if i == j {
				continue
			}
			if adj[i][j] < scaleRadius {
				return false
			}
		}
	}
	return true
}
