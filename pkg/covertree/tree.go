// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"runtime"
	"sort"
	"time"
)

// DefaultMaxWorkers bounds the worker pool used for parallel per-scale
// plugin computation and layer iteration, mirroring the teacher's
// min(runtime.NumCPU()/2+1, DefaultMaxWorkers) sizing idiom.
const DefaultMaxWorkers = 10

func workerCount() int {
	n := runtime.NumCPU()/2 + 1
	if n > DefaultMaxWorkers {
		return DefaultMaxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Tree is the ordered set of layers plus the root address and build
// parameters. A Tree is built once by a single writer and then queried
// concurrently by any number of readers.
type Tree struct {
	params Parameters
	cloud  PointCloud
	root   Address
	layers map[int32]*Layer
}

// NewTree allocates an empty tree over cloud with the given parameters.
// Call Build to populate it.
func NewTree(cloud PointCloud, params Parameters) *Tree {
	return &Tree{params: params, cloud: cloud, layers: make(map[int32]*Layer)}
}

func (t *Tree) layer(scale int32) *Layer {
	l, ok := t.layers[scale]
	if !ok {
		l = NewLayer(scale)
		t.layers[scale] = l
	}
	return l
}

func (t *Tree) sortedScales() []int32 {
	out := make([]int32, 0, len(t.layers))
	for s := range t.layers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RootAddress returns the address of the tree's root node.
func (t *Tree) RootAddress() Address { return t.root }

// Base returns the tree's scale base.
func (t *Tree) Base() float64 { return t.params.Base }

// Layer returns the layer reader for the given scale, or nil if no nodes
// exist at that scale in the current snapshot.
func (t *Tree) Layer(scale int32) *Layer {
	l, ok := t.layers[scale]
	if !ok {
		return nil
	}
	return l
}

// Reader returns a TreeReader bound to this tree's current state. The
// reader holds no locks; every method re-reads the relevant layer's
// currently published snapshot.
func (t *Tree) Reader() *TreeReader { return &TreeReader{tree: t} }

// TreeReader is the read-only facade over a Tree used both by query
// algorithms and by plugin computation.
type TreeReader struct {
	tree *Tree
}

// GetNode looks up addr's node in its layer's currently published
// snapshot and applies fn to it if present.
func (r *TreeReader) GetNode(addr Address, fn func(*Node)) bool {
	l := r.tree.Layer(addr.Scale)
	if l == nil {
		return false
	}
	return l.Get(addr.Center, fn)
}

// GetNodePlugin looks up a plugin value attached to addr's node. ok is
// false if the node or the plugin value is absent (ErrPluginAbsent case,
// recovered here rather than propagated).
func (r *TreeReader) GetNodePlugin(addr Address, key string) (any, bool) {
	var val any
	var found bool
	r.GetNode(addr, func(n *Node) {
		val, found = n.GetPlugin(key)
	})
	return val, found
}

// node returns addr's node directly, for internal use by the query
// algorithms below where closure-scoped access would add noise without
// changing the escape-analysis story (the node's lifetime is still tied
// to its layer's snapshot, reachable for the duration of the query).
func (r *TreeReader) node(addr Address) (*Node, bool) {
	l := r.tree.Layer(addr.Scale)
	if l == nil {
		return nil, false
	}
	return l.snapshot().get(addr.Center)
}

// Knn returns the k nearest points to query, ascending by distance,
// ties broken by point index. Returns ErrMalformedQuery if k == 0 or
// query is empty.
func (t *Tree) Knn(query []float64, k int) ([]NamedDistance, error) {
	start := time.Now()
	h, visited, err := t.search(query, k, false)
	if err != nil {
		return nil, err
	}
	recordQuery("knn", time.Since(start), visited)
	out := h.Unpack()
	breakTies(out)
	return out, nil
}

// RoutingKnn is like Knn but only node centers, not singletons, are
// counted as candidates; results carry full node addresses.
func (t *Tree) RoutingKnn(query []float64, k int) ([]NodeDistance, error) {
	start := time.Now()
	h, visited, err := t.search(query, k, true)
	if err != nil {
		return nil, err
	}
	recordQuery("routing_knn", time.Since(start), visited)
	return h.UnpackAddresses(), nil
}

func breakTies(out []NamedDistance) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Point < out[j].Point
	})
}

func (t *Tree) search(query []float64, k int, routing bool) (*QueryHeap, int, error) {
	if k <= 0 {
		return nil, 0, newTreeError(ErrMalformedQuery, "k must be positive, got %d", k)
	}
	if len(query) == 0 {
		return nil, 0, newTreeError(ErrMalformedQuery, "query vector must not be empty")
	}

	reader := t.Reader()
	root, ok := reader.node(t.root)
	if !ok {
		return nil, 0, newTreeError(ErrIndexNotInTree, "root address %+v absent", t.root)
	}

	dists, err := t.cloud.DistancesToPoint(query, []PointIndex{t.root.Center})
	if err != nil {
		return nil, 0, err
	}

	h := NewQueryHeap(k, t.params.Base)
	h.PushNodes([]Address{t.root}, dists, nil)

	visited := 0
	for !h.ShouldStop() {
		entry, ok := h.PopFrontier()
		if !ok {
			break
		}
		var node *Node
		if entry.address == t.root {
			node = root
		} else {
			node, ok = reader.node(entry.address)
			if !ok {
				continue
			}
		}
		visited++
		if routing {
			if err := node.RoutingKnn(entry.distToCenter, query, t.cloud, h); err != nil {
				return nil, 0, err
			}
		} else {
			if err := node.Knn(entry.distToCenter, query, t.cloud, h); err != nil {
				return nil, 0, err
			}
		}
	}

	return h, visited, nil
}

// Path returns the sequence of nodes visited from the root to the deepest
// covering ancestor of query: each entry's address is a child of the
// previous entry's, and each node's radius covers query at the time of
// visit.
func (t *Tree) Path(query []float64) ([]NodeDistance, error) {
	if len(query) == 0 {
		return nil, newTreeError(ErrMalformedQuery, "query vector must not be empty")
	}
	reader := t.Reader()

	dists, err := t.cloud.DistancesToPoint(query, []PointIndex{t.root.Center})
	if err != nil {
		return nil, err
	}

	out := []NodeDistance{{Distance: dists[0], Address: t.root}}
	current := t.root
	distToCenter := dists[0]

	for {
		node, ok := reader.node(current)
		if !ok {
			return nil, newTreeError(ErrIndexNotInTree, "address %+v absent", current)
		}
		dist, addr, ok := node.CoveringChild(t.params.Base, distToCenter, query, t.cloud)
		if !ok {
			break
		}
		out = append(out, NodeDistance{Distance: dist, Address: addr})
		current = addr
		distToCenter = dist
	}
	return out, nil
}

// TreeSummary reports the tree's shape, the response to a Parameters
// request in SPEC_FULL.md §6.
type TreeSummary struct {
	Depth         int
	Base          float64
	MinScale      int32
	MaxScale      int32
	NodesPerLayer map[int32]int
}

// Summary returns the tree's current shape.
func (t *Tree) Summary() TreeSummary {
	scales := t.sortedScales()
	s := TreeSummary{Base: t.params.Base, NodesPerLayer: make(map[int32]int, len(scales))}
	if len(scales) > 0 {
		s.MinScale = scales[0]
		s.MaxScale = scales[len(scales)-1]
		s.Depth = len(scales)
	}
	for _, sc := range scales {
		s.NodesPerLayer[sc] = t.layers[sc].Len()
	}
	return s
}

// maxPairwiseDiameter returns the largest distance between any two of the
// given points, via the cloud's adjacency matrix.
func maxPairwiseDiameter(cloud PointCloud, idx []PointIndex) (float64, error) {
	if len(idx) < 2 {
		return 0, nil
	}
	adj, err := cloud.Adjacency(idx)
	if err != nil {
		return 0, err
	}
	var max float64
	for _, row := range adj {
		for _, d := range row {
			if d > max {
				max = d
			}
		}
	}
	return max, nil
}

// rootScale computes ceil(log_base(diameter)), or params.MaxScaleHint if
// supplied, or MinScale+1 for a degenerate (≤1 point) cloud.
func rootScale(params Parameters, diameter float64) int32 {
	if params.MaxScaleHint != nil {
		return *params.MaxScaleHint
	}
	if diameter <= 0 {
		return params.MinScale + 1
	}
	s := int32(math.Ceil(math.Log(diameter) / math.Log(params.Base)))
	if s <= params.MinScale {
		s = params.MinScale + 1
	}
	return s
}
