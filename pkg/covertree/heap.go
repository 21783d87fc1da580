// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"container/heap"
	"math"
)

// frontierEntry is one unvisited node awaiting expansion, keyed by its
// lower-bound distance to the nearest point it could possibly cover.
type frontierEntry struct {
	lowerBound   float64
	distToCenter float64
	address      Address
	parent       *Address
}

// frontierHeap is a min-heap over frontierEntry ordered by lowerBound,
// with deterministic tie-breaking: smaller distToCenter, then smaller (i.e.
// deeper) scale.
type frontierHeap []frontierEntry

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.lowerBound != b.lowerBound {
		return a.lowerBound < b.lowerBound
	}
	if a.distToCenter != b.distToCenter {
		return a.distToCenter < b.distToCenter
	}
	return a.address.Scale < b.address.Scale
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)   { *h = append(*h, x.(frontierEntry)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// resultEntry is one k-NN candidate. address.Scale is meaningless for a
// plain point candidate (pushed via PushOutliers) and only carries real
// scale information when pushed via PushCandidateAddress (RoutingKnn).
type resultEntry struct {
	distance float64
	address  Address
}

// resultHeap is a max-heap over resultEntry by distance, so the worst
// candidate (to be evicted first) sits at the root.
type resultHeap []resultEntry

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].distance > h[j].distance }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(resultEntry)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// QueryHeap couples a capacity-k result max-heap with a frontier min-heap,
// driving the k-NN family of search algorithms.
type QueryHeap struct {
	k        int
	base     float64
	results  resultHeap
	frontier frontierHeap
}

// NewQueryHeap constructs an empty query heap with the given result
// capacity and scale base.
func NewQueryHeap(k int, base float64) *QueryHeap {
	return &QueryHeap{k: k, base: base}
}

func (q *QueryHeap) lowerBound(distToCenter float64, scale int32) float64 {
	return math.Max(0, distToCenter-math.Pow(q.base, float64(scale)))
}

// PushOutliers bulk-inserts candidate points into the result heap,
// enforcing the capacity-k cap: once full, a new candidate only survives
// if it beats the current worst kept candidate.
func (q *QueryHeap) PushOutliers(indices []PointIndex, distances []float64) {
	for i, idx := range indices {
		q.pushResult(resultEntry{distance: distances[i], address: Address{Center: idx}})
	}
}

// PushCandidateAddress inserts a single node (identified by its full
// address, not just its center point) as a result candidate, used by
// RoutingKnn where every visited node's center counts as a candidate.
func (q *QueryHeap) PushCandidateAddress(addr Address, dist float64) {
	q.pushResult(resultEntry{distance: dist, address: addr})
}

func (q *QueryHeap) pushResult(entry resultEntry) {
	if len(q.results) < q.k {
		heap.Push(&q.results, entry)
		return
	}
	if q.k == 0 {
		return
	}
	if entry.distance < q.results[0].distance {
		q.results[0] = entry
		heap.Fix(&q.results, 0)
	}
}

// PushNodes bulk-inserts frontier entries for later expansion.
func (q *QueryHeap) PushNodes(addresses []Address, distances []float64, parent *Address) {
	for i, addr := range addresses {
		heap.Push(&q.frontier, frontierEntry{
			lowerBound:   q.lowerBound(distances[i], addr.Scale),
			distToCenter: distances[i],
			address:      addr,
			parent:       parent,
		})
	}
}

// PopFrontier removes and returns the frontier entry with the smallest
// lower bound. ok is false if the frontier is empty.
func (q *QueryHeap) PopFrontier() (entry frontierEntry, ok bool) {
	if len(q.frontier) == 0 {
		return frontierEntry{}, false
	}
	return heap.Pop(&q.frontier).(frontierEntry), true
}

// PeekBestFrontier returns the frontier's best (smallest) lower bound
// without removing it.
func (q *QueryHeap) PeekBestFrontier() (float64, bool) {
	if len(q.frontier) == 0 {
		return 0, false
	}
	return q.frontier[0].lowerBound, true
}

// Len returns the current number of result candidates held.
func (q *QueryHeap) Len() int { return len(q.results) }

// NodeLen returns the current number of unvisited frontier entries.
func (q *QueryHeap) NodeLen() int { return len(q.frontier) }

// worstResult returns the current worst (largest) kept candidate distance.
func (q *QueryHeap) worstResult() (float64, bool) {
	if len(q.results) == 0 {
		return 0, false
	}
	return q.results[0].distance, true
}

// ShouldStop reports whether the search may terminate: the result set is
// full and the frontier cannot possibly improve on the worst kept
// candidate.
func (q *QueryHeap) ShouldStop() bool {
	if len(q.results) < q.k {
		return len(q.frontier) == 0
	}
	worst, ok := q.worstResult()
	if !ok {
		return len(q.frontier) == 0
	}
	best, ok := q.PeekBestFrontier()
	if !ok {
		return true
	}
	return best >= worst
}

// Unpack drains the result heap in ascending distance order as point
// candidates (used by Knn).
func (q *QueryHeap) Unpack() []NamedDistance {
	entries := q.drain()
	out := make([]NamedDistance, len(entries))
	for i, e := range entries {
		out[i] = NamedDistance{Distance: e.distance, Point: e.address.Center}
	}
	return out
}

// UnpackAddresses drains the result heap in ascending distance order as
// full node addresses (used by RoutingKnn).
func (q *QueryHeap) UnpackAddresses() []NodeDistance {
	entries := q.drain()
	out := make([]NodeDistance, len(entries))
	for i, e := range entries {
		out[i] = NodeDistance{Distance: e.distance, Address: e.address}
	}
	return out
}

func (q *QueryHeap) drain() []resultEntry {
	out := make([]resultEntry, len(q.results))
	tmp := make(resultHeap, len(q.results))
	copy(tmp, q.results)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&tmp).(resultEntry)
	}
	return out
}
