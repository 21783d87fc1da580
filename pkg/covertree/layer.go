// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"sort"
	"sync/atomic"
)

// layerSnapshot is an immutable, point-in-time view of one layer's
// contents. Readers only ever see a fully-built snapshot: there is no way
// to reach a *Node via a snapshot except through the map lookup below, and
// the map itself is never mutated once published.
type layerSnapshot struct {
	nodes map[PointIndex]*Node
}

func (s *layerSnapshot) get(idx PointIndex) (*Node, bool) {
	n, ok := s.nodes[idx]
	return n, ok
}

func (s *layerSnapshot) centerIndices() []PointIndex {
	out := make([]PointIndex, 0, len(s.nodes))
	for idx := range s.nodes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Layer is a single-writer/many-reader mapping from a center point index
// to a Node, one per scale index present in a tree. Writes accumulate in
// a shadow map invisible to readers; Refresh publishes the shadow by an
// atomic pointer swap, so readers never take a lock and never observe a
// partially-written map (SPEC_FULL.md §5).
type Layer struct {
	scale     int32
	published atomic.Pointer[layerSnapshot]
	shadow    map[PointIndex]*Node
}

// NewLayer creates an empty layer at the given scale.
func NewLayer(scale int32) *Layer {
	l := &Layer{scale: scale, shadow: make(map[PointIndex]*Node)}
	l.published.Store(&layerSnapshot{nodes: map[PointIndex]*Node{}})
	return l
}

func (l *Layer) Scale() int32 { return l.scale }

// snapshot returns the currently published snapshot. Safe for concurrent
// use by any number of readers; never blocks.
func (l *Layer) snapshot() *layerSnapshot { return l.published.Load() }

// Get looks up idx in the currently published snapshot and applies fn to
// the node if present. This is the closure-scoped access pattern of
// SPEC_FULL.md §4.3: callers never hold a bare *Node past fn's return, so
// the snapshot may be reclaimed once no reader still references it.
func (l *Layer) Get(idx PointIndex, fn func(*Node)) bool {
	n, ok := l.snapshot().get(idx)
	if !ok {
		return false
	}
	fn(n)
	return true
}

// ForEach applies fn to every node in the currently published snapshot.
func (l *Layer) ForEach(fn func(PointIndex, *Node)) {
	snap := l.snapshot()
	for idx, n := range snap.nodes {
		fn(idx, n)
	}
}

// Map applies fn to every node in the currently published snapshot and
// collects the results.
func (l *Layer) Map(fn func(PointIndex, *Node) any) []any {
	snap := l.snapshot()
	out := make([]any, 0, len(snap.nodes))
	for idx, n := range snap.nodes {
		out = append(out, fn(idx, n))
	}
	return out
}

// Len returns the number of nodes in the currently published snapshot.
func (l *Layer) Len() int { return len(l.snapshot().nodes) }

// CenterIndices returns every center point index present in the currently
// published snapshot.
func (l *Layer) CenterIndices() []PointIndex { return l.snapshot().centerIndices() }

// Insert writes a node into the shadow map. Writer-only; invisible to
// readers until Refresh.
func (l *Layer) Insert(idx PointIndex, n *Node) { l.shadow[idx] = n }

// shadowGet looks up idx among the writer's pending shadow writes,
// falling back to the last published snapshot. Writer-only: used during
// build, before the first Refresh, when a node is only reachable through
// the shadow map.
func (l *Layer) shadowGet(idx PointIndex) (*Node, bool) {
	if n, ok := l.shadow[idx]; ok {
		return n, true
	}
	return l.snapshot().get(idx)
}

// Update looks up idx in the shadow map (falling back to the last
// published snapshot if the shadow hasn't seen it yet) and applies mutFn
// in place. Writer-only.
func (l *Layer) Update(idx PointIndex, mutFn func(*Node)) bool {
	n, ok := l.shadow[idx]
	if !ok {
		n, ok = l.snapshot().get(idx)
		if !ok {
			return false
		}
		l.shadow[idx] = n
	}
	mutFn(n)
	return true
}

// updatePlugin attaches a plugin value to a node already present in the
// shadow map (or the published snapshot, copied into the shadow on first
// touch), used by the plugin recompute pass.
func (l *Layer) updatePlugin(idx PointIndex, key string, val any) {
	l.Update(idx, func(n *Node) { n.InsertPlugin(key, val) })
}

// refresh flips the published pointer to a fresh copy merging the shadow
// map over the previous snapshot, with release semantics: the next
// reader Load (acquire) sees the new map in its entirety or not at all.
func (l *Layer) refresh() {
	prev := l.snapshot()
	merged := make(map[PointIndex]*Node, len(prev.nodes)+len(l.shadow))
	for idx, n := range prev.nodes {
		merged[idx] = n
	}
	for idx, n := range l.shadow {
		merged[idx] = n
	}
	l.published.Store(&layerSnapshot{nodes: merged})
	l.shadow = make(map[PointIndex]*Node)
}

// Refresh is the exported form of refresh, called by a tree's writer as
// part of the tree-level publish barrier once every mutated layer for a
// build phase has accumulated its shadow writes.
func (l *Layer) Refresh() { l.refresh() }

// ParForEach applies fn to every node in the currently published snapshot
// using a bounded worker pool, safe as long as fn is itself thread-safe;
// the snapshot it iterates over cannot be mutated concurrently with this
// call because fn only ever sees *Node values already frozen in it.
func (l *Layer) ParForEach(fn func(PointIndex, *Node)) {
	snap := l.snapshot()
	type kv struct {
		idx PointIndex
		n   *Node
	}
	items := make([]kv, 0, len(snap.nodes))
	for idx, n := range snap.nodes {
		items = append(items, kv{idx, n})
	}

	workers := workerCount()
	if workers > len(items) {
		workers = len(items)
	}
	if workers <= 1 {
		for _, it := range items {
			fn(it.idx, it.n)
		}
		return
	}

	ch := make(chan kv, len(items))
	for _, it := range items {
		ch <- it
	}
	close(ch)

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for it := range ch {
				fn(it.idx, it.n)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
}
