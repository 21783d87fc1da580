// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"time"
)

// Build constructs the tree over every point in cloud, top-down, per
// SPEC_FULL.md §4.4. It must be called at most once per Tree; subsequent
// structural changes are not supported (dynamic insertion/deletion is an
// explicit Non-goal).
func (t *Tree) Build() error {
	start := time.Now()
	n := t.cloud.Len()
	all := make([]PointIndex, n)
	for i := range all {
		all[i] = PointIndex(i)
	}

	diameter, err := maxPairwiseDiameter(t.cloud, all)
	if err != nil {
		return err
	}
	scale := rootScale(t.params, diameter)

	var center PointIndex
	rest := all
	if n > 0 {
		center = all[0]
		rest = all[1:]
	}
	t.root = Address{Scale: scale, Center: center}

	root := NewNode(t.root)
	infof("building root at scale %d, base %.3f, %d points", scale, t.params.Base, n)

	if err := t.split(root, scale, rest); err != nil {
		return err
	}
	t.layer(scale).Insert(center, root)

	if err := t.finalize(t.root); err != nil {
		return err
	}

	t.publish()
	summary := t.Summary()
	recordBuild(time.Since(start), summary)
	infof("build complete: depth=%d nodes=%v", len(t.layers), summary.NodesPerLayer)
	return nil
}

// bucket is one candidate child's center plus the points assigned to it
// during a single split() call.
type bucket struct {
	center PointIndex
	points []PointIndex
}

// split recursively partitions the points n covers (not including n's own
// center point) into a self-child plus explicit children, per the build
// algorithm of SPEC_FULL.md §4.4 step 2.
func (t *Tree) split(n *Node, scale int32, points []PointIndex) error {
	if len(points) <= t.params.MinSingletonCount || scale <= t.params.MinScale {
		n.InsertSingletons(points)
		return nil
	}

	if err := n.InsertNestedChild(scale - 1); err != nil {
		return err
	}

	childScale := scale - 1
	childRadius := math.Pow(t.params.Base, float64(childScale))
	center := n.Address().Center

	unassigned := append([]PointIndex(nil), points...)
	var buckets []bucket

	for len(unassigned) > 0 {
		farIdx, err := farthestFrom(t.cloud, center, unassigned)
		if err != nil {
			return err
		}
		newCenter := unassigned[farIdx]
		unassigned = removeAt(unassigned, farIdx)

		var taken, remaining []PointIndex
		if len(unassigned) > 0 {
			dists, err := distancesFrom(t.cloud, newCenter, unassigned)
			if err != nil {
				return err
			}
			for i, p := range unassigned {
				if dists[i] <= childRadius {
					taken = append(taken, p)
				} else {
					remaining = append(remaining, p)
				}
			}
		}
		buckets = append(buckets, bucket{center: newCenter, points: taken})
		unassigned = remaining
	}

	if t.params.PartitionStrategy == NearestChild && len(buckets) > 1 {
		var err error
		buckets, err = reassignToNearest(t.cloud, buckets)
		if err != nil {
			return err
		}
	}

	// Points within the parent's self-child radius of the parent's own
	// center, and not claimed by any child bucket, stay with the self-child.
	var selfPoints []PointIndex
	claimed := make(map[PointIndex]bool)
	for _, b := range buckets {
		for _, p := range b.points {
			claimed[p] = true
		}
		claimed[b.center] = true
	}
	for _, p := range points {
		if !claimed[p] {
			selfPoints = append(selfPoints, p)
		}
	}

	for _, b := range buckets {
		childAddr := Address{Scale: childScale, Center: b.center}
		if err := n.InsertChild(childAddr); err != nil {
			return err
		}
		child := NewNode(childAddr)
		if err := t.split(child, childScale, b.points); err != nil {
			return err
		}
		t.layer(childScale).Insert(b.center, child)
	}

	selfChild := NewNode(Address{Scale: childScale, Center: center})
	if err := t.split(selfChild, childScale, selfPoints); err != nil {
		return err
	}
	t.layer(childScale).Insert(center, selfChild)

	return nil
}

// farthestFrom returns the index within points of the point farthest from
// center.
func farthestFrom(cloud PointCloud, center PointIndex, points []PointIndex) (int, error) {
	dists, err := distancesFrom(cloud, center, points)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, d := range dists {
		if d > dists[best] {
			best = i
		}
	}
	return best, nil
}

// distancesFrom returns the distance from the point at from to each point
// in to, using the cloud's adjacency matrix over {from} ∪ to.
func distancesFrom(cloud PointCloud, from PointIndex, to []PointIndex) ([]float64, error) {
	idx := make([]PointIndex, 0, len(to)+1)
	idx = append(idx, from)
	idx = append(idx, to...)
	adj, err := cloud.Adjacency(idx)
	if err != nil {
		return nil, err
	}
	return adj[0][1:], nil
}

func removeAt(s []PointIndex, i int) []PointIndex {
	out := append([]PointIndex(nil), s[:i]...)
	return append(out, s[i+1:]...)
}

// reassignToNearest implements the "nearest_child" partition strategy:
// every point is reassigned to whichever candidate center is actually
// closest, rather than the first bucket that happened to claim it.
func reassignToNearest(cloud PointCloud, buckets []bucket) ([]bucket, error) {
	centers := make([]PointIndex, len(buckets))
	for i, b := range buckets {
		centers[i] = b.center
	}

	allPoints := make([]PointIndex, 0)
	for _, b := range buckets {
		allPoints = append(allPoints, b.points...)
	}
	if len(allPoints) == 0 {
		return buckets, nil
	}

	idx := append(append([]PointIndex(nil), centers...), allPoints...)
	adj, err := cloud.Adjacency(idx)
	if err != nil {
		return nil, err
	}

	out := make([]bucket, len(buckets))
	for i, b := range buckets {
		out[i] = bucket{center: b.center}
	}
	for pi, p := range allPoints {
		row := len(centers) + pi
		best := 0
		for ci := range centers {
			if adj[row][ci] < adj[row][best] {
				best = ci
			}
		}
		out[best].points = append(out[best].points, p)
	}
	return out, nil
}

// finalize runs the bottom-up pass setting radius and cover_count on addr
// and, recursively, on every node in its subtree, per SPEC_FULL.md §4.4
// step 3. finalizeNode does the work and returns each subtree's covering
// radius (max distance from its center to any descendant) and cover count;
// finalize reports only the error.
func (t *Tree) finalize(addr Address) error {
	_, _, err := t.finalizeNode(addr)
	return err
}

func (t *Tree) finalizeNode(addr Address) (radius float64, coverCount uint64, err error) {
	l := t.layer(addr.Scale)
	node, ok := l.shadowGet(addr.Center)
	if !ok {
		return 0, 0, newTreeError(ErrIndexNotInTree, "address %+v missing during finalize", addr)
	}

	coverCount = 1
	if len(node.Singletons()) > 0 {
		dists, err := distancesFrom(t.cloud, addr.Center, node.Singletons())
		if err != nil {
			return 0, 0, err
		}
		for _, d := range dists {
			if d > radius {
				radius = d
			}
		}
		coverCount += uint64(len(node.Singletons()))
	}

	if !node.IsLeaf() {
		nestedScale, children, _ := node.Children()
		selfAddr := Address{Scale: nestedScale, Center: addr.Center}
		selfRadius, selfCount, err := t.finalizeNode(selfAddr)
		if err != nil {
			return 0, 0, err
		}
		coverCount += selfCount
		if selfRadius > radius {
			radius = selfRadius
		}

		for _, childAddr := range children {
			childRadius, childCount, err := t.finalizeNode(childAddr)
			if err != nil {
				return 0, 0, err
			}
			coverCount += childCount
			dists, err := distancesFrom(t.cloud, addr.Center, []PointIndex{childAddr.Center})
			if err != nil {
				return 0, 0, err
			}
			if reach := dists[0] + childRadius; reach > radius {
				radius = reach
			}
		}
	}

	if err := node.UpdateLabelSummary(t.cloud); err != nil {
		return 0, 0, err
	}

	bound := math.Pow(t.params.Base, float64(addr.Scale))
	buildInvariant(radius <= bound+1e-9, "node %+v radius %.6f exceeds covering bound %.6f", addr, radius, bound)
	scaleRadius := math.Pow(t.params.Base, float64(addr.Scale-1))
	buildInvariant(node.CheckSeparation(scaleRadius, t.cloud), "node %+v violates separation at scale radius %.6f", addr, scaleRadius)

	node.SetRadius(radius)
	node.SetCoverCount(coverCount)
	return radius, coverCount, nil
}

// publish calls Refresh on every layer as a single barrier, per the
// tree-level publish discipline of SPEC_FULL.md §5.
func (t *Tree) publish() {
	for _, l := range t.layers {
		l.Refresh()
	}
}
