// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func testParams() Parameters {
	return Parameters{
		Base:                  1.3,
		MinSingletonCount:     1,
		MinScale:              -30,
		PartitionStrategyName: "first_covering",
		PartitionStrategy:     FirstCovering,
	}
}

func randomCloud(t *testing.T, rng *rand.Rand, n, dim int) *SliceCloud {
	t.Helper()
	points := make([]float64, n*dim)
	for i := range points {
		points[i] = rng.Float64() * 10
	}
	cloud, err := NewSliceCloud(points, dim, nil)
	if err != nil {
		t.Fatalf("NewSliceCloud: %v", err)
	}
	return cloud
}

// TestRoutingKnnFullScenario covers scenario S5 end to end: a manually
// constructed routing node with a self-child and three explicit children,
// queried through Tree.RoutingKnn.
func TestRoutingKnnFullScenario(t *testing.T) {
	cloud := s4Cloud(t)

	root := NewNode(Address{Scale: 1, Center: 0})
	if err := root.InsertNestedChild(0); err != nil {
		t.Fatal(err)
	}
	for _, c := range []PointIndex{1, 2, 3} {
		if err := root.InsertChild(Address{Scale: -4, Center: c}); err != nil {
			t.Fatal(err)
		}
	}
	root.InsertSingletons([]PointIndex{4, 5, 6})

	selfChild := NewNode(Address{Scale: 0, Center: 0})
	child1 := NewNode(Address{Scale: -4, Center: 1})
	child2 := NewNode(Address{Scale: -4, Center: 2})
	child3 := NewNode(Address{Scale: -4, Center: 3})

	tree := NewTree(cloud, testParams())
	tree.root = Address{Scale: 1, Center: 0}
	tree.layer(1).Insert(0, root)
	tree.layer(0).Insert(0, selfChild)
	tree.layer(-4).Insert(1, child1)
	tree.layer(-4).Insert(2, child2)
	tree.layer(-4).Insert(3, child3)
	tree.publish()

	out, err := tree.RoutingKnn([]float64{0.494}, 5)
	if err != nil {
		t.Fatalf("RoutingKnn: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("result size = %d, want 5", len(out))
	}
	if out[0].Address.Center != 1 || out[1].Address.Center != 3 {
		t.Errorf("closest two addresses = %d, %d; want 1 then 3", out[0].Address.Center, out[1].Address.Center)
	}
}

func bruteForceKnn(cloud PointCloud, query []float64, k int) ([]NamedDistance, error) {
	n := cloud.Len()
	idx := make([]PointIndex, n)
	for i := range idx {
		idx[i] = PointIndex(i)
	}
	dists, err := cloud.DistancesToPoint(query, idx)
	if err != nil {
		return nil, err
	}
	out := make([]NamedDistance, n)
	for i := range idx {
		out[i] = NamedDistance{Distance: dists[i], Point: idx[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Point < out[j].Point
	})
	if k > len(out) {
		k = len(out)
	}
	return out[:k], nil
}

// TestKnnMatchesBruteForce is the property test of SPEC_FULL.md §8: for any
// query and k <= N, tree.Knn equals the first k of a brute-force sort.
func TestKnnMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 8; trial++ {
		n := 40 + trial*10
		dim := 3
		cloud := randomCloud(t, rng, n, dim)

		tree := NewTree(cloud, testParams())
		if err := tree.Build(); err != nil {
			t.Fatalf("Build: %v", err)
		}

		query := make([]float64, dim)
		for i := range query {
			query[i] = rng.Float64() * 10
		}
		k := 5

		got, err := tree.Knn(query, k)
		if err != nil {
			t.Fatalf("Knn: %v", err)
		}
		want, err := bruteForceKnn(cloud, query, k)
		if err != nil {
			t.Fatalf("bruteForceKnn: %v", err)
		}

		if len(got) != len(want) {
			t.Fatalf("trial %d: result size = %d, want %d", trial, len(got), len(want))
		}
		for i := range got {
			if got[i].Point != want[i].Point || math.Abs(got[i].Distance-want[i].Distance) > 1e-9 {
				t.Errorf("trial %d: result[%d] = %+v, want %+v", trial, i, got[i], want[i])
			}
		}
	}
}

// TestPathMonotonicScaleAndCovering is the property test of SPEC_FULL.md §8:
// Path returns a strictly scale-decreasing chain of covering ancestors.
func TestPathMonotonicScaleAndCovering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cloud := randomCloud(t, rng, 200, 4)
	tree := NewTree(cloud, testParams())
	if err := tree.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	query := []float64{5, 5, 5, 5}
	path, err := tree.Path(query)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(path) == 0 {
		t.Fatal("path should contain at least the root")
	}
	if path[0].Address != tree.RootAddress() {
		t.Errorf("path[0] = %+v, want root %+v", path[0].Address, tree.RootAddress())
	}
	for i := 1; i < len(path); i++ {
		if path[i].Address.Scale >= path[i-1].Address.Scale {
			t.Errorf("path scale did not strictly decrease at step %d: %d -> %d", i, path[i-1].Address.Scale, path[i].Address.Scale)
		}
	}
	for i, step := range path {
		bound := math.Pow(tree.Base(), float64(step.Address.Scale))
		if step.Distance > bound+1e-9 {
			t.Errorf("path step %d distance %v exceeds covering bound %v at scale %d", i, step.Distance, bound, step.Address.Scale)
		}
	}
}

// TestTreeInvariants walks a built tree and checks the cover, separation,
// nesting, radius-bound, and cover-count invariants of SPEC_FULL.md §3.
func TestTreeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	cloud := randomCloud(t, rng, 150, 3)
	tree := NewTree(cloud, testParams())
	if err := tree.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := map[Address]bool{}
	var walk func(addr Address) (radius float64, count uint64)
	walk = func(addr Address) (float64, uint64) {
		if seen[addr] {
			t.Fatalf("address %+v reached twice: nesting/address uniqueness violated", addr)
		}
		seen[addr] = true

		var n *Node
		ok := tree.Layer(addr.Scale).Get(addr.Center, func(node *Node) { n = node })
		if !ok {
			t.Fatalf("address %+v missing from its layer", addr)
		}

		bound := math.Pow(tree.Base(), float64(addr.Scale))
		if n.Radius() > bound+1e-9 {
			t.Errorf("node %+v radius %v exceeds bound %v", addr, n.Radius(), bound)
		}

		if len(n.Singletons()) > 0 {
			dists, err := cloud.DistancesToPoint(mustPoint(t, cloud, addr.Center), n.Singletons())
			if err != nil {
				t.Fatalf("DistancesToPoint: %v", err)
			}
			for i, d := range dists {
				if d > bound+1e-9 {
					t.Errorf("singleton %d of node %+v at distance %v exceeds covering bound %v", n.Singletons()[i], addr, d, bound)
				}
			}
		}

		count := uint64(1) + uint64(len(n.Singletons()))
		if nestedScale, children, has := n.Children(); has {
			scaleRadius := math.Pow(tree.Base(), float64(addr.Scale-1))
			if !n.CheckSeparation(scaleRadius, cloud) {
				t.Errorf("node %+v violates separation invariant at radius %v", addr, scaleRadius)
			}

			selfAddr := Address{Scale: nestedScale, Center: addr.Center}
			if nestedScale >= addr.Scale {
				t.Errorf("self-child of %+v has scale %d, want < %d", addr, nestedScale, addr.Scale)
			}
			_, selfCount := walk(selfAddr)
			count += selfCount

			for _, child := range children {
				_, childCount := walk(child)
				count += childCount
			}
		}

		if count != n.CoverCount() {
			t.Errorf("node %+v cover_count = %d, want %d", addr, n.CoverCount(), count)
		}
		return n.Radius(), count
	}

	walk(tree.RootAddress())
}

func mustPoint(t *testing.T, cloud *SliceCloud, idx PointIndex) []float64 {
	t.Helper()
	p, err := cloud.at(idx)
	if err != nil {
		t.Fatalf("cloud.at: %v", err)
	}
	return p
}

func TestKnnRejectsMalformedQuery(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cloud := randomCloud(t, rng, 10, 2)
	tree := NewTree(cloud, testParams())
	if err := tree.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := tree.Knn([]float64{1, 1}, 0); err == nil {
		t.Error("k=0 should return an error")
	}
	if _, err := tree.Knn(nil, 3); err == nil {
		t.Error("empty query vector should return an error")
	}
}

func TestTreeSummary(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cloud := randomCloud(t, rng, 64, 2)
	tree := NewTree(cloud, testParams())
	if err := tree.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := tree.Summary()
	if s.Depth == 0 {
		t.Error("depth should be positive for a non-trivial cloud")
	}
	total := 0
	for _, n := range s.NodesPerLayer {
		total += n
	}
	if total == 0 {
		t.Error("expected at least one node across all layers")
	}
}
