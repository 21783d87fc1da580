// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math/rand"
	"testing"
)

func TestCategoricalPluginRootTotalCountsEveryPointOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 120
	cloud := randomCloud(t, rng, n, 3)
	tree := NewTree(cloud, testParams())
	if err := tree.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	tree.RecomputePlugins(CategoricalPlugin{})

	reader := tree.Reader()
	val, ok := reader.GetNodePlugin(tree.RootAddress(), categoricalPluginKey)
	if !ok {
		t.Fatal("expected a Categorical plugin value on the root")
	}
	cat, ok := val.(*Categorical)
	if !ok {
		t.Fatalf("plugin value has unexpected type %T", val)
	}

	// Every node's singleton_count/weight telescopes down to exactly one
	// contribution per physical point (a routing node's own center is only
	// ever counted once, at the leaf bottoming out its self-child chain),
	// so the root's total should equal the cloud's point count exactly.
	if cat.Total() != float64(n) {
		t.Errorf("root Categorical.Total() = %v, want cloud point count %d", cat.Total(), n)
	}
}

func TestCategoricalPluginLeafCountsOwnCenter(t *testing.T) {
	n := NewNode(Address{Scale: 0, Center: 0})
	n.InsertSingletons([]PointIndex{1, 2})

	plugin := CategoricalPlugin{}
	val, ok := plugin.ComputeNodeValue(n, nil)
	if !ok {
		t.Fatal("expected a computed value for a leaf")
	}
	cat := val.(*Categorical)
	if cat.Total() != 3 {
		t.Errorf("leaf Categorical.Total() = %v, want 3 (2 singletons + own center)", cat.Total())
	}
}
