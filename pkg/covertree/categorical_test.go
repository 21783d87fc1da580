// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"math/rand"
	"testing"
)

const floatTol = 1e-4

func closeEnough(a, b float64) bool { return math.Abs(a-b) < floatTol }

// ─── S1: empty categorical ──────────────────────────────────────────────────

func TestCategoricalEmpty(t *testing.T) {
	c := NewCategorical()

	if _, ok := c.LnPdf(nil); ok {
		t.Error("LnPdf(nil) on empty distribution should be ok=false")
	}
	addr := Address{Scale: 0, Center: 0}
	if _, ok := c.LnPdf(&addr); ok {
		t.Error("LnPdf(addr) on empty distribution should be ok=false")
	}
	if _, ok := c.KLDivergence(c); ok {
		t.Error("KLDivergence(self) on empty distribution should be ok=false")
	}
}

// ─── S2: singleton categorical ──────────────────────────────────────────────

func TestCategoricalSingleton(t *testing.T) {
	c := NewCategorical()
	c.AddChildPop(nil, 5.0)

	ln, ok := c.LnPdf(nil)
	if !ok || !closeEnough(ln, 0.0) {
		t.Errorf("LnPdf(nil) = %v, ok=%v; want 0.0, true", ln, ok)
	}

	addr := Address{Scale: 0, Center: 0}
	ln, ok = c.LnPdf(&addr)
	if !ok || !math.IsInf(ln, -1) {
		t.Errorf("LnPdf(unobserved) = %v, ok=%v; want -Inf, true", ln, ok)
	}

	kl, ok := c.KLDivergence(c)
	if !ok || !closeEnough(kl, 0.0) {
		t.Errorf("KLDivergence(self) = %v, ok=%v; want ~0.0, true", kl, ok)
	}
}

// ─── S3: mixed categorical ───────────────────────────────────────────────────

func TestCategoricalMixed(t *testing.T) {
	addr := Address{Scale: 0, Center: 0}

	a := NewCategorical()
	a.AddChildPop(nil, 6)
	a.AddChildPop(&addr, 6)

	b := NewCategorical()
	b.AddChildPop(nil, 4)
	b.AddChildPop(&addr, 8)

	lnA, ok := a.LnPdf(nil)
	if !ok || !closeEnough(lnA, math.Log(0.5)) {
		t.Errorf("A.LnPdf(nil) = %v; want ln(0.5)", lnA)
	}

	lnB, ok := b.LnPdf(&addr)
	if !ok || !closeEnough(lnB, math.Log(2.0/3.0)) {
		t.Errorf("B.LnPdf(addr) = %v; want ln(2/3)", lnB)
	}

	klAB, ok := a.KLDivergence(b)
	if !ok || !closeEnough(klAB, 0.05889) {
		t.Errorf("KL(A||B) = %v; want ~0.05889", klAB)
	}

	klBA, ok := b.KLDivergence(a)
	if !ok || !closeEnough(klBA, 0.05663) {
		t.Errorf("KL(B||A) = %v; want ~0.05663", klBA)
	}
}

// ─── Probability vector ─────────────────────────────────────────────────────

func TestCategoricalProbVectorSumsToOne(t *testing.T) {
	addrs := []Address{{Scale: 0, Center: 1}, {Scale: 0, Center: 2}, {Scale: -1, Center: 3}}
	c := NewCategorical()
	c.AddChildPop(nil, 3)
	for i, a := range addrs {
		c.AddChildPop(&a, float64(i+1)*2)
	}

	children, singletonProb, ok := c.ProbVector()
	if !ok {
		t.Fatal("ProbVector on non-empty distribution should be ok=true")
	}
	sum := singletonProb
	for _, w := range children {
		sum += w.Weight
	}
	if !closeEnough(sum, 1.0) {
		t.Errorf("prob vector sums to %v, want ~1.0", sum)
	}
}

func TestCategoricalProbVectorEmpty(t *testing.T) {
	c := NewCategorical()
	if _, _, ok := c.ProbVector(); ok {
		t.Error("ProbVector on empty distribution should be ok=false")
	}
}

// ─── KL divergence with mismatched supports ─────────────────────────────────

func TestCategoricalKLDivergenceMismatchedSupport(t *testing.T) {
	addrOnlyInA := Address{Scale: 0, Center: 1}
	addrOnlyInB := Address{Scale: 0, Center: 2}

	a := NewCategorical()
	a.AddChildPop(nil, 1)
	a.AddChildPop(&addrOnlyInA, 1)

	b := NewCategorical()
	b.AddChildPop(nil, 1)
	b.AddChildPop(&addrOnlyInB, 1)

	// a has mass on addrOnlyInA, which b never observed: undefined KL.
	if _, ok := a.KLDivergence(b); ok {
		t.Error("KLDivergence should be ok=false when self has mass b never observed")
	}

	// b has no mass on addrOnlyInA, so that entry contributes nothing to
	// KL(b||a); but b has mass on addrOnlyInB, which a never observed, so
	// KL(b||a) is undefined as well.
	if _, ok := b.KLDivergence(a); ok {
		t.Error("KLDivergence should be ok=false when self has mass other never observed (symmetric case)")
	}
}

// ─── Sample ──────────────────────────────────────────────────────────────────

func TestCategoricalSampleRespectsFractionalWeights(t *testing.T) {
	c := NewCategorical()
	c.AddChildPop(nil, 0.5)
	addr := Address{Scale: 0, Center: 0}
	c.AddChildPop(&addr, 0.5)

	rng := rand.New(rand.NewSource(7))
	singletons, children := 0, 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		a, ok := c.Sample(rng)
		if !ok {
			t.Fatal("Sample on non-empty distribution should be ok=true")
		}
		if a == nil {
			singletons++
		} else {
			children++
		}
	}
	ratio := float64(singletons) / float64(trials)
	if ratio < 0.4 || ratio > 0.6 {
		t.Errorf("singleton sample ratio = %v, want close to 0.5", ratio)
	}
}

func TestCategoricalSampleEmpty(t *testing.T) {
	c := NewCategorical()
	rng := rand.New(rand.NewSource(1))
	if _, ok := c.Sample(rng); ok {
		t.Error("Sample on empty distribution should be ok=false")
	}
}

// ─── Merge, AddChildPop, RemoveChildPop ─────────────────────────────────────

func TestCategoricalMerge(t *testing.T) {
	addr := Address{Scale: 0, Center: 0}
	a := NewCategorical()
	a.AddChildPop(nil, 1)
	a.AddChildPop(&addr, 2)

	b := NewCategorical()
	b.AddChildPop(nil, 3)
	b.AddChildPop(&addr, 4)

	a.Merge(b)
	if !closeEnough(a.Total(), 10) {
		t.Errorf("merged total = %v, want 10", a.Total())
	}
}

func TestCategoricalRemoveChildPopSaturatesAtZero(t *testing.T) {
	addr := Address{Scale: 0, Center: 0}
	c := NewCategorical()
	c.AddChildPop(&addr, 2)
	c.RemoveChildPop(&addr, 10)

	i, found := c.find(addr)
	if !found {
		t.Fatal("expected entry to still be present after saturating removal")
	}
	if c.childCounts[i].weight != 0 {
		t.Errorf("weight after over-removal = %v, want 0", c.childCounts[i].weight)
	}
}

func TestCategoricalRemoveSingletonSaturatesAtZero(t *testing.T) {
	c := NewCategorical()
	c.AddChildPop(nil, 2)
	c.RemoveChildPop(nil, 10)
	if c.singletonCount != 0 {
		t.Errorf("singletonCount after over-removal = %v, want 0", c.singletonCount)
	}
}
