// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"math"
	"math/rand"
	"sort"
)

// categoricalPluginKey identifies the Categorical plugin's slot on a node.
const categoricalPluginKey = "categorical"

// childCount is one entry of a Categorical's child population, sorted by
// address within the owning Categorical.
type childCount struct {
	addr   Address
	weight float64
}

// Categorical is a per-node categorical distribution over a node's
// children plus a "singleton" outcome (the node's own direct points, or
// for a leaf, its own center). It is the plugin framework's concrete
// example plugin, grounded on SPEC_FULL.md §4.6.
type Categorical struct {
	childCounts    []childCount // sorted by address
	singletonCount float64
}

// NewCategorical returns an empty distribution.
func NewCategorical() *Categorical {
	return &Categorical{}
}

// Total is the sum of all recorded weight, singleton and children alike.
func (c *Categorical) Total() float64 {
	total := c.singletonCount
	for _, e := range c.childCounts {
		total += e.weight
	}
	return total
}

// ProbVector returns the normalized per-child weights and singleton
// probability. ok is false iff Total() == 0.
func (c *Categorical) ProbVector() (children []NamedWeight, singletonProb float64, ok bool) {
	total := c.Total()
	if total == 0 {
		return nil, 0, false
	}
	children = make([]NamedWeight, len(c.childCounts))
	for i, e := range c.childCounts {
		children[i] = NamedWeight{Address: e.addr, Weight: e.weight / total}
	}
	return children, c.singletonCount / total, true
}

// NamedWeight pairs a child address with its (possibly normalized) weight.
type NamedWeight struct {
	Address Address
	Weight  float64
}

func (c *Categorical) find(addr Address) (int, bool) {
	i := sort.Search(len(c.childCounts), func(i int) bool {
		return !c.childCounts[i].addr.Less(addr)
	})
	if i < len(c.childCounts) && c.childCounts[i].addr == addr {
		return i, true
	}
	return i, false
}

// LnPdf returns ln(weight/total) for the entry named by addr (the
// singleton outcome if addr is nil), -Inf if that entry is unobserved
// (weight 0, but total > 0), or ok=false if Total() == 0.
func (c *Categorical) LnPdf(addr *Address) (float64, bool) {
	total := c.Total()
	if total == 0 {
		return 0, false
	}
	var weight float64
	if addr == nil {
		weight = c.singletonCount
	} else if i, found := c.find(*addr); found {
		weight = c.childCounts[i].weight
	}
	if weight == 0 {
		return math.Inf(-1), true
	}
	return math.Log(weight) - math.Log(total), true
}

// Sample draws an outcome proportional to weight: a child address, or nil
// for the singleton outcome. ok is false iff Total() == 0.
//
// The reference implementation this is ported from computes
// `sum = total() as usize`, truncating fractional weights before sampling
// — flagged as a bug in SPEC_FULL.md §9. This implementation instead draws
// a uniform float64 in [0, total) and walks the cumulative distribution,
// so fractional weights are respected exactly.
func (c *Categorical) Sample(rng *rand.Rand) (addr *Address, ok bool) {
	total := c.Total()
	if total == 0 {
		return nil, false
	}
	draw := rng.Float64() * total
	if draw < c.singletonCount {
		return nil, true
	}
	cum := c.singletonCount
	for _, e := range c.childCounts {
		cum += e.weight
		if draw < cum {
			a := e.addr
			return &a, true
		}
	}
	// Floating point rounding may leave draw >= cum by an epsilon; fall
	// back to the last child rather than panicking.
	if len(c.childCounts) > 0 {
		a := c.childCounts[len(c.childCounts)-1].addr
		return &a, true
	}
	return nil, true
}

// KLDivergence computes Σ p_i (ln p_i − ln q_i) over the union of c's and
// other's supports. Returns ok=false if either distribution is empty.
//
// The reference implementation zips self.child_counts and other.child_
// counts and asserts address equality at each step, which silently
// computes the wrong answer whenever the two supports differ — flagged as
// a bug in SPEC_FULL.md §9. This implementation instead walks the sorted
// union of addresses (including the singleton slot), treating an address
// absent from c as contributing 0 and an address absent from other as
// making the whole divergence undefined.
func (c *Categorical) KLDivergence(other *Categorical) (float64, bool) {
	pTotal, qTotal := c.Total(), other.Total()
	if pTotal == 0 || qTotal == 0 {
		return 0, false
	}

	addrs := unionAddresses(c.childCounts, other.childCounts)
	var sum float64

	// Singleton slot.
	p := c.singletonCount / pTotal
	if p > 0 {
		if qTotal == 0 {
			return 0, false
		}
		q := other.singletonCount / qTotal
		if q == 0 {
			return 0, false
		}
		sum += p * (math.Log(p) - math.Log(q))
	}

	for _, addr := range addrs {
		var pw float64
		if i, found := c.find(addr); found {
			pw = c.childCounts[i].weight
		}
		p := pw / pTotal
		if p == 0 {
			continue
		}
		i, found := other.find(addr)
		if !found {
			return 0, false
		}
		q := other.childCounts[i].weight / qTotal
		if q == 0 {
			return 0, false
		}
		sum += p * (math.Log(p) - math.Log(q))
	}
	return sum, true
}

func unionAddresses(a, b []childCount) []Address {
	seen := make(map[Address]struct{}, len(a)+len(b))
	out := make([]Address, 0, len(a)+len(b))
	for _, e := range a {
		if _, ok := seen[e.addr]; !ok {
			seen[e.addr] = struct{}{}
			out = append(out, e.addr)
		}
	}
	for _, e := range b {
		if _, ok := seen[e.addr]; !ok {
			seen[e.addr] = struct{}{}
			out = append(out, e.addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Merge additively combines other into c.
func (c *Categorical) Merge(other *Categorical) {
	c.singletonCount += other.singletonCount
	for _, e := range other.childCounts {
		c.AddChildPop(&e.addr, e.weight)
	}
}

// AddChildPop adds count to the weight of the entry named by addr (the
// singleton outcome if addr is nil), inserting a new sorted entry if
// necessary.
func (c *Categorical) AddChildPop(addr *Address, count float64) {
	if addr == nil {
		c.singletonCount += count
		return
	}
	i, found := c.find(*addr)
	if found {
		c.childCounts[i].weight += count
		return
	}
	c.childCounts = append(c.childCounts, childCount{})
	copy(c.childCounts[i+1:], c.childCounts[i:])
	c.childCounts[i] = childCount{addr: *addr, weight: count}
}

// RemoveChildPop subtracts count from the weight of the entry named by
// addr, saturating at zero rather than going negative.
func (c *Categorical) RemoveChildPop(addr *Address, count float64) {
	if addr == nil {
		c.singletonCount = math.Max(0, c.singletonCount-count)
		return
	}
	i, found := c.find(*addr)
	if !found {
		return
	}
	c.childCounts[i].weight = math.Max(0, c.childCounts[i].weight-count)
}

// CategoricalPlugin computes the Categorical plugin bottom-up: a routing
// node's singleton_count is len(singletons); each child's weight is the
// child's own Categorical.Total() read through reader. A leaf's singleton_
// count is len(singletons)+1, counting the node's own center point.
type CategoricalPlugin struct{}

func (CategoricalPlugin) Key() string { return categoricalPluginKey }

func (CategoricalPlugin) ComputeNodeValue(node *Node, reader *TreeReader) (any, bool) {
	cat := NewCategorical()
	if node.IsLeaf() {
		cat.singletonCount = float64(len(node.Singletons()) + 1)
		return cat, true
	}

	cat.singletonCount = float64(len(node.Singletons()))
	nestedScale, children, _ := node.Children()
	selfAddr := Address{Scale: nestedScale, Center: node.Address().Center}
	if total, ok := childTotal(reader, selfAddr); ok {
		cat.AddChildPop(&selfAddr, total)
	}
	for _, addr := range children {
		a := addr
		if total, ok := childTotal(reader, a); ok {
			cat.AddChildPop(&a, total)
		}
	}
	return cat, true
}

func childTotal(reader *TreeReader, addr Address) (float64, bool) {
	val, ok := reader.GetNodePlugin(addr, categoricalPluginKey)
	if !ok {
		return 0, false
	}
	cat, ok := val.(*Categorical)
	if !ok {
		return 0, false
	}
	return cat.Total(), true
}
