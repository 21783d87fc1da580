// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import "math"

// LabelSummary is an aggregate over a set of points' labels. The concrete
// shape is a free parameter of the cloud implementation; this module only
// requires that it be comparable enough for tests.
type LabelSummary struct {
	// Counts maps a label to how many of the summarized points carry it.
	Counts map[string]int
}

// PointCloud is the abstract capability this index is built over: a fixed
// set of N points in some metric space. It is read-only after construction;
// the metric itself is a property of the cloud, not a parameter passed at
// query time. Loaders that materialize a cloud from disk (memory-mapped
// arrays, CSV, the YAML descriptor of SPEC_FULL.md §6) are external
// collaborators and not implemented here.
type PointCloud interface {
	// Len returns the number of points in the cloud.
	Len() int
	// DistancesToPoint returns the distance from query to each point in
	// idx, in order. Returns ErrPointCloud if any index is out of range.
	DistancesToPoint(query []float64, idx []PointIndex) ([]float64, error)
	// Adjacency returns the pairwise distance matrix among idx, used by
	// invariant checks (row i, column j is the distance between idx[i]
	// and idx[j]).
	Adjacency(idx []PointIndex) ([][]float64, error)
	// LabelSummary aggregates the labels of idx. Returns the zero value
	// if the cloud carries no labels.
	LabelSummary(idx []PointIndex) (LabelSummary, error)
}

// SliceCloud is the reference in-RAM PointCloud: a dense slice of equal-
// length float64 vectors under the Euclidean (L2) metric, with optional
// parallel string labels. It is the implementation this module's tests and
// benchmarks use directly; a real deployment plugs in whatever loader
// populates its own PointCloud implementation instead.
type SliceCloud struct {
	points []float64 // row-major, len == n*dim
	dim    int
	labels []string  // optional, len == n or nil
}

// NewSliceCloud builds a SliceCloud from row-major point data with the
// given dimensionality. labels may be nil.
func NewSliceCloud(points []float64, dim int, labels []string) (*SliceCloud, error) {
	if dim <= 0 {
		return nil, newTreeError(ErrPointCloud, "dimension must be positive, got %d", dim)
	}
	if len(points)%dim != 0 {
		return nil, newTreeError(ErrPointCloud, "point data length %d not a multiple of dim %d", len(points), dim)
	}
	n := len(points) / dim
	if labels != nil && len(labels) != n {
		return nil, newTreeError(ErrPointCloud, "label count %d does not match point count %d", len(labels), n)
	}
	return &SliceCloud{points: points, dim: dim, labels: labels}, nil
}

func (c *SliceCloud) Len() int { return len(c.points) / c.dim }

func (c *SliceCloud) at(i PointIndex) ([]float64, error) {
	if int(i) < 0 || int(i) >= c.Len() {
		return nil, newTreeError(ErrPointCloud, "point index %d out of range [0,%d)", i, c.Len())
	}
	off := int(i) * c.dim
	return c.points[off : off+c.dim], nil
}

func (c *SliceCloud) DistancesToPoint(query []float64, idx []PointIndex) ([]float64, error) {
	if len(query) != c.dim {
		return nil, newTreeError(ErrPointCloud, "query dimension %d does not match cloud dimension %d", len(query), c.dim)
	}
	out := make([]float64, len(idx))
	for i, pi := range idx {
		p, err := c.at(pi)
		if err != nil {
			return nil, err
		}
		out[i] = euclidean(query, p)
	}
	return out, nil
}

func (c *SliceCloud) Adjacency(idx []PointIndex) ([][]float64, error) {
	pts := make([][]float64, len(idx))
	for i, pi := range idx {
		p, err := c.at(pi)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	out := make([][]float64, len(idx))
	for i := range idx {
		out[i] = make([]float64, len(idx))
		for j := range idx {
			out[i][j] = euclidean(pts[i], pts[j])
		}
	}
	return out, nil
}

func (c *SliceCloud) LabelSummary(idx []PointIndex) (LabelSummary, error) {
	if c.labels == nil {
		return LabelSummary{}, nil
	}
	counts := make(map[string]int)
	for _, pi := range idx {
		if int(pi) < 0 || int(pi) >= len(c.labels) {
			return LabelSummary{}, newTreeError(ErrPointCloud, "point index %d out of range [0,%d)", pi, len(c.labels))
		}
		counts[c.labels[pi]]++
	}
	return LabelSummary{Counts: counts}, nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
