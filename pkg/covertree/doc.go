// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package covertree implements an in-memory cover-tree index over a metric
// point cloud.
//
// # Architecture
//
// A tree is an ordered set of Layers, one per scale index. Each Layer maps a
// center point index to a Node and is single-writer/many-reader: the writer
// builds into a shadow copy and Refresh publishes it by an atomic pointer
// swap, so readers never block and never observe a partially built layer.
//
//	Tree
//	├─ Layer(scale_root) ── Node(root) ──┐
//	├─ Layer(scale_root-1)                │ self-child / children by address
//	│     ...                             │
//	└─ Layer(min_scale)                  ─┘
//
// Queries (Knn, RoutingKnn, Path) drive a QueryHeap: a bounded result heap
// plus a frontier min-heap ordered by a provable lower bound on the distance
// to a node's nearest descendant, so search prunes subtrees that cannot beat
// the current k-th candidate.
//
// Per-node derived statistics (e.g. a Categorical distribution over a node's
// children) are attached through the plugin framework: a bottom-up pass
// that computes a node's plugin value from its own state and its already-
// computed children, then stores it on the node.
package covertree
