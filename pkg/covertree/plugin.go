// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import "sync"

// Plugin attaches derived per-node state to a tree, recomputed whenever
// the tree's structure changes. ComputeNodeValue sees the node's own
// current state and a reader that can fetch already-computed plugin
// values of the node's children (lower scales are always computed first),
// and returns the value to attach, or ok=false to attach nothing.
type Plugin interface {
	// Key identifies this plugin's slot in a node's plugin map.
	Key() string
	// ComputeNodeValue derives this plugin's value for node from the
	// node's own fields and any already-computed child plugin values
	// reachable through reader.
	ComputeNodeValue(node *Node, reader *TreeReader) (value any, ok bool)
}

// pluginJob is one (node, value) pair computed for a given plugin and
// awaiting attachment.
type pluginJob struct {
	idx PointIndex
	val any
	ok  bool
}

// RecomputePlugins runs every given plugin bottom-up across the tree,
// lowest scale first, attaching each plugin's computed value to every
// node. Parallelism across nodes within one scale is safe because lower
// scales are already fully computed and frozen by the time a given scale
// is visited (see SPEC_FULL.md §5).
func (t *Tree) RecomputePlugins(plugins ...Plugin) {
	reader := t.Reader()
	for _, scale := range t.sortedScales() {
		layer := t.layers[scale]
		snap := layer.snapshot()
		centers := snap.centerIndices()

		for _, p := range plugins {
			jobs := make(chan PointIndex, len(centers))
			out := make(chan pluginJob, len(centers))
			workers := workerCount()

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for idx := range jobs {
						node, ok := snap.get(idx)
						if !ok {
							continue
						}
						val, ok := p.ComputeNodeValue(node, reader)
						out <- pluginJob{idx: idx, val: val, ok: ok}
					}
				}()
			}
			for _, c := range centers {
				jobs <- c
			}
			close(jobs)
			go func() {
				wg.Wait()
				close(out)
			}()

			for r := range out {
				if !r.ok {
					continue
				}
				layer.updatePlugin(r.idx, p.Key(), r.val)
			}
		}

		layer.refresh()
	}
}
