// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments tree construction and queries. Unlike the teacher's
// use of client_golang as a PromQL query client, a cover tree has no remote
// time-series backend to query against, so this side of the library is
// exercised instead: direct in-process instrumentation, registered with
// the default Prometheus registry at package init via promauto.
var (
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "covertree",
		Name:      "build_duration_seconds",
		Help:      "Wall-clock time spent in Tree.Build.",
		Buckets:   prometheus.DefBuckets,
	})
	buildNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "covertree",
		Name:      "nodes_per_layer",
		Help:      "Node count of the most recently built tree, by scale index.",
	}, []string{"scale"})
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "covertree",
		Name:      "query_duration_seconds",
		Help:      "Wall-clock time spent per query kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
	queryFrontierLen = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "covertree",
		Name:      "query_frontier_nodes",
		Help:      "Number of frontier nodes visited per completed query.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// recordBuild updates the build-side metrics after a successful Build.
func recordBuild(elapsed time.Duration, summary TreeSummary) {
	buildDuration.Observe(elapsed.Seconds())
	buildNodes.Reset()
	for scale, n := range summary.NodesPerLayer {
		buildNodes.WithLabelValues(strconv.Itoa(int(scale))).Set(float64(n))
	}
}

// recordQuery updates the query-side metrics after a completed Knn or
// RoutingKnn call. Path calls are not recorded.
func recordQuery(kind string, elapsed time.Duration, frontierNodesVisited int) {
	queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	queryFrontierLen.Observe(float64(frontierNodesVisited))
}
