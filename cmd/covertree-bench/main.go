// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command covertree-bench builds a cover tree over a synthetic point cloud
// and reports k-NN query latency, mirroring the flag/config/gops
// conventions of cmd/cc-backend.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/comath/covertree/pkg/covertree"
	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
)

func main() {
	var flagGops bool
	var flagConfigFile string
	var flagPoints, flagDim, flagClusters, flagQueries, flagK int
	var flagSeed int64

	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagConfigFile, "config", "./covertree.json", "Overwrite the default build parameters by those specified in `covertree.json`")
	flag.IntVar(&flagPoints, "points", 5000, "Number of synthetic points to generate")
	flag.IntVar(&flagDim, "dim", 16, "Dimensionality of each synthetic point")
	flag.IntVar(&flagClusters, "clusters", 8, "Number of Gaussian clusters in the synthetic cloud")
	flag.IntVar(&flagQueries, "queries", 200, "Number of random k-NN queries to run")
	flag.IntVar(&flagK, "k", 10, "k for each benchmark query")
	flag.Int64Var(&flagSeed, "seed", 1, "PRNG seed for cloud generation and queries")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Abortf("[COVERTREE-BENCH]> gops/agent.Listen failed: %s\n", err.Error())
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Abortf("[COVERTREE-BENCH]> loading .env failed: %s\n", err.Error())
	}

	params := covertree.DefaultParameters
	if raw, err := os.ReadFile(flagConfigFile); err == nil {
		validated, err := covertree.Validate(raw)
		if err != nil {
			cclog.Abortf("[COVERTREE-BENCH]> invalid config %s: %s\n", flagConfigFile, err.Error())
		}
		params = validated
	} else if !os.IsNotExist(err) {
		cclog.Abortf("[COVERTREE-BENCH]> reading config %s: %s\n", flagConfigFile, err.Error())
	}

	rng := rand.New(rand.NewSource(flagSeed))
	cloud, err := generateGaussianCloud(rng, flagPoints, flagDim, flagClusters)
	if err != nil {
		cclog.Abortf("[COVERTREE-BENCH]> generating synthetic cloud: %s\n", err.Error())
	}

	tree := covertree.NewTree(cloud, params)
	if err := tree.Build(); err != nil {
		cclog.Abortf("[COVERTREE-BENCH]> build failed: %s\n", err.Error())
	}

	summary := tree.Summary()
	fmt.Printf("built tree: depth=%d base=%.3f scales=[%d,%d] nodes=%d\n",
		summary.Depth, summary.Base, summary.MinScale, summary.MaxScale, totalNodes(summary))

	latencies := make([]time.Duration, 0, flagQueries)
	for i := 0; i < flagQueries; i++ {
		query := randomPoint(rng, flagDim)
		start := time.Now()
		if _, err := tree.Knn(query, flagK); err != nil {
			cclog.Abortf("[COVERTREE-BENCH]> query %d failed: %s\n", i, err.Error())
		}
		latencies = append(latencies, time.Since(start))
	}

	reportLatencies(latencies)
}

func totalNodes(s covertree.TreeSummary) int {
	n := 0
	for _, c := range s.NodesPerLayer {
		n += c
	}
	return n
}

func reportLatencies(latencies []time.Duration) {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(p * float64(len(latencies)-1))
		return latencies[idx]
	}
	fmt.Printf("query latency: p50=%s p90=%s p99=%s\n", pct(0.5), pct(0.9), pct(0.99))
}

func randomPoint(rng *rand.Rand, dim int) []float64 {
	p := make([]float64, dim)
	for i := range p {
		p[i] = rng.NormFloat64()
	}
	return p
}

// generateGaussianCloud builds a SliceCloud of n points in dim dimensions,
// drawn from `clusters` randomly placed Gaussian blobs, labeled by cluster.
func generateGaussianCloud(rng *rand.Rand, n, dim, clusters int) (*covertree.SliceCloud, error) {
	if clusters < 1 {
		clusters = 1
	}
	centers := make([][]float64, clusters)
	for c := range centers {
		center := make([]float64, dim)
		for d := range center {
			center[d] = rng.Float64()*40 - 20
		}
		centers[c] = center
	}

	points := make([]float64, 0, n*dim)
	labels := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := i % clusters
		for d := 0; d < dim; d++ {
			points = append(points, centers[c][d]+rng.NormFloat64())
		}
		labels = append(labels, fmt.Sprintf("cluster-%d", c))
	}

	return covertree.NewSliceCloud(points, dim, labels)
}
