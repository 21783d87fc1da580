// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package covertree: config.go defines the tree's build-time parameters
// and their JSON-schema validation, mirroring pkg/metricstore/config.go's
// nested-struct-plus-package-singleton convention.
package covertree

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Parameters are the tree's build-time dials, enumerated exhaustively per
// SPEC_FULL.md §9: no other configuration surface exists.
type Parameters struct {
	// Base is the scale base (>1.0); covering radius at scale s is
	// Base^s. Typically 1.3-2.0.
	Base float64 `json:"base"`
	// MinSingletonCount is the point-count threshold at or below which a
	// node stops splitting and becomes a leaf.
	MinSingletonCount int `json:"min-singleton-count"`
	// MinScale is the smallest scale index the builder will split down
	// to, regardless of remaining point count.
	MinScale int32 `json:"min-scale"`
	// MaxScaleHint, if set, fixes the root's scale instead of deriving it
	// from the cloud's observed diameter.
	MaxScaleHint *int32 `json:"max-scale-hint,omitempty"`
	// PartitionStrategy controls how unassigned points are handed to
	// candidate children during a build.
	PartitionStrategy PartitionStrategy `json:"-"`
	// PartitionStrategyName is the JSON-facing string form of
	// PartitionStrategy ("first_covering" or "nearest_child").
	PartitionStrategyName string `json:"partition-strategy"`
}

// DefaultParameters mirrors the teacher's package-level Keys singleton
// convention: sane defaults, and the base that Validate decodes a config
// over.
var DefaultParameters = Parameters{
	Base:                  1.3,
	MinSingletonCount:     1,
	MinScale:              -30,
	PartitionStrategyName: "first_covering",
}

// Validate checks raw against the build-time parameter JSON schema and,
// on success, unmarshals it into a Parameters value with
// PartitionStrategy resolved from PartitionStrategyName.
func Validate(raw []byte) (Parameters, error) {
	schema, err := jsonschema.CompileString("covertree-parameters.json", configSchema)
	if err != nil {
		return Parameters{}, fmt.Errorf("[COVERTREE]> compiling config schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Parameters{}, fmt.Errorf("[COVERTREE]> parsing config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Parameters{}, fmt.Errorf("[COVERTREE]> invalid config: %w", err)
	}

	params := DefaultParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return Parameters{}, fmt.Errorf("[COVERTREE]> decoding config: %w", err)
	}
	switch params.PartitionStrategyName {
	case "", "first_covering":
		params.PartitionStrategy = FirstCovering
	case "nearest_child":
		params.PartitionStrategy = NearestChild
	default:
		return Parameters{}, fmt.Errorf("[COVERTREE]> unknown partition-strategy %q", params.PartitionStrategyName)
	}
	return params, nil
}
