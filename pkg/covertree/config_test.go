// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import "testing"

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	raw := []byte(`{
		"base": 1.5,
		"min-singleton-count": 2,
		"min-scale": -20,
		"partition-strategy": "nearest_child"
	}`)
	params, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if params.Base != 1.5 || params.MinSingletonCount != 2 || params.MinScale != -20 {
		t.Errorf("parsed params = %+v, want base=1.5 min-singleton-count=2 min-scale=-20", params)
	}
	if params.PartitionStrategy != NearestChild {
		t.Errorf("PartitionStrategy = %v, want NearestChild", params.PartitionStrategy)
	}
}

func TestValidateRejectsBaseAtOrBelowOne(t *testing.T) {
	raw := []byte(`{
		"base": 1.0,
		"min-singleton-count": 1,
		"min-scale": -20,
		"partition-strategy": "first_covering"
	}`)
	if _, err := Validate(raw); err == nil {
		t.Error("base == 1.0 should fail schema validation (exclusiveMinimum)")
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	raw := []byte(`{"base": 1.3, "min-scale": -20, "partition-strategy": "first_covering"}`)
	if _, err := Validate(raw); err == nil {
		t.Error("missing min-singleton-count should fail schema validation")
	}
}

func TestValidateRejectsUnknownPartitionStrategy(t *testing.T) {
	raw := []byte(`{
		"base": 1.3,
		"min-singleton-count": 1,
		"min-scale": -20,
		"partition-strategy": "round_robin"
	}`)
	if _, err := Validate(raw); err == nil {
		t.Error("unknown partition-strategy should fail schema enum validation")
	}
}
