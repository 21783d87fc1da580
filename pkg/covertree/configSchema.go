// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

const configSchema = `{
  "type": "object",
  "description": "Build-time parameters for a cover tree.",
  "properties": {
    "base": {
      "description": "Scale base; covering radius at scale s is base^s.",
      "type": "number",
      "exclusiveMinimum": 1.0
    },
    "min-singleton-count": {
      "description": "Point-count threshold at or below which a node stops splitting and becomes a leaf.",
      "type": "integer",
      "minimum": 1
    },
    "min-scale": {
      "description": "Smallest scale index the builder will split down to, regardless of remaining point count.",
      "type": "integer"
    },
    "max-scale-hint": {
      "description": "If set, fixes the root's scale instead of deriving it from the cloud's observed diameter.",
      "type": "integer"
    },
    "partition-strategy": {
      "description": "How unassigned points are handed to candidate children during a build.",
      "type": "string",
      "enum": ["first_covering", "nearest_child"]
    }
  },
  "required": ["base", "min-singleton-count", "min-scale", "partition-strategy"]
}`
