// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/linkedin/goavro/v2"
)

// wireSchema is the Avro record schema backing CoverTreeProto/LayerProto/
// NodeProto (SPEC_FULL.md §6). Field names are the wire form; Go-facing
// names are translated in Encode/Decode below.
const wireSchema = `{
  "type": "record",
  "name": "CoverTreeProto",
  "namespace": "covertree",
  "fields": [
    {"name": "parameters", "type": {
      "type": "record", "name": "Parameters", "fields": [
        {"name": "base", "type": "double"},
        {"name": "min_singleton_count", "type": "int"},
        {"name": "min_scale", "type": "int"},
        {"name": "max_scale_hint", "type": ["null", "int"], "default": null},
        {"name": "partition_strategy", "type": "string"}
      ]
    }},
    {"name": "root_scale", "type": "int"},
    {"name": "root_center_index", "type": "long"},
    {"name": "layers", "type": {"type": "array", "items": {
      "type": "record", "name": "LayerProto", "fields": [
        {"name": "scale_index", "type": "int"},
        {"name": "nodes", "type": {"type": "array", "items": {
          "type": "record", "name": "NodeProto", "fields": [
            {"name": "center_index", "type": "long"},
            {"name": "radius", "type": "float"},
            {"name": "cover_count", "type": "long"},
            {"name": "is_leaf", "type": "boolean"},
            {"name": "nested_scale_index", "type": ["null", "int"], "default": null},
            {"name": "children_scale_indexes", "type": {"type": "array", "items": "int"}},
            {"name": "children_point_indexes", "type": {"type": "array", "items": "long"}},
            {"name": "outlier_point_indexes", "type": {"type": "array", "items": "long"}}
          ]
        }}}
      ]
    }}}
  ]
}`

// Encode writes tree's structure to w as a single-record Avro Object
// Container File, deflate-compressed. Plugin state is not persisted; a
// loaded tree must have RecomputePlugins called on it before any plugin
// value is queried.
func Encode(t *Tree, w io.Writer) error {
	codec, err := goavro.NewCodec(wireSchema)
	if err != nil {
		return fmt.Errorf("[COVERTREE]> compiling wire schema: %w", err)
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("[COVERTREE]> creating OCF writer: %w", err)
	}

	record, err := encodeTree(t)
	if err != nil {
		return err
	}
	if err := writer.Append([]any{record}); err != nil {
		return fmt.Errorf("[COVERTREE]> appending tree record: %w", err)
	}
	return nil
}

func encodeTree(t *Tree) (map[string]any, error) {
	params := map[string]any{
		"base":                t.params.Base,
		"min_singleton_count": int32(t.params.MinSingletonCount),
		"min_scale":           t.params.MinScale,
		"max_scale_hint":      optionalInt(t.params.MaxScaleHint),
		"partition_strategy":  t.params.PartitionStrategyName,
	}

	scales := t.sortedScales()
	layers := make([]any, 0, len(scales))
	for _, scale := range scales {
		l := t.layers[scale]
		nodes := make([]any, 0, l.Len())
		l.ForEach(func(idx PointIndex, n *Node) {
			nodes = append(nodes, encodeNode(n))
		})
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].(map[string]any)["center_index"].(int64) < nodes[j].(map[string]any)["center_index"].(int64)
		})
		layers = append(layers, map[string]any{
			"scale_index": scale,
			"nodes":       nodes,
		})
	}

	return map[string]any{
		"parameters":        params,
		"root_scale":        t.root.Scale,
		"root_center_index": int64(t.root.Center),
		"layers":            layers,
	}, nil
}

func encodeNode(n *Node) map[string]any {
	outliers := make([]any, len(n.singletons))
	for i, p := range n.singletons {
		outliers[i] = int64(p)
	}

	var nestedScale any
	childScales := make([]any, 0)
	childPoints := make([]any, 0)
	if nestedScale2, addrs, ok := n.Children(); ok {
		nestedScale = map[string]any{"int": nestedScale2}
		for _, a := range addrs {
			childScales = append(childScales, a.Scale)
			childPoints = append(childPoints, int64(a.Center))
		}
	} else {
		nestedScale = nil
	}

	return map[string]any{
		"center_index":           int64(n.address.Center),
		"radius":                 float32(n.radius),
		"cover_count":            int64(n.coverCount),
		"is_leaf":                n.IsLeaf(),
		"nested_scale_index":     nestedScale,
		"children_scale_indexes": childScales,
		"children_point_indexes": childPoints,
		"outlier_point_indexes":  outliers,
	}
}

func optionalInt(v *int32) any {
	if v == nil {
		return nil
	}
	return map[string]any{"int": *v}
}

// Decode reconstructs a Tree over cloud from an Avro OCF stream written by
// Encode. The returned tree's plugin state is empty; call RecomputePlugins
// before relying on any plugin value.
func Decode(r io.Reader, cloud PointCloud) (*Tree, error) {
	reader, err := goavro.NewOCFReader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("[COVERTREE]> creating OCF reader: %w", err)
	}
	if !reader.Scan() {
		return nil, newTreeError(ErrMalformedQuery, "serialized stream contains no tree record")
	}
	rawRecord, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("[COVERTREE]> reading tree record: %w", err)
	}
	record, ok := rawRecord.(map[string]any)
	if !ok {
		return nil, newTreeError(ErrMalformedQuery, "serialized record has unexpected shape")
	}

	params, err := decodeParameters(record["parameters"].(map[string]any))
	if err != nil {
		return nil, err
	}

	t := NewTree(cloud, params)
	t.root = Address{
		Scale:  record["root_scale"].(int32),
		Center: PointIndex(record["root_center_index"].(int64)),
	}

	for _, rawLayer := range record["layers"].([]any) {
		layer := rawLayer.(map[string]any)
		scale := layer["scale_index"].(int32)
		l := t.layer(scale)
		for _, rawNode := range layer["nodes"].([]any) {
			nodeMap := rawNode.(map[string]any)
			n, err := decodeNode(scale, nodeMap)
			if err != nil {
				return nil, err
			}
			l.Insert(n.address.Center, n)
		}
	}
	t.publish()
	return t, nil
}

func decodeParameters(m map[string]any) (Parameters, error) {
	p := Parameters{
		Base:                  m["base"].(float64),
		MinSingletonCount:     int(m["min_singleton_count"].(int32)),
		MinScale:              m["min_scale"].(int32),
		PartitionStrategyName: m["partition_strategy"].(string),
	}
	if hint, ok := m["max_scale_hint"].(map[string]any); ok {
		v := hint["int"].(int32)
		p.MaxScaleHint = &v
	}
	switch p.PartitionStrategyName {
	case "", "first_covering":
		p.PartitionStrategy = FirstCovering
	case "nearest_child":
		p.PartitionStrategy = NearestChild
	default:
		return Parameters{}, newTreeError(ErrMalformedQuery, "unknown partition-strategy %q", p.PartitionStrategyName)
	}
	return p, nil
}

func decodeNode(scale int32, m map[string]any) (*Node, error) {
	n := NewNode(Address{Scale: scale, Center: PointIndex(m["center_index"].(int64))})
	n.radius = float64(m["radius"].(float32))
	n.coverCount = uint64(m["cover_count"].(int64))

	outliers := m["outlier_point_indexes"].([]any)
	if len(outliers) > 0 {
		idx := make([]PointIndex, len(outliers))
		for i, v := range outliers {
			idx[i] = PointIndex(v.(int64))
		}
		n.singletons = idx
	}

	if nested, ok := m["nested_scale_index"].(map[string]any); ok {
		nestedScale := nested["int"].(int32)
		if err := n.InsertNestedChild(nestedScale); err != nil {
			return nil, err
		}
		scales := m["children_scale_indexes"].([]any)
		points := m["children_point_indexes"].([]any)
		for i := range points {
			addr := Address{Scale: scales[i].(int32), Center: PointIndex(points[i].(int64))}
			if err := n.InsertChild(addr); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}
