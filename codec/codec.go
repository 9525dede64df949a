// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package codec implements the Graph Codec: bidirectional translation
// between a graph.Graph and a structured document tree (spec §4.7,
// §6 persistence document). Reading a document file (JSON or YAML,
// chosen by extension) is done by cmd/graphscript; this package shapes
// the document tree and gives WireRecord its JSON and YAML encodings.
package codec

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/graph"
	"firefly-os.dev/graphscript/internal/catalogver"
)

// WireRecord is one entry in a NodeRecord's Wires array: exactly one
// of its fields is set, mirroring graph.Wire's three modes (spec
// §4.7 "Wire encodings"). It marshals as the spec's literal wire
// shape — null / string / {node,pin} object — not as a Go struct;
// see MarshalJSON/MarshalYAML.
//
//   - Unbound == true: null.
//   - Immediate != "": a string literal.
//   - Link != nil: an object with node and pin integers.
type WireRecord struct {
	Unbound   bool
	Immediate string
	Link      *LinkRecord
}

// LinkRecord is a wire's link-mode payload: a producer node index and
// pin index.
type LinkRecord struct {
	Node int `json:"node" yaml:"node"`
	Pin  int `json:"pin" yaml:"pin"`
}

// MarshalJSON renders w as null, a string, or a {node,pin} object,
// per spec §4.7's wire encodings.
func (w WireRecord) MarshalJSON() ([]byte, error) {
	switch {
	case w.Link != nil:
		return json.Marshal(w.Link)
	case w.Immediate != "":
		return json.Marshal(w.Immediate)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON parses the spec §4.7 wire encodings back into a
// WireRecord.
func (w *WireRecord) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = WireRecord{Unbound: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = WireRecord{Immediate: s}
		return nil
	}
	var link LinkRecord
	if err := json.Unmarshal(data, &link); err != nil {
		return err
	}
	*w = WireRecord{Link: &link}
	return nil
}

// MarshalYAML renders w the same way MarshalJSON does, for the
// collaborator's YAML document form.
func (w WireRecord) MarshalYAML() (any, error) {
	switch {
	case w.Link != nil:
		return w.Link, nil
	case w.Immediate != "":
		return w.Immediate, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML parses the spec §4.7 wire encodings from a YAML node.
func (w *WireRecord) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*w = WireRecord{Unbound: true}
			return nil
		}
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*w = WireRecord{Immediate: s}
		return nil
	case yaml.MappingNode:
		var link LinkRecord
		if err := value.Decode(&link); err != nil {
			return err
		}
		*w = WireRecord{Link: &link}
		return nil
	default:
		*w = WireRecord{Unbound: true}
		return nil
	}
}

// NodeRecord is one entry in a Document: an editor position (opaque
// to this package), a node-type id, the node's wires in pin order,
// and an optional flow-output index.
type NodeRecord struct {
	X     int          `json:"x" yaml:"x"`
	Y     int          `json:"y" yaml:"y"`
	ID    string       `json:"id" yaml:"id"`
	Wires []WireRecord `json:"wires,omitempty" yaml:"wires,omitempty"`
	Next  *int         `json:"next,omitempty" yaml:"next,omitempty"`
}

// Document is the top-level persistence shape: an ordered list of
// node records plus the catalog format version the document was
// written against (spec §6). Version is left empty by callers that
// predate version stamping; Load treats that the same as "compatible".
type Document struct {
	Version string       `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes   []NodeRecord `json:"nodes" yaml:"nodes"`
}

// UnknownNodeTypeError reports a record whose node-type id has no
// match in the catalog passed to Load.
type UnknownNodeTypeError struct {
	ID string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("graphscript: decode: unknown node type %q", e.ID)
}

// WireCountMismatchError reports a record whose wires array length
// disagrees with its node type's declared input-pin count.
type WireCountMismatchError struct {
	ID       string
	Got, Want int
}

func (e *WireCountMismatchError) Error() string {
	return fmt.Sprintf("graphscript: decode: node type %q: got %d wires, want %d", e.ID, e.Got, e.Want)
}

// Position is the editor-opaque (x,y) a node carries. The core places
// no meaning on it beyond round-tripping it through Save/Load.
type Position struct {
	X, Y int
}

// Save emits g in graph order, one record per node, with wires in
// input-pin order and next present only for nodes whose type has
// out-flow (spec §4.7). positions supplies each node's (x,y); a nil
// map emits zero positions throughout.
func Save(g *graph.Graph, positions map[int]Position) Document {
	doc := Document{Version: catalogver.Version, Nodes: make([]NodeRecord, len(g.Nodes))}
	for i, node := range g.Nodes {
		rec := NodeRecord{ID: node.Type.ID}
		if pos, ok := positions[i]; ok {
			rec.X, rec.Y = pos.X, pos.Y
		}

		rec.Wires = make([]WireRecord, len(node.Inputs))
		for pin, w := range node.Inputs {
			switch {
			case w.IsLink():
				rec.Wires[pin] = WireRecord{Link: &LinkRecord{Node: w.SourceNode, Pin: w.SourcePin}}
			case w.IsImmediate():
				rec.Wires[pin] = WireRecord{Immediate: w.Immediate}
			default:
				rec.Wires[pin] = WireRecord{Unbound: true}
			}
		}

		if node.Type.HasOutFlow {
			next := node.FlowOutput
			rec.Next = &next
		}

		doc.Nodes[i] = rec
	}
	return doc
}

// Load resolves each record's id against types (keyed by NodeType.ID)
// and reconstructs a graph.Graph. It performs shape validation only
// (spec §4.7): wire and next references are not checked against the
// node count or the producer's pins, and pin types are not compared.
// compiler.Compile does not check these either.
func Load(types map[string]*catalog.NodeType, doc Document) (*graph.Graph, error) {
	if err := catalogver.Check(doc.Version); err != nil {
		return nil, err
	}

	g := graph.New()

	for _, rec := range doc.Nodes {
		nt, ok := types[rec.ID]
		if !ok {
			return nil, &UnknownNodeTypeError{ID: rec.ID}
		}
		if len(rec.Wires) != len(nt.Inputs) {
			return nil, &WireCountMismatchError{ID: rec.ID, Got: len(rec.Wires), Want: len(nt.Inputs)}
		}
		g.AddNode(nt)
	}

	for i, rec := range doc.Nodes {
		for pin, wr := range rec.Wires {
			switch {
			case wr.Link != nil:
				g.Nodes[i].Inputs[pin] = graph.Wire{SourceNode: wr.Link.Node, SourcePin: wr.Link.Pin}
			case wr.Immediate != "":
				g.Nodes[i].Inputs[pin] = graph.Wire{SourceNode: -1, Immediate: wr.Immediate}
			default:
				g.Nodes[i].Inputs[pin] = graph.Unbound
			}
		}

		if rec.Next != nil {
			g.Nodes[i].FlowOutput = *rec.Next
		} else {
			g.Nodes[i].FlowOutput = -1
		}
	}

	return g, nil
}
