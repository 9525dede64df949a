// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package graph implements the Graph Model: an ordered, index-addressed
// list of Nodes, each referencing a catalog.NodeType, with a Wire per
// input pin and an optional flow-output link (spec §4.3, §3).
package graph

import (
	"fmt"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/universe"
)

// Wire is a single input-side edge. Exactly one of its two modes is
// active (spec §3 Wire):
//
//   - SourceNode >= 0: a data link to another node's output pin.
//   - SourceNode == -1 && Immediate != "": a literal.
//   - SourceNode == -1 && Immediate == "": unbound.
type Wire struct {
	SourceNode int
	SourcePin  int
	Immediate  string
}

// Unbound is the unbound Wire: SourceNode -1, no immediate. (The zero
// Wire is not unbound: its SourceNode 0 makes it a link to node 0.)
var Unbound = Wire{SourceNode: -1}

// IsLink reports whether w is a data link to a producer pin.
func (w Wire) IsLink() bool { return w.SourceNode >= 0 }

// IsImmediate reports whether w is a literal.
func (w Wire) IsImmediate() bool { return w.SourceNode < 0 && w.Immediate != "" }

// IsUnbound reports whether w is neither a link nor a literal.
func (w Wire) IsUnbound() bool { return w.SourceNode < 0 && w.Immediate == "" }

// Node is one vertex in a Graph: a NodeType handle, one Wire per
// input pin, and (when sequenced) a single flow-output link.
type Node struct {
	Type   *catalog.NodeType
	Inputs []Wire

	// FlowOutput is the index of the node this node's out-flow leads
	// to, or -1 if none or unused.
	FlowOutput int
}

// NewNode returns a Node of the given type with all inputs unbound
// and no flow-output link.
func NewNode(t *catalog.NodeType) Node {
	inputs := make([]Wire, len(t.Inputs))
	for i := range inputs {
		inputs[i] = Unbound
	}
	return Node{Type: t, Inputs: inputs, FlowOutput: -1}
}

// Graph is an ordered sequence of Nodes, addressed by index (spec
// §3 Graph).
type Graph struct {
	Nodes []Node
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{}
}

// AddNode appends a new Node of type t and returns its index.
func (g *Graph) AddNode(t *catalog.NodeType) int {
	g.Nodes = append(g.Nodes, NewNode(t))
	return len(g.Nodes) - 1
}

// InputSide identifies one input pin: the node that owns it, and
// which of its input pins.
type InputSide struct {
	Node int
	Pin  int
}

// OutputSide identifies one output pin: the node that produces it,
// and which of its output pins.
type OutputSide struct {
	Node int
	Pin  int
}

// Connect wires input to read from output, provided their types are
// compatible (type identity must match; indirection, const and
// volatile are not compared, see compatible).
// The last writer wins: a data input holds exactly one wire, so a
// second Connect call to the same input replaces the first.
func (g *Graph) Connect(input InputSide, output OutputSide) error {
	if input.Node < 0 || input.Node >= len(g.Nodes) {
		return fmt.Errorf("graph: connect: node %d does not exist", input.Node)
	}
	if output.Node < 0 || output.Node >= len(g.Nodes) {
		return fmt.Errorf("graph: connect: node %d does not exist", output.Node)
	}

	dstNode := g.Nodes[input.Node]
	if input.Pin < 0 || input.Pin >= len(dstNode.Inputs) {
		return fmt.Errorf("graph: connect: node %d has no input pin %d", input.Node, input.Pin)
	}
	srcNode := g.Nodes[output.Node]
	if output.Pin < 0 || output.Pin >= len(srcNode.Type.Outputs) {
		return fmt.Errorf("graph: connect: node %d has no output pin %d", output.Node, output.Pin)
	}

	want := dstNode.Type.Inputs[input.Pin].Type
	got := srcNode.Type.Outputs[output.Pin].Type
	if !compatible(want, got) {
		return fmt.Errorf("graph: connect: incompatible types: input wants %s, output produces %s", want, got)
	}

	g.Nodes[input.Node].Inputs[input.Pin] = Wire{SourceNode: output.Node, SourcePin: output.Pin}
	return nil
}

// compatible implements the wire compatibility rule (spec §4.3): full
// equality would compare type identity and indirection, but the
// current design checks identity only; indirection, const/volatile
// refinement and base-class conversion are a documented extension
// point (spec §9(c)). This also means a by-value producer (Build's
// output) can feed a by-reference consumer (Split's input): both
// resolve to the same addressable slot storage at the interpreter
// layer, so the distinction is immaterial there.
func compatible(dst, src universe.QualifiedType) bool {
	return dst.Type == src.Type
}

// SetImmediate sets an unbound or literal input to hold the textual
// immediate text, clearing any existing link.
func (g *Graph) SetImmediate(input InputSide, text string) error {
	if input.Node < 0 || input.Node >= len(g.Nodes) {
		return fmt.Errorf("graph: set immediate: node %d does not exist", input.Node)
	}
	node := g.Nodes[input.Node]
	if input.Pin < 0 || input.Pin >= len(node.Inputs) {
		return fmt.Errorf("graph: set immediate: node %d has no input pin %d", input.Node, input.Pin)
	}
	g.Nodes[input.Node].Inputs[input.Pin] = Wire{SourceNode: -1, Immediate: text}
	return nil
}

// SetFlow sets node's flow-output link to target (-1 to clear it).
func (g *Graph) SetFlow(node, target int) error {
	if node < 0 || node >= len(g.Nodes) {
		return fmt.Errorf("graph: set flow: node %d does not exist", node)
	}
	if target != -1 && (target < 0 || target >= len(g.Nodes)) {
		return fmt.Errorf("graph: set flow: node %d does not exist", target)
	}
	g.Nodes[node].FlowOutput = target
	return nil
}

// DeleteNode removes node i. Every reference to i in any wire or
// flow-output field becomes unbound; every reference greater than i
// is decremented by one, so the invariant "every non-negative
// reference points to an existing node" is preserved (spec §4.3).
func (g *Graph) DeleteNode(i int) error {
	if i < 0 || i >= len(g.Nodes) {
		return fmt.Errorf("graph: delete node: node %d does not exist", i)
	}

	shift := func(idx int) int {
		switch {
		case idx == i:
			return -1
		case idx > i:
			return idx - 1
		default:
			return idx
		}
	}

	for n := range g.Nodes {
		if n == i {
			continue
		}
		node := &g.Nodes[n]
		for p := range node.Inputs {
			w := &node.Inputs[p]
			if w.IsLink() {
				if w.SourceNode == i {
					*w = Unbound
				} else {
					w.SourceNode = shift(w.SourceNode)
				}
			}
		}
		node.FlowOutput = shift(node.FlowOutput)
	}

	g.Nodes = append(g.Nodes[:i], g.Nodes[i+1:]...)
	return nil
}
