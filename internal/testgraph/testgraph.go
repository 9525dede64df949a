// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package testgraph builds a small literal graph fixture for tests,
// plus a go-cmp option for comparing graphs
// (node types compare by pointer identity, since catalog.NodeType
// carries an unexported evaluator closure).
package testgraph

import (
	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/graph"
	"firefly-os.dev/graphscript/universe"
)

// CompareNodeTypesByPointer is a cmp.Option that treats two
// *catalog.NodeType values as equal iff they are the same instance.
var CompareNodeTypesByPointer = cmp.Comparer(func(a, b *catalog.NodeType) bool {
	return a == b
})

// Arithmetic builds a small fixture: a registry with int registered
// plus mul/add/print functions, and a graph wiring
// Start -> mul(2,3) -> add(mul,8) -> print, matching the spec's S1
// scenario. The registered print function closes over printed, so
// printed receives the value the compiled program's print node is
// called with.
func Arithmetic(printed *int) (*graph.Graph, *universe.Registry, int) {
	r := universe.NewRegistry()
	r.RegisterType(int(0))

	mulFn := r.RegisterFunction(func(a, b int) int { return a * b }, "mul", "a", "b")
	addFn := r.RegisterFunction(func(a, b int) int { return a + b }, "add", "a", "b")
	printFn := r.RegisterFunction(func(v int) { *printed = v }, "print", "v")

	g := graph.New()
	start := g.AddNode(catalog.Event("Start"))
	mul := g.AddNode(catalog.Function(mulFn))
	add := g.AddNode(catalog.Function(addFn))
	print := g.AddNode(catalog.Function(printFn))

	must(g.SetImmediate(graph.InputSide{Node: mul, Pin: 0}, "2"))
	must(g.SetImmediate(graph.InputSide{Node: mul, Pin: 1}, "3"))
	must(g.Connect(graph.InputSide{Node: add, Pin: 0}, graph.OutputSide{Node: mul, Pin: 0}))
	must(g.SetImmediate(graph.InputSide{Node: add, Pin: 1}, "8"))
	must(g.Connect(graph.InputSide{Node: print, Pin: 0}, graph.OutputSide{Node: add, Pin: 0}))

	must(g.SetFlow(start, mul))
	must(g.SetFlow(mul, add))
	must(g.SetFlow(add, print))

	return g, r, start
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
