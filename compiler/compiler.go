// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package compiler converts a graph and an entry node index into a
// Program: it resolves immediates into constants, lays out output
// slots for every used node, and emits one Line per invocation in an
// order consistent with data dependency and control flow (spec §4.4).
package compiler

import (
	"fmt"
	"reflect"
	"strconv"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/graph"
	"firefly-os.dev/graphscript/program"
	"firefly-os.dev/graphscript/universe"
)

// maxArity is the fixed maximum input-pin count the interpreter's
// fixed-size pointer array supports (spec §4.4).
const maxArity = 8

// UnboundInputError reports a used input that is neither linked nor
// carries a literal.
type UnboundInputError struct {
	Node, Pin int
}

func (e *UnboundInputError) Error() string {
	return fmt.Sprintf("graphscript: compile: node %d pin %d is unbound", e.Node, e.Pin)
}

// ImmediateParseError reports a literal that failed to parse at its
// destination pin's type.
type ImmediateParseError struct {
	Node, Pin int
	Type      string
	Text      string
}

func (e *ImmediateParseError) Error() string {
	return fmt.Sprintf("graphscript: compile: node %d pin %d: %q does not parse as %s", e.Node, e.Pin, e.Text, e.Type)
}

// UnsupportedImmediateTypeError reports a literal wire whose
// destination pin's type has no registered literal parser.
type UnsupportedImmediateTypeError struct {
	Node, Pin int
	Type      string
}

func (e *UnsupportedImmediateTypeError) Error() string {
	return fmt.Sprintf("graphscript: compile: node %d pin %d: no literal parser for type %s", e.Node, e.Pin, e.Type)
}

// SequencingError reports a pure node that transitively depends on
// sequenced node Dep, which has not yet run on the current spine.
type SequencingError struct {
	Dep int
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("graphscript: compile: sequenced node %d read before it has run", e.Dep)
}

// ArityOverflowError reports a node whose input-pin count exceeds
// maxArity.
type ArityOverflowError struct {
	Node, Count int
}

func (e *ArityOverflowError) Error() string {
	return fmt.Sprintf("graphscript: compile: node %d has %d input pins, exceeding the maximum of %d", e.Node, e.Count, maxArity)
}

// CycleError reports a pure node reached again while still on the
// current recursion stack: a data-wire cycle (spec §9 "Cycles").
type CycleError struct {
	Node int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graphscript: compile: data-wire cycle through node %d", e.Node)
}

// compilation holds the mutable state threaded through one Compile
// call.
type compilation struct {
	g *graph.Graph
	r *universe.Registry

	constants []reflect.Value
	// constSlot maps a (node,pin) literal wire to its constant slot.
	constSlot map[[2]int]int

	used      map[int]bool
	usedOrder []int

	baseSlot map[int]int // used node -> first output slot, relative to argOffset
	argOffset int         // K + A: where the node-output region begins

	lastRun []int // per node, logical timestamp of its last emission (0 = never)
	onStack map[int]bool

	lines []program.Line
}

// Compile converts g into a Program, starting from the event node at
// entry. entry must reference an Event node type (has-out-flow, no
// in-flow); r supplies literal parsers for immediate wires beyond the
// two Compile parses itself (integer, real).
func Compile(g *graph.Graph, entry int, r *universe.Registry) (*program.Program, error) {
	if entry < 0 || entry >= len(g.Nodes) {
		return nil, fmt.Errorf("graphscript: compile: entry node %d does not exist", entry)
	}
	entryType := g.Nodes[entry].Type
	if entryType.HasInFlow || !entryType.HasOutFlow {
		return nil, fmt.Errorf("graphscript: compile: entry node %d is not an event node", entry)
	}

	c := &compilation{
		g:         g,
		r:         r,
		constSlot: make(map[[2]int]int),
		used:      make(map[int]bool),
		baseSlot:  make(map[int]int),
		lastRun:   make([]int, len(g.Nodes)),
		onStack:   make(map[int]bool),
	}

	spine, err := c.walkSpine(entry)
	if err != nil {
		return nil, err
	}

	for _, n := range spine {
		if err := c.markUsed(n); err != nil {
			return nil, err
		}
	}

	argTypes := entryArgTypes(entryType)
	c.argOffset = len(c.constants) + len(argTypes)
	c.layoutSlots()

	now := 0
	for _, s := range spine {
		now++
		node := g.Nodes[s]
		for _, w := range node.Inputs {
			if w.IsLink() {
				if err := c.ensureFresh(w.SourceNode, now); err != nil {
					return nil, err
				}
			}
		}
		c.emit(s)
		c.lastRun[s] = now
	}

	totalSlots := c.argOffset + c.totalNodeSlots()
	return program.New(c.constants, totalSlots, c.lines, argTypes)
}

// entryArgTypes returns the Go types of the event's declared
// parameters, in order, for installation into the Program's
// reserved [K,K+A) argument slots (spec §3, §4.6).
func entryArgTypes(entryType *catalog.NodeType) []reflect.Type {
	types := make([]reflect.Type, len(entryType.EventParams))
	for i, qt := range entryType.EventParams {
		types[i] = qt.Type.GoType()
	}
	return types
}

// walkSpine follows flow-output links from entry until -1, returning
// the sequenced chain in order (the entry node included).
func (c *compilation) walkSpine(entry int) ([]int, error) {
	var spine []int
	seen := make(map[int]bool)
	cur := entry
	for {
		if seen[cur] {
			return nil, fmt.Errorf("graphscript: compile: flow-wire cycle at node %d", cur)
		}
		seen[cur] = true
		spine = append(spine, cur)
		next := c.g.Nodes[cur].FlowOutput
		if next == -1 {
			break
		}
		cur = next
	}
	return spine, nil
}

// markUsed marks n and every node transitively reached from n via
// data-input wires as used, parsing literal wires into constants.
// Each node's inputs are processed at most once (on first visit),
// per spec §4.4 step 1.
func (c *compilation) markUsed(n int) error {
	if c.used[n] {
		return nil
	}
	c.used[n] = true
	c.usedOrder = append(c.usedOrder, n)

	node := c.g.Nodes[n]
	if len(node.Inputs) > maxArity {
		return &ArityOverflowError{Node: n, Count: len(node.Inputs)}
	}

	for pin, w := range node.Inputs {
		switch {
		case w.IsLink():
			if err := c.markUsed(w.SourceNode); err != nil {
				return err
			}
		case w.IsImmediate():
			qt := node.Type.Inputs[pin].Type
			v, err := c.parseImmediate(qt, w.Immediate)
			if err != nil {
				return annotateImmediateError(err, n, pin)
			}
			idx := len(c.constants)
			c.constants = append(c.constants, v)
			c.constSlot[[2]int{n, pin}] = idx
		default:
			return &UnboundInputError{Node: n, Pin: pin}
		}
	}
	return nil
}

func annotateImmediateError(err error, node, pin int) error {
	switch e := err.(type) {
	case *ImmediateParseError:
		e.Node, e.Pin = node, pin
		return e
	case *UnsupportedImmediateTypeError:
		e.Node, e.Pin = node, pin
		return e
	default:
		return err
	}
}

// parseImmediate parses text at qt's type: integer and real are
// built in (spec §4.4 step 1, §9(b)); any other type falls back to a
// host-registered immediate parser, if any.
func (c *compilation) parseImmediate(qt universe.QualifiedType, text string) (reflect.Value, error) {
	t := qt.Type
	goType := t.GoType()

	switch goType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return reflect.Value{}, &ImmediateParseError{Type: t.String(), Text: text}
		}
		v := reflect.New(goType).Elem()
		v.SetInt(n)
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return reflect.Value{}, &ImmediateParseError{Type: t.String(), Text: text}
		}
		v := reflect.New(goType).Elem()
		v.SetUint(n)
		return v, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return reflect.Value{}, &ImmediateParseError{Type: t.String(), Text: text}
		}
		v := reflect.New(goType).Elem()
		v.SetFloat(f)
		return v, nil
	}

	if c.r != nil {
		if parse, ok := c.r.ImmediateParser(t); ok {
			v, err := parse(text)
			if err != nil {
				return reflect.Value{}, &ImmediateParseError{Type: t.String(), Text: text}
			}
			return v, nil
		}
	}

	return reflect.Value{}, &UnsupportedImmediateTypeError{Type: t.String()}
}

// layoutSlots assigns each used node an output-slot block, relative
// to argOffset, in the order nodes were first marked used (spec
// §4.4 step 2, §3 Slot Array).
func (c *compilation) layoutSlots() {
	running := 0
	for _, n := range c.usedOrder {
		c.baseSlot[n] = running
		running += len(c.g.Nodes[n].Type.Outputs)
	}
}

func (c *compilation) totalNodeSlots() int {
	total := 0
	for _, n := range c.usedOrder {
		total += len(c.g.Nodes[n].Type.Outputs)
	}
	return total
}

// outputSlot resolves the absolute slot index of node n's output
// pin, shifting its layout-relative base by the constant+argument
// prefix width.
func (c *compilation) outputSlot(n, pin int) int {
	return c.argOffset + c.baseSlot[n] + pin
}

// ensureFresh implements the demand-driven pure-node reevaluation
// kernel (spec §4.4 "Line emission"): a sequenced dependency must
// already have run; a pure dependency is (re-)emitted only when it
// has never run at all or one of its own transitive inputs is fresher
// than its last emission, and at most once per spine step.
func (c *compilation) ensureFresh(p int, now int) error {
	node := c.g.Nodes[p]

	if node.Type.HasInFlow || node.Type.HasOutFlow {
		if c.lastRun[p] == 0 {
			return &SequencingError{Dep: p}
		}
		return nil
	}

	if c.lastRun[p] == now {
		return nil
	}
	if c.onStack[p] {
		return &CycleError{Node: p}
	}
	c.onStack[p] = true
	defer delete(c.onStack, p)

	needs := c.lastRun[p] == 0
	for _, w := range node.Inputs {
		if !w.IsLink() {
			continue
		}
		if err := c.ensureFresh(w.SourceNode, now); err != nil {
			return err
		}
		if c.lastRun[w.SourceNode] > c.lastRun[p] {
			needs = true
		}
	}

	if needs {
		c.emit(p)
		c.lastRun[p] = now
	}
	return nil
}

// emit appends a Line for node n, resolving each input wire to a
// constant or a producer's output slot.
func (c *compilation) emit(n int) {
	node := c.g.Nodes[n]

	inputs := make([]int, len(node.Inputs))
	for pin, w := range node.Inputs {
		switch {
		case w.IsLink():
			inputs[pin] = c.outputSlot(w.SourceNode, w.SourcePin)
		case w.IsImmediate():
			inputs[pin] = c.constSlot[[2]int{n, pin}]
		}
	}

	outputs := make([]int, len(node.Type.Outputs))
	for pin := range outputs {
		outputs[pin] = c.outputSlot(n, pin)
	}

	c.lines = append(c.lines, program.Line{Type: node.Type, Inputs: inputs, Outputs: outputs})
}
