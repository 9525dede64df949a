// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package catalog implements the Node Type Catalog: the four node-type
// factories (Event, Function, Split, Build) built over a
// universe.Registry, each exposing a stable identity, a label,
// ordered typed pins, flow flags, and an evaluator.
package catalog

import (
	"fmt"
	"reflect"

	"firefly-os.dev/graphscript/universe"
)

// Pin is one named, typed input or output of a NodeType.
type Pin struct {
	Label string
	Type  universe.QualifiedType
}

// Evaluator computes a node's outputs from its inputs. args is a
// pointer array: one pointer reflect.Value (the address of the
// input's slot) per input pin, in pin order. The returned slice has one entry per output pin, in pin
// order; the empty slice is returned for node types with no outputs.
//
// An error returned here is a host function failure (spec §7); it
// propagates out of the owning Program's Execute unmodified.
type Evaluator func(args []reflect.Value) ([]reflect.Value, error)

// NodeType is one entry in the catalog: a stable id, a label, ordered
// input and output pins, in/out flow flags, and an evaluator.
//
// Event node types additionally carry EventParams, the types of the
// arguments an Event of this type accepts — these are not pins
// (spec §4.2: "Event has no inputs and no outputs"), so they are not
// wireable from the graph; they become the Program's initial argument
// slots (spec §4.6).
type NodeType struct {
	ID      string
	Label   string
	Inputs  []Pin
	Outputs []Pin

	HasInFlow  bool
	HasOutFlow bool

	EventParams []universe.QualifiedType

	eval Evaluator
}

// Evaluate runs the node type's evaluator.
func (nt *NodeType) Evaluate(args []reflect.Value) ([]reflect.Value, error) {
	return nt.eval(args)
}

// Event returns the Event node type named name, accepting the given
// parameter types as the Program's initial argument slots. Event node
// types have no input or output pins, no in-flow, and always have
// out-flow (spec §4.2).
func Event(name string, paramTypes ...universe.QualifiedType) *NodeType {
	return &NodeType{
		ID:          "event:" + name,
		Label:       name,
		HasOutFlow:  true,
		EventParams: append([]universe.QualifiedType(nil), paramTypes...),
		eval: func(args []reflect.Value) ([]reflect.Value, error) {
			return nil, nil
		},
	}
}

// Function wraps a registered universe.Function as a node type.
// Its inputs mirror the function's parameters (label = parameter
// name, type = parameter type); it has one output iff the function
// has a non-void return. Both flows are set (spec §4.2).
func Function(fn *universe.Function) *NodeType {
	inputs := make([]Pin, len(fn.Type.Params()))
	for i, p := range fn.Type.Params() {
		label := ""
		if i < len(fn.ParamNames) {
			label = fn.ParamNames[i]
		}
		inputs[i] = Pin{Label: label, Type: p}
	}

	var outputs []Pin
	if result, ok := fn.Type.Result(); ok {
		outputs = []Pin{{Label: "", Type: result}}
	}

	return &NodeType{
		ID:         "func:" + signature(fn),
		Label:      fn.Name,
		Inputs:     inputs,
		Outputs:    outputs,
		HasInFlow:  true,
		HasOutFlow: true,
		eval: func(args []reflect.Value) ([]reflect.Value, error) {
			result, err := fn.Invoke(args)
			if err != nil {
				return nil, err
			}
			if !result.IsValid() {
				return nil, nil
			}
			return []reflect.Value{result}, nil
		},
	}
}

func signature(fn *universe.Function) string {
	s := fn.Name + "("
	for i, p := range fn.Type.Params() {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	s += ")"
	if result, ok := fn.Type.Result(); ok {
		s += result.String()
	}
	return s
}

// Split returns the node type that takes one record by reference and
// produces one output per field, aliasing the parent record's memory
// (spec §4.2, §5 "Split outputs are non-owning views").
func Split(t *universe.Type) *NodeType {
	fields := t.Fields()
	outputs := make([]Pin, len(fields))
	for i, f := range fields {
		outputs[i] = Pin{Label: f.Name, Type: f.Type}
	}

	return &NodeType{
		ID:    "split:" + t.String(),
		Label: "split " + t.String(),
		Inputs: []Pin{{
			Label: "",
			Type:  universe.QualifiedType{Type: t, Indirection: universe.LValueRef},
		}},
		Outputs: outputs,
		eval: func(args []reflect.Value) ([]reflect.Value, error) {
			base := args[0].Elem()
			results := make([]reflect.Value, len(fields))
			for i, f := range fields {
				// Alias the parent's storage directly: no copy, so
				// the output remains valid exactly as long as the
				// parent slot is not overwritten (spec §5).
				results[i] = f.Access(base)
			}
			return results, nil
		},
	}
}

// Build returns the node type that takes one input per field and
// produces a newly constructed record by value (spec §4.2).
func Build(t *universe.Type) *NodeType {
	fields := t.Fields()
	inputs := make([]Pin, len(fields))
	for i, f := range fields {
		inputs[i] = Pin{Label: f.Name, Type: f.Type}
	}

	return &NodeType{
		ID:     "build:" + t.String(),
		Label:  "build " + t.String(),
		Inputs: inputs,
		Outputs: []Pin{{
			Label: "",
			Type:  universe.QualifiedType{Type: t},
		}},
		eval: func(args []reflect.Value) ([]reflect.Value, error) {
			out := t.DefaultConstruct()
			for i, f := range fields {
				f.Type.Type.CopyAssign(f.Access(out), args[i].Elem())
			}
			return []reflect.Value{out}, nil
		},
	}
}

func (nt *NodeType) String() string {
	return fmt.Sprintf("%s %q", nt.ID, nt.Label)
}
