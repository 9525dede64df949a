// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package program implements the Program & Interpreter: an immutable
// linear list of Lines over a slot array, executed in order (spec
// §4.5, §3 Slot Array/Program).
package program

import (
	"fmt"
	"reflect"
	"strings"

	"firefly-os.dev/graphscript/catalog"
)

// Line is one compiled invocation: a node type plus the slot indices
// its inputs are read from and its outputs are written to.
type Line struct {
	Type    *catalog.NodeType
	Inputs  []int
	Outputs []int
}

func (l Line) String() string {
	return fmt.Sprintf("%s %v -> %v", l.Type.ID, l.Inputs, l.Outputs)
}

// InvalidProgramError reports a Program construction invariant
// violation: an out-of-range slot index, or an input slot that
// nothing writes before it is read (spec §7).
type InvalidProgramError struct {
	Reason string
}

func (e *InvalidProgramError) Error() string {
	return fmt.Sprintf("graphscript: invalid program: %s", e.Reason)
}

// Program is immutable after New returns successfully: a constants
// vector, a total slot count, an ordered Line list, and the number of
// caller-supplied arguments the event that compiled it declares.
type Program struct {
	Constants  []reflect.Value
	TotalSlots int
	Lines      []Line
	ArgCount   int

	// ArgTypes are the Go types of the caller-supplied arguments, in
	// order, used by Execute to validate the caller's pointer array
	// and by event.Bind to check arity and type (spec §4.6).
	ArgTypes []reflect.Type
}

// New validates and returns a Program. It checks that every Line's
// input and output slot indices are within [0, totalSlots), and that
// every input slot is written before it is read — by a constant, by
// a caller argument, or by an earlier Line's outputs (spec §4.5
// invariant, §8 property 3: slot-write domination).
func New(constants []reflect.Value, totalSlots int, lines []Line, argTypes []reflect.Type) (*Program, error) {
	k := len(constants)
	a := len(argTypes)
	if k+a > totalSlots {
		return nil, &InvalidProgramError{Reason: fmt.Sprintf("constants+arguments (%d) exceed total slots (%d)", k+a, totalSlots)}
	}

	written := make([]bool, totalSlots)
	for i := 0; i < k+a; i++ {
		written[i] = true
	}

	for i, line := range lines {
		for _, in := range line.Inputs {
			if in < 0 || in >= totalSlots {
				return nil, &InvalidProgramError{Reason: fmt.Sprintf("line %d: input slot %d out of range [0,%d)", i, in, totalSlots)}
			}
			if !written[in] {
				return nil, &InvalidProgramError{Reason: fmt.Sprintf("line %d: input slot %d read before any write", i, in)}
			}
		}
		for _, out := range line.Outputs {
			if out < 0 || out >= totalSlots {
				return nil, &InvalidProgramError{Reason: fmt.Sprintf("line %d: output slot %d out of range [0,%d)", i, out, totalSlots)}
			}
			written[out] = true
		}
	}

	return &Program{
		Constants:  append([]reflect.Value(nil), constants...),
		TotalSlots: totalSlots,
		Lines:      append([]Line(nil), lines...),
		ArgCount:   a,
		ArgTypes:   append([]reflect.Type(nil), argTypes...),
	}, nil
}

// Execute runs the Program once against args, one value per declared
// argument, in order. It allocates a fresh slot array, copies the
// constants into slots [0,K), installs the caller's argument values
// — by reference, never moved-from — into slots [K,K+A), then runs
// every Line in order, writing each Line's returned values into its
// output slots (spec §4.5).
func (p *Program) Execute(args []reflect.Value) error {
	if len(args) != p.ArgCount {
		return fmt.Errorf("graphscript: execute: got %d arguments, want %d", len(args), p.ArgCount)
	}

	slots := make([]reflect.Value, p.TotalSlots)
	for i, c := range p.Constants {
		// Fresh copy per execution: a constant's slot may be moved
		// from by a by-value parameter, and the next execution must
		// not observe that mutation.
		cell := reflect.New(c.Type()).Elem()
		cell.Set(c)
		slots[i] = cell
	}
	for i, a := range args {
		idx := len(p.Constants) + i
		if a.Type() != p.ArgTypes[i] {
			return fmt.Errorf("graphscript: execute: argument %d has type %s, want %s", i, a.Type(), p.ArgTypes[i])
		}
		// The caller's argument is never moved-from by the
		// interpreter (spec §5): install it directly, not a copy.
		slots[idx] = toSlot(a)
	}

	for _, line := range p.Lines {
		in := make([]reflect.Value, len(line.Inputs))
		for i, s := range line.Inputs {
			in[i] = slots[s].Addr()
		}

		out, err := line.Type.Evaluate(in)
		if err != nil {
			return err
		}
		if len(out) != len(line.Outputs) {
			return fmt.Errorf("graphscript: execute: %s returned %d values, want %d", line.Type.ID, len(out), len(line.Outputs))
		}

		for i, s := range line.Outputs {
			slots[s] = toSlot(out[i])
		}
	}

	return nil
}

// toSlot returns an addressable cell holding v, suitable for storage
// as a slot and for later .Addr() calls. Values that are already
// addressable (Split's field aliases, Build's freshly constructed
// record) are kept as-is, preserving aliasing; any other value
// (typically a function's by-value return) is copied into a fresh
// cell.
func toSlot(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	cell := reflect.New(v.Type()).Elem()
	cell.Set(v)
	return cell
}

func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "program: %d constants, %d slots, %d args\n", len(p.Constants), p.TotalSlots, p.ArgCount)
	for i, line := range p.Lines {
		fmt.Fprintf(&b, "  %d: %s\n", i, line)
	}
	return b.String()
}
