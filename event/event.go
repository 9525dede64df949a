// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package event implements Event Binding: an arity- and type-checked
// wrapper around a compiled program.Program, exposing a plain
// variadic Invoke (spec §4.6).
package event

import (
	"fmt"
	"reflect"

	"firefly-os.dev/graphscript/program"
)

// Event binds a Program to a caller-supplied argument tuple. It is
// cheap to clone — multiple Events may share a Program (spec §4.6).
type Event struct {
	program *program.Program
}

// Bind checks that p declares exactly len(argTypes) arguments, each
// matching the corresponding argType, and returns an Event wrapping
// p. A mismatch is reported immediately rather than deferred to the
// first Invoke, matching the registry's fail-fast policy for
// programmer errors (spec §4.1, applied here to event arity/type).
func Bind(p *program.Program, argTypes ...reflect.Type) (*Event, error) {
	if len(argTypes) != len(p.ArgTypes) {
		return nil, fmt.Errorf("graphscript: bind: program declares %d arguments, got %d types", len(p.ArgTypes), len(argTypes))
	}
	for i, want := range p.ArgTypes {
		if argTypes[i] != want {
			return nil, fmt.Errorf("graphscript: bind: argument %d has type %s, want %s", i, argTypes[i], want)
		}
	}
	return &Event{program: p}, nil
}

// Invoke runs the bound Program once with args, one Go value per
// declared argument, in order. Each argument is copied into its own
// addressable cell and the cells are passed to the Program's Execute;
// the interpreter never moves from these slots (spec §5).
func (e *Event) Invoke(args ...any) error {
	if len(args) != len(e.program.ArgTypes) {
		return fmt.Errorf("graphscript: invoke: got %d arguments, want %d", len(args), len(e.program.ArgTypes))
	}

	slots := make([]reflect.Value, len(args))
	for i, a := range args {
		rv := reflect.ValueOf(a)
		want := e.program.ArgTypes[i]
		if rv.Type() != want {
			return fmt.Errorf("graphscript: invoke: argument %d has type %s, want %s", i, rv.Type(), want)
		}
		// The Program's Execute expects one addressable cell per
		// argument (it installs these directly into the argument
		// slot block without copying): copy the argument into a
		// fresh cell so that cell can stand in for it.
		cell := reflect.New(want).Elem()
		cell.Set(rv)
		slots[i] = cell
	}

	return e.program.Execute(slots)
}
