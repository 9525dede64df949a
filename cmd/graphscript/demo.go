// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"reflect"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/internal/wire"
	"firefly-os.dev/graphscript/universe"
)

// Point is the demo's one record type, standing in for the sample
// program's vector arithmetic (original_source/samples/main.cpp).
type Point struct {
	X, Y float64
}

// demoFunc names one registerable node type. The manifest flag
// selects a subset of this table by name; an absent manifest
// registers all of them, and a manifest naming no functions
// registers none.
type demoFunc struct {
	Name string
	New  func(r *universe.Registry, w io.Writer) *catalog.NodeType
}

var demoFuncs = []demoFunc{
	{"add", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(a, b int) int { return a + b }, "add", "a", "b")
		return catalog.Function(fn)
	}},
	{"mul", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(a, b int) int { return a * b }, "mul", "a", "b")
		return catalog.Function(fn)
	}},
	{"buildPoint", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		return catalog.Build(r.RegisterType(Point{}))
	}},
	{"splitPoint", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		return catalog.Split(r.RegisterType(Point{}))
	}},
	{"bytesLen", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(b []byte) int { return len(b) }, "bytesLen", "b")
		return catalog.Function(fn)
	}},
	{"printInt", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(v int) { fmt.Fprintln(w, v) }, "printInt", "v")
		return catalog.Function(fn)
	}},
	{"printFloat", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(v float64) { fmt.Fprintln(w, v) }, "printFloat", "v")
		return catalog.Function(fn)
	}},
	{"printPoint", func(r *universe.Registry, w io.Writer) *catalog.NodeType {
		fn := r.RegisterFunction(func(p Point) { fmt.Fprintf(w, "(%g, %g)\n", p.X, p.Y) }, "printPoint", "p")
		return catalog.Function(fn)
	}},
}

// buildUniverse registers the host types the demo functions need.
// Every demoFunc constructor assumes these are already present.
func buildUniverse(r *universe.Registry) {
	r.RegisterType(int(0))
	r.RegisterType(float64(0))
	r.RegisterType([]byte(nil))
	r.RegisterType(Point{})

	bytesType := r.RegisterType([]byte(nil))
	r.RegisterImmediateParser(bytesType, func(text string) (reflect.Value, error) {
		b, err := wire.ParseHexImmediate(text)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil
	})
}

// buildCatalog registers a Start event type plus every demoFunc whose
// name is in enabled (or every demoFunc, if enabled is nil), and
// returns the resulting id-to-type map for codec.Load.
func buildCatalog(r *universe.Registry, w io.Writer, enabled map[string]bool) map[string]*catalog.NodeType {
	buildUniverse(r)

	types := make(map[string]*catalog.NodeType)
	start := catalog.Event("Start")
	types[start.ID] = start

	for _, df := range demoFuncs {
		if enabled != nil && !enabled[df.Name] {
			continue
		}
		nt := df.New(r, w)
		types[nt.ID] = nt
	}

	return types
}
