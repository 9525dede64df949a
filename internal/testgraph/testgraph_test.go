// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package testgraph

import (
	"testing"

	"firefly-os.dev/graphscript/compiler"
)

func TestArithmeticFixtureCompilesAndRuns(t *testing.T) {
	var printed int
	g, r, start := Arithmetic(&printed)

	p, err := compiler.Compile(g, start, r)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := p.Execute(nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if printed != 14 {
		t.Fatalf("printed = %d, want 14", printed)
	}
}
