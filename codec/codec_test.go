// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"firefly-os.dev/graphscript/catalog"
	"firefly-os.dev/graphscript/graph"
	"firefly-os.dev/graphscript/internal/testgraph"
	"firefly-os.dev/graphscript/universe"
)

// pair is a demo record type, used to exercise a Build node — which,
// unlike Event and Function, has neither in-flow nor out-flow.
type pair struct {
	A, B int
}

func newFixture(t *testing.T) (*graph.Graph, map[string]*catalog.NodeType) {
	t.Helper()
	r := universe.NewRegistry()
	r.RegisterType(int(0))
	r.RegisterType(float64(0))
	pairType := r.RegisterType(pair{})
	addFn := r.RegisterFunction(func(a, b int) int { return a + b }, "add", "a", "b")

	start := catalog.Event("Start")
	add := catalog.Function(addFn)
	build := catalog.Build(pairType)

	g := graph.New()
	n0 := g.AddNode(start)
	n1 := g.AddNode(add)
	n2 := g.AddNode(build)
	if err := g.SetImmediate(graph.InputSide{Node: n1, Pin: 0}, "1"); err != nil {
		t.Fatalf("SetImmediate: %v", err)
	}
	if err := g.SetImmediate(graph.InputSide{Node: n1, Pin: 1}, "3.14"); err != nil {
		t.Fatalf("SetImmediate: %v", err)
	}
	if err := g.Connect(graph.InputSide{Node: n2, Pin: 0}, graph.OutputSide{Node: n1, Pin: 0}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.SetImmediate(graph.InputSide{Node: n2, Pin: 1}, "5"); err != nil {
		t.Fatalf("SetImmediate: %v", err)
	}
	if err := g.SetFlow(n0, n1); err != nil {
		t.Fatalf("SetFlow: %v", err)
	}

	types := map[string]*catalog.NodeType{
		start.ID: start,
		add.ID:   add,
		build.ID: build,
	}
	return g, types
}

// TestSaveLoadJSONRoundTrip mirrors scenario S6.
func TestSaveLoadJSONRoundTrip(t *testing.T) {
	g, types := newFixture(t)
	doc := Save(g, nil)

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	g2, err := Load(types, decoded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(g.Nodes, g2.Nodes, testgraph.CompareNodeTypesByPointer); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadYAMLRoundTrip(t *testing.T) {
	g, types := newFixture(t)
	doc := Save(g, nil)

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	var decoded Document
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}

	g2, err := Load(types, decoded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(g.Nodes, g2.Nodes, testgraph.CompareNodeTypesByPointer); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsNewerCatalogVersion(t *testing.T) {
	doc := Document{Version: "v2.0.0"}
	if _, err := Load(map[string]*catalog.NodeType{}, doc); err == nil {
		t.Fatalf("Load with a newer major catalog version succeeded, want error")
	}
}

func TestLoadUnknownNodeType(t *testing.T) {
	doc := Document{Nodes: []NodeRecord{{ID: "nonexistent"}}}
	_, err := Load(map[string]*catalog.NodeType{}, doc)
	var unknownErr *UnknownNodeTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Load err = %v, want *UnknownNodeTypeError", err)
	}
}

func TestLoadWireCountMismatch(t *testing.T) {
	r := universe.NewRegistry()
	r.RegisterType(int(0))
	addFn := r.RegisterFunction(func(a, b int) int { return a + b }, "add", "a", "b")
	add := catalog.Function(addFn)

	doc := Document{Nodes: []NodeRecord{{ID: add.ID, Wires: []WireRecord{{Unbound: true}}}}}
	_, err := Load(map[string]*catalog.NodeType{add.ID: add}, doc)
	var mismatchErr *WireCountMismatchError
	if !errors.As(err, &mismatchErr) {
		t.Fatalf("Load err = %v, want *WireCountMismatchError", err)
	}
}

// TestSaveOmitsNextForNoOutFlowNodes asserts Save's contract that next
// is present only for nodes whose type has out-flow: a Build record (no
// in-flow, no out-flow) must not carry a "next" key at all, not even
// as an explicit null, in either encoding.
func TestSaveOmitsNextForNoOutFlowNodes(t *testing.T) {
	g, _ := newFixture(t)
	doc := Save(g, nil)

	buildRec := doc.Nodes[2]
	if buildRec.Next != nil {
		t.Fatalf("Save: build record Next = %v, want nil", *buildRec.Next)
	}

	data, err := json.Marshal(buildRec)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if bytes.Contains(data, []byte(`"next"`)) {
		t.Fatalf("json.Marshal(build record) = %s, want no \"next\" key", data)
	}

	ydata, err := yaml.Marshal(buildRec)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	if bytes.Contains(ydata, []byte("next")) {
		t.Fatalf("yaml.Marshal(build record) = %s, want no \"next\" key", ydata)
	}

	addRec := doc.Nodes[1]
	if addRec.Next == nil {
		t.Fatalf("Save: add record Next = nil, want non-nil (HasOutFlow)")
	}
	data, err = json.Marshal(addRec)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if !bytes.Contains(data, []byte(`"next"`)) {
		t.Fatalf("json.Marshal(add record) = %s, want a \"next\" key", data)
	}
}

func TestWireRecordJSONShapes(t *testing.T) {
	tests := []struct {
		Name string
		W    WireRecord
		Want string
	}{
		{"unbound", WireRecord{Unbound: true}, "null"},
		{"immediate", WireRecord{Immediate: "3.14"}, `"3.14"`},
		{"link", WireRecord{Link: &LinkRecord{Node: 2, Pin: 1}}, `{"node":2,"pin":1}`},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			data, err := json.Marshal(test.W)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != test.Want {
				t.Fatalf("Marshal = %s, want %s", data, test.Want)
			}
		})
	}
}
