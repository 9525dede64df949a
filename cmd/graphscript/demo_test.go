// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"os"
	"reflect"
	"testing"

	"firefly-os.dev/graphscript/universe"
)

func TestBuildCatalogIncludesEverythingByDefault(t *testing.T) {
	r := universe.NewRegistry()
	types := buildCatalog(r, io.Discard, nil)

	if _, ok := types["event:Start"]; !ok {
		t.Fatalf("buildCatalog: missing Start event type")
	}
	if len(types) != len(demoFuncs)+1 {
		t.Fatalf("buildCatalog: got %d types, want %d", len(types), len(demoFuncs)+1)
	}
}

func TestBuildCatalogRespectsEnabled(t *testing.T) {
	r := universe.NewRegistry()
	types := buildCatalog(r, io.Discard, map[string]bool{"add": true})

	if len(types) != 2 { // Start + add
		t.Fatalf("buildCatalog: got %d types, want 2", len(types))
	}
	if _, ok := types["event:Start"]; !ok {
		t.Fatalf("buildCatalog: missing Start event type")
	}
}

func TestPrintIntWritesToSuppliedWriter(t *testing.T) {
	var buf bytes.Buffer
	r := universe.NewRegistry()
	buildUniverse(r)

	for _, df := range demoFuncs {
		if df.Name != "printInt" {
			continue
		}

		nt := df.New(r, &buf)

		slot := reflect.New(reflect.TypeOf(42)).Elem()
		slot.SetInt(42)

		out, err := nt.Evaluate([]reflect.Value{slot.Addr()})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(out) != 0 {
			t.Fatalf("printInt returned %d outputs, want 0", len(out))
		}
		if got, want := buf.String(), "42\n"; got != want {
			t.Fatalf("output = %q, want %q", got, want)
		}
		return
	}
	t.Fatalf("no demoFunc named printInt")
}

func TestLoadManifestRejectsUnknownFunction(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/manifest.toml"
	if err := os.WriteFile(path, []byte("functions = [\"not-a-function\"]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := loadManifest(path); err == nil {
		t.Fatalf("loadManifest accepted an unknown function name")
	}
}

func TestLoadManifestAcceptsKnownFunctions(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/manifest.toml"
	if err := os.WriteFile(path, []byte("functions = [\"add\", \"mul\"]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	enabled, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if !enabled["add"] || !enabled["mul"] || enabled["bytesLen"] {
		t.Fatalf("loadManifest enabled = %v, want exactly add, mul", enabled)
	}
}
