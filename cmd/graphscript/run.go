// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"firefly-os.dev/graphscript/codec"
	"firefly-os.dev/graphscript/compiler"
	"firefly-os.dev/graphscript/event"
	"firefly-os.dev/graphscript/universe"
)

// argList collects repeated -arg flags, in order.
type argList []string

func (a *argList) String() string { return strings.Join(*a, ",") }
func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

// runMain implements the run subcommand: load a graph document,
// compile it from one event node, and execute it once.
func runMain(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)

	var graphPath, manifestPath string
	var entry int
	var rawArgs argList
	flags.StringVar(&graphPath, "graph", "", "Path to a graph document (.json or .yaml)")
	flags.StringVar(&manifestPath, "catalog-manifest", "", "Optional TOML manifest restricting the demo catalog")
	flags.IntVar(&entry, "entry", 0, "Index of the event node to compile and run")
	flags.Var(&rawArgs, "arg", "An event argument, passed positionally (repeatable)")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s %s -graph FILE [OPTIONS]\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	if graphPath == "" {
		flags.Usage()
	}

	var enabled map[string]bool
	if manifestPath != "" {
		m, err := loadManifest(manifestPath)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
		enabled = m
	}

	r := universe.NewRegistry()
	types := buildCatalog(r, w, enabled)

	doc, err := readDocument(graphPath)
	if err != nil {
		return fmt.Errorf("read graph: %w", err)
	}

	g, err := codec.Load(types, doc)
	if err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}

	p, err := compiler.Compile(g, entry, r)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	callArgs := make([]any, len(rawArgs))
	for i, text := range rawArgs {
		v, err := parseArg(p.ArgTypes[i], text)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		callArgs[i] = v
	}

	ev, err := event.Bind(p, p.ArgTypes...)
	if err != nil {
		return fmt.Errorf("bind event: %w", err)
	}

	return ev.Invoke(callArgs...)
}

// readDocument decodes a graph document, choosing JSON or YAML by
// file extension.
func readDocument(path string) (codec.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return codec.Document{}, err
	}

	var doc codec.Document
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		return codec.Document{}, fmt.Errorf("unrecognised graph document extension %q", ext)
	}
	return doc, err
}

// parseArg parses a command-line event argument into a value of type
// t, the way the compiler parses immediates for the two built-in
// numeric kinds (integer and float); a string-typed argument takes
// the text as-is. Other argument types are not supported from the
// command line.
func parseArg(t reflect.Type, text string) (any, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(f).Convert(t).Interface(), nil
	case reflect.String:
		return text, nil
	default:
		return nil, fmt.Errorf("unsupported command-line argument type %s", t)
	}
}
