// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Manifest restricts buildCatalog to a named subset of demoFuncs, for
// hosts that want to expose less than the full demo universe to a
// loaded graph document.
type Manifest struct {
	Functions []string `toml:"functions"`
}

// loadManifest reads and validates a TOML manifest file. Every named
// function must match a demoFuncs entry; an unrecognised name is
// refused rather than silently ignored.
func loadManifest(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	known := make(map[string]bool, len(demoFuncs))
	for _, df := range demoFuncs {
		known[df.Name] = true
	}

	enabled := make(map[string]bool, len(m.Functions))
	for _, name := range m.Functions {
		if !known[name] {
			return nil, fmt.Errorf("manifest names unknown function %q", name)
		}
		enabled[name] = true
	}

	return enabled, nil
}
