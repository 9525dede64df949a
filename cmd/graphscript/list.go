// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"firefly-os.dev/graphscript/universe"
)

// listMain implements the list subcommand: print the demo catalog's
// node type ids, optionally restricted by the same manifest run uses.
func listMain(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("list", flag.ExitOnError)

	var manifestPath string
	flags.StringVar(&manifestPath, "catalog-manifest", "", "Optional TOML manifest restricting the demo catalog")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s %s [OPTIONS]\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	if err := flags.Parse(args); err != nil {
		return err
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

	ids := make([]string, 0, len(types))
	for id := range types {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(w, "%-40s %s\n", id, types[id].Label)
	}
	return nil
}
