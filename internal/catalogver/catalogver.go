// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package catalogver stamps a Node Type Catalog with a semantic
// version and checks a persisted document's recorded version against
// it before Load runs, extending spec §4.7's "shape validation only"
// with one more shape fact: the catalog format version a document
// was written against.
package catalogver

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the catalog format version this build understands.
// Bump the minor/patch component when adding node-type kinds or
// pin shapes in a backward-compatible way; bump major only for a
// breaking change to the persistence document shape (spec §6).
const Version = "v1.0.0"

// Check reports whether a document recorded as written against
// docVersion can be loaded by a running catalog at Version. A
// document from a newer major version is refused, since this build
// cannot know what it means; any non-newer-major version (including
// an empty string, read as "predates version stamping") is accepted.
func Check(docVersion string) error {
	if docVersion == "" {
		return nil
	}
	if !semver.IsValid(docVersion) {
		return fmt.Errorf("catalogver: %q is not a valid semantic version", docVersion)
	}
	sameMajor := semver.Major(docVersion) == semver.Major(Version)
	if !sameMajor && semver.Compare(docVersion, Version) > 0 {
		return fmt.Errorf("catalogver: document catalog version %s is newer than this build's %s", docVersion, Version)
	}
	return nil
}
