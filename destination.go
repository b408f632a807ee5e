// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import "fmt"

type destinationKind uint8

const (
	destinationFile destinationKind = iota
	destinationDir
)

// Destination tells [Archive.Extract] where to put an entry: either a single
// output file or a directory in which the entry's relative path is recreated.
type Destination struct {
	kind destinationKind
	path string
}

// ToFile returns a [Destination] that writes the content of a regular file entry
// to path.
func ToFile(path string) Destination {
	return Destination{kind: destinationFile, path: path}
}

// ToDir returns a [Destination] that recreates the entry below dir, creating
// intermediate directories as needed.
func ToDir(dir string) Destination {
	return Destination{kind: destinationDir, path: dir}
}

// Path returns the file or directory path.
func (d Destination) Path() string {
	return d.path
}

// IsDir reports whether d is a directory destination.
func (d Destination) IsDir() bool {
	return d.kind == destinationDir
}

// String implements [fmt.Stringer].
func (d Destination) String() string {
	if d.IsDir() {
		return fmt.Sprintf("dir:%s", d.path)
	}
	return fmt.Sprintf("file:%s", d.path)
}
