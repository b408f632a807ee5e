// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"io/fs"
	"time"
)

// Entry describes one member of an archive. Entries are built fresh on every
// listing and carry no identity across listings.
type Entry struct {
	// Name is the member path, decoded to UTF-8.
	Name string

	// Size is the uncompressed size in bytes.
	Size int64

	// Mode holds the type and permission bits recorded in the archive.
	Mode fs.FileMode

	// ModTime is the modification time recorded in the archive.
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Mode.IsDir()
}

// toEntry builds the public record for an archive member.
func toEntry(ae archiveEntry) Entry {
	return Entry{
		Name:    ae.Name(),
		Size:    ae.Size(),
		Mode:    ae.Mode(),
		ModTime: ae.ModTime(),
	}
}
