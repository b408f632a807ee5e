// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"archive/tar"
	"io"
	"io/fs"
	"iter"
	"time"

	"github.com/hashicorp/go-kapsule/charset"
)

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// tarWalker walks the records of a tar stream
type tarWalker struct {
	tr       *tar.Reader
	resolver *charset.Resolver
	typ      string
}

// Type returns the archive type
func (t *tarWalker) Type() string {
	return t.typ
}

// Next returns the next entry in the tar archive. Global pax headers carry no
// member and are skipped.
func (t *tarWalker) Next() (archiveEntry, error) {
	for {
		hdr, err := t.tr.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, invalidArchive(err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		return &tarEntry{
			hdr:  hdr,
			tr:   t.tr,
			name: t.resolver.GuessAndDecode([]byte(hdr.Name)),
		}, nil
	}
}

// tarNames yields the raw member names of tr until the end of the stream or
// the first damaged record.
func tarNames(tr *tar.Reader) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			hdr, err := tr.Next()
			if err != nil {
				return
			}
			if hdr.Typeflag == tar.TypeXGlobalHeader {
				continue
			}
			if !yield([]byte(hdr.Name)) {
				return
			}
		}
	}
}

// tarEntry is an entry in a tar archive
type tarEntry struct {
	hdr  *tar.Header
	tr   *tar.Reader
	name string
}

// Name returns the decoded name of the entry
func (t *tarEntry) Name() string {
	return t.name
}

// Size returns the size of the entry
func (t *tarEntry) Size() int64 {
	return t.hdr.Size
}

// Mode returns the mode of the entry
func (t *tarEntry) Mode() fs.FileMode {
	return t.hdr.FileInfo().Mode()
}

// ModTime returns the modification time of the entry
func (t *tarEntry) ModTime() time.Time {
	return t.hdr.ModTime
}

// Linkname returns the link target of the entry
func (t *tarEntry) Linkname() (string, error) {
	return t.hdr.Linkname, nil
}

// IsRegular returns true if the entry is a regular file
func (t *tarEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

// IsDir returns true if the entry is a directory
func (t *tarEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

// IsSymlink returns true if the entry is a symlink
func (t *tarEntry) IsSymlink() bool {
	return t.hdr.Typeflag == tar.TypeSymlink
}

// Open returns a reader for the entry. The content is only readable until
// the walker moves on.
func (t *tarEntry) Open() (io.ReadCloser, error) {
	return noopReaderCloser{t.tr}, nil
}
