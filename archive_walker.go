// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"io"
	"io/fs"
	"iter"
	"strings"
	"time"
)

// archiveWalker is an interface that represents a forward cursor over the
// members of an archive. Next returns io.EOF after the last member.
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a member of an archive. Name
// returns the decoded name.
type archiveEntry interface {
	IsDir() bool
	IsRegular() bool
	IsSymlink() bool
	Linkname() (string, error)
	Mode() fs.FileMode
	ModTime() time.Time
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
}

// walkEntries turns the walker returned by start into a lazy entry sequence. A
// read error is yielded once and ends the sequence.
func walkEntries(start func() (archiveWalker, error)) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		w, err := start()
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for {
			ae, err := w.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(toEntry(ae), nil) {
				return
			}
		}
	}
}

// matchesName reports whether the entry is addressed by name. Directory
// entries also match without their trailing slash.
func matchesName(ae archiveEntry, name string) bool {
	if ae.Name() == name {
		return true
	}
	return ae.IsDir() && strings.TrimSuffix(ae.Name(), "/") == name
}

// findEntry scans w for the first entry addressed by name.
func findEntry(w archiveWalker, name string) (archiveEntry, error) {
	for {
		ae, err := w.Next()
		if err == io.EOF {
			return nil, notFound(name)
		}
		if err != nil {
			return nil, err
		}
		if matchesName(ae, name) {
			return ae, nil
		}
	}
}

// noopReaderCloser wraps a reader whose lifetime is owned by the archive.
type noopReaderCloser struct {
	io.Reader
}

// Close does nothing.
func (noopReaderCloser) Close() error {
	return nil
}
