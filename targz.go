// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"archive/tar"
	"io"
	"iter"
	"os"

	"github.com/hashicorp/go-kapsule/charset"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	// fileExtensionTarGZip is the file extension for tar archives compressed with gzip.
	fileExtensionTarGZip = "tar.gz"

	// fileExtensionTgz is the short file extension for tar archives compressed with gzip.
	fileExtensionTgz = "tgz"
)

// magicBytesGZip are the magic bytes for gzip compressed files.
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the magic bytes for gzip compressed files.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// TarGz is an [Archive] over a gzip compressed tar stream. The format has no
// index, so every operation scans the stream from its start.
type TarGz struct {
	cfg      *Config
	f        *os.File
	gz       *gzip.Reader
	resolver *charset.Resolver
}

// OpenTarGz opens the tar.gz archive at path. It fails if the file cannot be
// opened or does not start with a valid gzip header; malformed tar records are
// reported lazily by the operations that read them. A nil cfg selects the
// default configuration.
func OpenTarGz(path string, cfg *Config) (*TarGz, error) {
	cfg = orDefault(cfg)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open archive")
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, invalidArchive(err)
	}

	cfg.Logger().Debug("opened archive", "type", fileExtensionTarGZip, "path", path)
	return &TarGz{cfg: cfg, f: f, gz: gz}, nil
}

// rewind positions the archive at its first record and returns a fresh walker.
// The first call samples the member names for the charset resolver, which
// costs one extra pass over the stream.
func (a *TarGz) rewind() (archiveWalker, error) {
	if a.resolver == nil {
		if err := a.reset(); err != nil {
			return nil, err
		}
		a.resolver = a.cfg.resolver().WithNames(tarNames(tar.NewReader(a.gz)))
	}
	if err := a.reset(); err != nil {
		return nil, err
	}
	return &tarWalker{tr: tar.NewReader(a.gz), resolver: a.resolver, typ: fileExtensionTarGZip}, nil
}

// reset seeks back to the start of the compressed stream.
func (a *TarGz) reset() error {
	if _, err := a.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "cannot rewind archive")
	}
	if err := a.gz.Reset(a.f); err != nil {
		return invalidArchive(err)
	}
	return nil
}

// Entries returns the members in stream order. Every call starts a new scan at
// the beginning of the archive. A malformed record ends the sequence with an
// error wrapping [ErrInvalidArchive]; entries yielded before remain valid.
func (a *TarGz) Entries() iter.Seq2[Entry, error] {
	return walkEntries(a.rewind)
}

// Extract scans the archive for the first entry named name and writes it to dst.
// It returns [ErrNotFound] if no entry matches, without touching the file system.
func (a *TarGz) Extract(name string, dst Destination) error {
	w, err := a.rewind()
	if err != nil {
		return err
	}
	ae, err := findEntry(w, name)
	if err != nil {
		return err
	}
	return extractEntry(w.Type(), ae, dst, a.cfg)
}

// ExtractAll recreates the archive tree below dir.
func (a *TarGz) ExtractAll(dir string) error {
	w, err := a.rewind()
	if err != nil {
		return err
	}
	return extractAll(w, dir, a.cfg)
}

// Close releases the decompressor and the underlying file.
func (a *TarGz) Close() error {
	gzErr := a.gz.Close()
	if err := a.f.Close(); err != nil {
		return err
	}
	return gzErr
}
