// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Archive is the format independent view on an opened archive. Callers program
// against this interface and never branch on the container format.
//
// An Archive must not be used concurrently; operations run sequentially and
// synchronously.
type Archive interface {
	// Entries returns the members of the archive in the container's native order.
	Entries() iter.Seq2[Entry, error]

	// Extract writes the entry named name to dst.
	Extract(name string, dst Destination) error

	// ExtractAll recreates the whole archive tree below dir.
	ExtractAll(dir string) error

	// Close releases the underlying file.
	io.Closer
}

var (
	_ Archive = (*TarGz)(nil)
	_ Archive = (*Zip)(nil)
)

// maxHeaderLength is the number of bytes needed to identify every supported format
var maxHeaderLength = offsetTar + len(magicBytesTar[0])

// Open opens the archive at path with the backend matching its content. The
// format is identified once by magic bytes: a zip signature selects [Zip], a
// gzip stream containing a tar archive selects [TarGz]. Files that cannot be
// identified by content fall back to their extension (.zip, .tar.gz, .tgz).
// Anything else is rejected with [ErrUnsupportedFormat].
func Open(path string, cfg *Config) (Archive, error) {
	cfg = orDefault(cfg)

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	cfg.Logger().Debug("detected archive format", "path", path, "format", format)

	switch format {
	case fileExtensionZip:
		return OpenZip(path, cfg)
	case fileExtensionTarGZip:
		return OpenTarGz(path, cfg)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// detectFormat identifies the archive format of the file at path.
func detectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "cannot open archive")
	}
	defer f.Close()

	header, err := peekHeader(f, maxHeaderLength)
	if err != nil {
		return "", err
	}

	switch {
	case isZip(header):
		return fileExtensionZip, nil

	case isGZip(header):
		if hasSuffix(path, fileExtensionTarGZip, fileExtensionTgz) {
			return fileExtensionTarGZip, nil
		}
		gz, err := gzip.NewReader(io.MultiReader(bytes.NewReader(header), f))
		if err != nil {
			return "", invalidArchive(err)
		}
		defer gz.Close()
		inner, err := peekHeader(gz, maxHeaderLength)
		if err != nil {
			return "", invalidArchive(err)
		}
		if isTar(inner) {
			return fileExtensionTarGZip, nil
		}
		return "", errors.Wrap(ErrUnsupportedFormat, "gzip stream does not contain a tar archive")
	}

	// no signature found, trust the file extension
	switch {
	case hasSuffix(path, fileExtensionZip):
		return fileExtensionZip, nil
	case hasSuffix(path, fileExtensionTarGZip, fileExtensionTgz):
		return fileExtensionTarGZip, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// peekHeader reads up to n bytes from r. A shorter input is not an error.
func peekHeader(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return buf[:read], nil
}

// matchesMagicBytes checks if data contains one of magicBytes at offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}
	return false
}

// hasSuffix reports whether path ends with one of the file extensions, ignoring case.
func hasSuffix(path string, extensions ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}
