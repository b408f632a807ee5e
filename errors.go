// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"fmt"
	"io/fs"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned if a requested entry is not part of the archive.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidArchive is returned if the archive is malformed.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrUnsupportedFormat is returned by [Open] if the file is neither a tar.gz
	// nor a zip archive.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsupportedDestination is returned if an entry cannot be extracted to
	// the requested [Destination], e.g. a directory to a single file.
	ErrUnsupportedDestination = errors.New("unsupported destination")

	// ErrUnsupportedFile is returned for entries that cannot be created on disk,
	// e.g. devices, FIFOs, hard links or denied symlinks.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrMaxFilesExceeded indicates that the maximum number of files is exceeded.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded indicates that the maximum size is exceeded.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")
)

// invalidArchive marks err as a format error. File system errors are
// returned unchanged so callers can tell I/O and format problems apart.
func invalidArchive(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidArchive, err)
}

// notFound returns an [ErrNotFound] naming the entry.
func notFound(name string) error {
	return errors.Wrapf(ErrNotFound, "%q", name)
}

// unsupportedFile returns an [ErrUnsupportedFile] naming the entry.
func unsupportedFile(name string) error {
	return errors.Wrapf(ErrUnsupportedFile, "%q", name)
}
