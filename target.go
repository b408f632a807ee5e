// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Target specifies all functions that are needed to write extracted entries.
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. If the
	// file does not exist, it should be created. The size of the file should not exceed maxSize. The number of bytes
	// written is returned, also along with an error. If maxSize < 0, the file size is not limited.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates at the specified path with the specified mode. If the directory already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// CreateSymlink creates a symbolic link from newname to oldname. If newname already exists and overwrite is false,
	// the function returns an error. If newname already exists and overwrite is true, the existing entry is replaced.
	CreateSymlink(oldname string, newname string, overwrite bool) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the extraction path
	// and for zip-slip attacks.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for os.Stat.
	Stat(path string) (fs.FileInfo, error)

	// Chmod see docs for os.Chmod.
	Chmod(name string, mode fs.FileMode) error

	// Chtimes see docs for os.Chtimes.
	Chtimes(name string, atime, mtime time.Time) error

	// Lchtimes changes the timestamps of a symlink itself instead of its target.
	Lchtimes(name string, atime, mtime time.Time) error
}

// localPath converts a slash separated entry name into an os specific relative path.
func localPath(name string) string {
	return filepath.Join(strings.Split(name, "/")...)
}

// checkPath verifies that name, relative to dst, stays inside dst and that no
// existing element of the path is a symlink. Symlinks are tolerated with a
// warning if traversing them is explicitly allowed.
func checkPath(t Target, dst string, name string, cfg *Config) error {
	if len(dst) == 0 && filepath.IsAbs(name) {
		return fmt.Errorf("absolute path detected")
	}

	name = localPath(name)
	rel, err := filepath.Rel(dst, filepath.Join(dst, name))
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("path traversal detected")
	}

	// walk every element below dst
	elements := strings.Split(name, string(os.PathSeparator))
	for i := range elements {
		sub := filepath.Join(elements[:i+1]...)
		check := filepath.Join(dst, sub)
		if len(check) == 0 || check == "." {
			continue
		}

		stat, err := t.Lstat(check)
		if errors.Is(err, fs.ErrNotExist) {
			// nothing below a missing element can exist
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if stat.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		if !cfg.TraverseSymlinks() {
			return fmt.Errorf("symlink in path: %s", sub)
		}
		cfg.Logger().Warn("traverse symlink", "sub-dir", sub)
	}

	return nil
}
