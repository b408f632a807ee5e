// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// TargetDisk is the [Target] that writes to the local file system.
type TargetDisk struct{}

// NewTargetDisk creates a new [TargetDisk].
func NewTargetDisk() *TargetDisk {
	return &TargetDisk{}
}

// CreateDir creates path and missing parents with mode. Existing directories
// are left untouched.
func (d *TargetDisk) CreateDir(path string, mode fs.FileMode) error {
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory (%w)", err)
	}
	return nil
}

// CreateFile writes src to path. See [Target.CreateFile] for the contract. An
// existing symlink at path is replaced, never written through.
func (d *TargetDisk) CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	stat, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("invalid path: %w", err)
	case !overwrite:
		return 0, fmt.Errorf("file already exists: %w", fs.ErrExist)
	case !stat.Mode().IsRegular():
		if err := os.Remove(path); err != nil {
			return 0, fmt.Errorf("failed to overwrite file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(limitWriter(f, maxSize), src)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, f.Close()
}

// CreateSymlink creates newname pointing to oldname. An existing newname is
// an error unless overwrite is set, in which case it is removed first.
func (d *TargetDisk) CreateSymlink(oldname string, newname string, overwrite bool) error {
	if _, err := os.Lstat(newname); !errors.Is(err, fs.ErrNotExist) {
		if !overwrite {
			return fmt.Errorf("file already exists: %w", fs.ErrExist)
		}
		if err := os.Remove(newname); err != nil {
			return fmt.Errorf("failed to overwrite file: %w", err)
		}
	}

	if err := os.Symlink(oldname, newname); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// Lstat describes name without following a final symlink. See [os.Lstat].
func (d *TargetDisk) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

// Stat describes name. See [os.Stat].
func (d *TargetDisk) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Chmod sets the permission bits of name.
func (d *TargetDisk) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode.Perm())
}

// Chtimes sets the access and modification times of name.
func (d *TargetDisk) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Lchtimes sets the access and modification times of the symlink name. It
// does nothing on platforms without support.
func (d *TargetDisk) Lchtimes(name string, atime, mtime time.Time) error {
	return lchtimes(name, atime, mtime)
}
