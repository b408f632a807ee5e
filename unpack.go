// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"
)

// unpacker writes archive entries below a destination directory and keeps
// track of the limits and telemetry of one extraction.
type unpacker struct {
	cfg     *Config
	t       Target
	dst     string
	td      *TelemetryData
	files   int64
	written int64
}

// newUnpacker prepares an extraction of archive type typ into dst.
func newUnpacker(typ string, dst string, cfg *Config) *unpacker {
	return &unpacker{
		cfg: cfg,
		t:   cfg.Target(),
		dst: dst,
		td:  &TelemetryData{ExtractedType: typ},
	}
}

// handleError increases the error counter, sets the latest error and
// decides if extraction should continue.
func (u *unpacker) handleError(msg string, err error) error {
	u.td.ExtractionErrors++
	u.td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)

	// do not end on error
	if u.cfg.ContinueOnError() {
		u.cfg.Logger().Error(msg, "error", err)
		return nil
	}

	return u.td.LastExtractionError
}

// fail records err and ends the extraction regardless of ContinueOnError.
func (u *unpacker) fail(msg string, err error) error {
	u.td.ExtractionErrors++
	u.td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)
	return u.td.LastExtractionError
}

// prepare ensures the destination directory exists, creating it if configured.
func (u *unpacker) prepare() error {
	if len(u.dst) == 0 {
		return nil
	}
	_, err := u.t.Lstat(u.dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !u.cfg.CreateDestination() {
		return fmt.Errorf("destination does not exist: %w", err)
	}
	if err := u.t.CreateDir(u.dst, u.cfg.CustomCreateDirMode()); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	u.cfg.Logger().Info("created destination directory", "path", u.dst)
	return nil
}

// run extracts every entry of w. Read errors and exceeded limits always end
// the extraction; failures of single entries end it unless ContinueOnError.
func (u *unpacker) run(w archiveWalker) error {
	if err := u.prepare(); err != nil {
		return u.fail("cannot prepare destination", err)
	}

	u.cfg.Logger().Info("start extraction", "type", w.Type(), "destination", u.dst)
	for {
		ae, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return u.fail("cannot read archive", err)
		}

		u.files++
		if err := u.cfg.CheckMaxFiles(u.files); err != nil {
			return u.fail("max objects check failed", err)
		}

		if err := u.entry(ae); err != nil {
			if errors.Is(err, ErrMaxExtractionSizeExceeded) {
				return u.fail("max extraction size exceeded", err)
			}
			if err := u.handleError(fmt.Sprintf("cannot extract %q", ae.Name()), err); err != nil {
				return err
			}
		}
	}
}

// entry recreates a single archive member below the destination.
func (u *unpacker) entry(ae archiveEntry) error {
	name := ae.Name()
	u.cfg.Logger().Debug("extract", "name", name)

	switch {
	case ae.IsDir():
		if err := u.dir(name, u.dirMode(ae)); err != nil {
			return err
		}
		u.td.ExtractedDirs++
		return nil

	case ae.IsRegular():
		if err := u.cfg.CheckExtractionSize(u.written + ae.Size()); err != nil {
			return err
		}
		src, err := ae.Open()
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer src.Close()
		if err := u.file(name, src, u.fileMode(ae)); err != nil {
			return err
		}
		u.td.ExtractedFiles++
		return u.attributes(localPath(name), ae)

	case ae.IsSymlink():
		if u.cfg.DenySymlinkExtraction() {
			return u.unsupported(name)
		}
		target, err := ae.Linkname()
		if err != nil {
			return err
		}
		if err := u.symlink(name, target); err != nil {
			return err
		}
		u.td.ExtractedSymlinks++
		return u.attributes(localPath(name), ae)

	default:
		return u.unsupported(name)
	}
}

// unsupported skips name if configured, otherwise reports it.
func (u *unpacker) unsupported(name string) error {
	if u.cfg.ContinueOnUnsupportedFiles() {
		u.cfg.Logger().Info("skipped unsupported file", "name", name)
		u.td.UnsupportedFiles++
		u.td.LastUnsupportedFile = name
		return nil
	}
	return unsupportedFile(name)
}

// dir creates directory name, including missing parents, below the destination.
func (u *unpacker) dir(name string, mode fs.FileMode) error {
	if len(name) == 0 {
		return fmt.Errorf("cannot create directory without name")
	}
	name = localPath(name)
	if name == "." {
		return nil
	}
	if err := checkPath(u.t, u.dst, name, u.cfg); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}
	return u.t.CreateDir(filepath.Join(u.dst, name), mode)
}

// file creates file name with the content of src below the destination.
func (u *unpacker) file(name string, src io.Reader, mode fs.FileMode) error {
	if len(name) == 0 {
		return fmt.Errorf("cannot create file without name")
	}
	name = localPath(name)
	if err := u.dir(filepath.Dir(name), u.cfg.CustomCreateDirMode()); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if err := checkPath(u.t, u.dst, name, u.cfg); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}

	remaining := int64(-1)
	if u.cfg.MaxExtractionSize() >= 0 {
		remaining = u.cfg.MaxExtractionSize() - u.written
	}
	n, err := u.t.CreateFile(filepath.Join(u.dst, name), src, mode, u.cfg.Overwrite(), remaining)
	u.written += n
	u.td.ExtractionSize = u.written
	if errors.Is(err, io.ErrShortWrite) {
		return ErrMaxExtractionSizeExceeded
	}
	return err
}

// symlink creates symlink name pointing to linkTarget below the destination.
// Absolute targets and targets leaving the destination are rejected.
func (u *unpacker) symlink(name string, linkTarget string) error {
	if len(name) == 0 {
		return fmt.Errorf("cannot create symlink without name")
	}
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("symlink with absolute path as target: %s", linkTarget)
	}

	name = localPath(name)
	linkDir := filepath.Dir(name)
	if err := u.dir(linkDir, u.cfg.CustomCreateDirMode()); err != nil {
		return fmt.Errorf("cannot create directory for symlink: %w", err)
	}
	if err := checkPath(u.t, u.dst, name, u.cfg); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}
	if err := checkPath(u.t, u.dst, filepath.Join(linkDir, linkTarget), u.cfg); err != nil {
		return fmt.Errorf("symlink target security check path failed: %w", err)
	}
	return u.t.CreateSymlink(linkTarget, filepath.Join(u.dst, name), u.cfg.Overwrite())
}

// attributes restores permissions and timestamps of an extracted entry.
func (u *unpacker) attributes(name string, ae archiveEntry) error {
	if u.cfg.DropFileAttributes() {
		return nil
	}
	path := filepath.Join(u.dst, name)

	if ae.IsSymlink() {
		if ae.ModTime().IsZero() {
			return nil
		}
		if err := u.t.Lchtimes(path, ae.ModTime(), ae.ModTime()); err != nil {
			return fmt.Errorf("failed to set symlink times: %w", err)
		}
		return nil
	}

	if err := u.t.Chmod(path, u.fileMode(ae)); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if !ae.ModTime().IsZero() {
		if err := u.t.Chtimes(path, ae.ModTime(), ae.ModTime()); err != nil {
			return fmt.Errorf("failed to set file times: %w", err)
		}
	}
	return nil
}

// fileMode returns the permissions of ae, or the configured default if the
// archive carries none.
func (u *unpacker) fileMode(ae archiveEntry) fs.FileMode {
	if perm := ae.Mode().Perm(); perm != 0 {
		return perm
	}
	return u.cfg.CustomFileMode()
}

// dirMode returns the permissions of a directory entry, or the configured
// default if the archive carries none.
func (u *unpacker) dirMode(ae archiveEntry) fs.FileMode {
	if perm := ae.Mode().Perm(); perm != 0 {
		return perm
	}
	return u.cfg.CustomCreateDirMode()
}

// extractAll unpacks every entry of w below dir and emits telemetry.
func extractAll(w archiveWalker, dir string, cfg *Config) error {
	u := newUnpacker(w.Type(), dir, cfg)
	defer cfg.TelemetryHook()(u.td)
	defer captureExtractionDuration(u.td, now())
	return u.run(w)
}

// extractEntry writes a single entry to dst and emits telemetry.
func extractEntry(typ string, ae archiveEntry, dst Destination, cfg *Config) error {
	if dst.IsDir() {
		u := newUnpacker(typ, dst.Path(), cfg)
		u.td.Entry = ae.Name()
		defer cfg.TelemetryHook()(u.td)
		defer captureExtractionDuration(u.td, now())

		if err := u.prepare(); err != nil {
			return u.fail("cannot prepare destination", err)
		}
		u.files++
		if err := u.entry(ae); err != nil {
			return u.fail(fmt.Sprintf("cannot extract %q", ae.Name()), err)
		}
		return nil
	}

	// single file destination: the entry content is written to the path itself
	u := newUnpacker(typ, filepath.Dir(dst.Path()), cfg)
	u.td.Entry = ae.Name()
	defer cfg.TelemetryHook()(u.td)
	defer captureExtractionDuration(u.td, now())

	if len(dst.Path()) == 0 {
		return u.fail("invalid destination", fmt.Errorf("empty file path"))
	}
	if !ae.IsRegular() {
		return u.fail(fmt.Sprintf("cannot extract %q", ae.Name()),
			errors.Wrapf(ErrUnsupportedDestination, "%q is not a regular file and cannot be written to %s", ae.Name(), dst))
	}
	if err := u.prepare(); err != nil {
		return u.fail("cannot prepare destination", err)
	}
	if err := u.cfg.CheckExtractionSize(ae.Size()); err != nil {
		return u.fail("max extraction size exceeded", err)
	}

	src, err := ae.Open()
	if err != nil {
		return u.fail("failed to open file", err)
	}
	defer src.Close()

	base := filepath.Base(dst.Path())
	if err := u.file(base, src, u.fileMode(ae)); err != nil {
		return u.fail(fmt.Sprintf("cannot extract %q", ae.Name()), err)
	}
	u.td.ExtractedFiles++
	if err := u.attributes(base, ae); err != nil {
		return u.fail(fmt.Sprintf("cannot extract %q", ae.Name()), err)
	}
	return nil
}
