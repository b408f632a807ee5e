// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"io"
	"io/fs"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-kapsule/charset"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// fileExtensionZip is the file extension for zip files.
const fileExtensionZip = "zip"

// zipFlagUTF8 marks names and comments as UTF-8 (APPNOTE 4.4.4, bit 11).
const zipFlagUTF8 = 0x800

// magicBytesZip contains the magic bytes for a zip archive: a local file
// header or, for an archive without members, the end of central directory.
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04},
	{0x50, 0x4B, 0x05, 0x06},
}

// isZip checks if data is a zip archive.
func isZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesZip)
}

// Zip is an [Archive] over a zip file. The central directory is parsed when the
// archive is opened and kept in memory for the lifetime of the handle.
type Zip struct {
	cfg      *Config
	f        *os.File
	zr       *zip.Reader
	resolver *charset.Resolver

	// index maps decoded names to central directory positions, built on first lookup
	index map[string]int
}

// OpenZip opens the zip archive at path and reads its central directory. It
// fails with an error wrapping [ErrInvalidArchive] if the directory is missing
// or malformed. A nil cfg selects the default configuration.
func OpenZip(path string, cfg *Config) (*Zip, error) {
	cfg = orDefault(cfg)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open archive")
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "cannot stat archive")
	}

	zr, err := zip.NewReader(f, stat.Size())
	if zr == nil {
		f.Close()
		return nil, invalidArchive(err)
	}
	if err != nil {
		// insecure names are listed, extraction rejects them per entry
		cfg.Logger().Warn("archive contains insecure paths", "path", path, "error", err)
	}

	cfg.Logger().Debug("opened archive", "type", fileExtensionZip, "path", path, "entries", len(zr.File))
	return &Zip{cfg: cfg, f: f, zr: zr, resolver: cfg.resolver().WithNames(legacyNames(zr))}, nil
}

// legacyNames yields the raw names not flagged as UTF-8.
func legacyNames(zr *zip.Reader) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, zf := range zr.File {
			if zf.Flags&zipFlagUTF8 == 0 && !yield([]byte(zf.Name)) {
				return
			}
		}
	}
}

// walk returns a walker positioned before the first central directory record.
func (a *Zip) walk() (archiveWalker, error) {
	return &zipWalker{archive: a}, nil
}

// decodeName returns the UTF-8 name of zf. Names flagged as UTF-8 are taken
// as is, all others go through the charset resolver.
func (a *Zip) decodeName(zf *zip.File) string {
	if zf.Flags&zipFlagUTF8 != 0 {
		return charset.Decode([]byte(zf.Name), nil)
	}
	return a.resolver.GuessAndDecode([]byte(zf.Name))
}

// lookup returns the position of the entry addressed by name. Exact names take
// precedence over directory names given without trailing slash, the first
// occurrence wins.
func (a *Zip) lookup(name string) (int, bool) {
	if a.index == nil {
		a.index = make(map[string]int, len(a.zr.File))
		names := make([]string, len(a.zr.File))
		for i, zf := range a.zr.File {
			names[i] = a.decodeName(zf)
			if _, ok := a.index[names[i]]; !ok {
				a.index[names[i]] = i
			}
		}
		for i, n := range names {
			trimmed := strings.TrimSuffix(n, "/")
			if _, ok := a.index[trimmed]; !ok && trimmed != n && a.zr.File[i].Mode().IsDir() {
				a.index[trimmed] = i
			}
		}
	}
	i, ok := a.index[name]
	return i, ok
}

// Entries returns the members in central directory order. The sequence can be
// iterated any number of times.
func (a *Zip) Entries() iter.Seq2[Entry, error] {
	return walkEntries(a.walk)
}

// Extract writes the entry named name to dst. It returns [ErrNotFound] if the
// central directory has no such entry, without touching the file system.
func (a *Zip) Extract(name string, dst Destination) error {
	i, ok := a.lookup(name)
	if !ok {
		return notFound(name)
	}
	zf := a.zr.File[i]
	return extractEntry(fileExtensionZip, &zipEntry{zf: zf, name: a.decodeName(zf)}, dst, a.cfg)
}

// ExtractAll recreates every member below dir.
func (a *Zip) ExtractAll(dir string) error {
	w, err := a.walk()
	if err != nil {
		return err
	}
	return extractAll(w, dir, a.cfg)
}

// Close releases the underlying file.
func (a *Zip) Close() error {
	return a.f.Close()
}

// zipWalker walks the central directory by index
type zipWalker struct {
	archive *Zip
	fp      int
}

// Type returns the file extension for zip files
func (z *zipWalker) Type() string {
	return fileExtensionZip
}

// Next returns the next entry in the zip archive
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.archive.zr.File) {
		return nil, io.EOF
	}
	zf := z.archive.zr.File[z.fp]
	z.fp++
	return &zipEntry{zf: zf, name: z.archive.decodeName(zf)}, nil
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf   *zip.File
	name string
}

// Name returns the decoded name of the entry
func (z *zipEntry) Name() string {
	return z.name
}

// Size returns the uncompressed size of the entry
func (z *zipEntry) Size() int64 {
	return int64(z.zf.UncompressedSize64)
}

// Mode returns the mode of the entry
func (z *zipEntry) Mode() fs.FileMode {
	return z.zf.Mode()
}

// ModTime returns the modification time of the entry
func (z *zipEntry) ModTime() time.Time {
	return z.zf.Modified
}

// Linkname returns the link target, which zip stores as the entry content
func (z *zipEntry) Linkname() (string, error) {
	rc, err := z.zf.Open()
	if err != nil {
		return "", invalidArchive(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", invalidArchive(err)
	}
	return string(data), nil
}

// IsRegular returns true if the entry is a regular file
func (z *zipEntry) IsRegular() bool {
	return z.zf.Mode().Type() == 0
}

// IsDir returns true if the entry is a directory
func (z *zipEntry) IsDir() bool {
	return z.zf.Mode().IsDir()
}

// IsSymlink returns true if the entry is a symlink
func (z *zipEntry) IsSymlink() bool {
	return z.zf.Mode().Type() == fs.ModeSymlink
}

// Open returns a reader for the entry content
func (z *zipEntry) Open() (io.ReadCloser, error) {
	rc, err := z.zf.Open()
	if err != nil {
		return nil, invalidArchive(err)
	}
	return rc, nil
}
