// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule_test

import (
	"archive/tar"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-kapsule"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// fixtureTime is the modification time of all fixture entries
var fixtureTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// archiveContent describes one member of a test archive
type archiveContent struct {
	Name       string
	Content    []byte
	Mode       fs.FileMode
	Filetype   byte
	Linktarget string
}

// packTar returns an uncompressed tar stream with the given content
func packTar(t *testing.T, content []archiveContent) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, c := range content {
		hdr := &tar.Header{
			Name:     c.Name,
			Mode:     int64(c.Mode),
			Size:     int64(len(c.Content)),
			Linkname: c.Linktarget,
			Typeflag: c.Filetype,
			ModTime:  fixtureTime,
			Format:   tar.FormatGNU,
		}
		if c.Filetype == tar.TypeXGlobalHeader {
			hdr = &tar.Header{
				Name:       c.Name,
				Typeflag:   tar.TypeXGlobalHeader,
				PAXRecords: map[string]string{"comment": "fixture"},
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("error writing tar header: %v", err)
		}
		if _, err := tw.Write(c.Content); err != nil {
			t.Fatalf("error writing tar data: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("error closing tar writer: %v", err)
	}
	return buf.Bytes()
}

// gzipBytes compresses data with gzip
func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	gw := gzip.NewWriter(buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("error writing gzip data: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("error closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// writeFixture writes data to dir/name and returns the path
func writeFixture(t *testing.T, dir string, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0640); err != nil {
		t.Fatalf("error writing fixture: %v", err)
	}
	return path
}

// createTarGz writes a tar.gz archive with the given content to dir/name
func createTarGz(t *testing.T, dir string, name string, content []archiveContent) string {
	t.Helper()
	return writeFixture(t, dir, name, gzipBytes(t, packTar(t, content)))
}

// createZip writes a zip archive with the given content to dir/name. Names are
// stored without the UTF-8 flag, exactly as given.
func createZip(t *testing.T, dir string, name string, content []archiveContent) string {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, c := range content {
		fh := &zip.FileHeader{
			Name:     c.Name,
			Method:   zip.Deflate,
			NonUTF8:  true,
			Modified: fixtureTime,
		}
		switch c.Filetype {
		case tar.TypeDir:
			fh.Method = zip.Store
			fh.SetMode(fs.ModeDir | c.Mode)
		case tar.TypeSymlink:
			fh.SetMode(fs.ModeSymlink | 0777)
		default:
			fh.SetMode(c.Mode)
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("error writing zip header: %v", err)
		}
		data := c.Content
		if c.Filetype == tar.TypeSymlink {
			data = []byte(c.Linktarget)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("error writing zip data: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("error closing zip writer: %v", err)
	}
	return writeFixture(t, dir, name, buf.Bytes())
}

// fixtureContent is a small tree used by most tests
var fixtureContent = []archiveContent{
	{Name: "project/", Mode: 0755, Filetype: tar.TypeDir},
	{Name: "project/README.md", Content: []byte("# readme\n"), Mode: 0644, Filetype: tar.TypeReg},
	{Name: "project/src/", Mode: 0755, Filetype: tar.TypeDir},
	{Name: "project/src/main.go", Content: []byte("package main\n\nfunc main() {}\n"), Mode: 0644, Filetype: tar.TypeReg},
	{Name: "project/src/util/helper.go", Content: []byte("package util\n"), Mode: 0600, Filetype: tar.TypeReg},
	{Name: "project/empty.txt", Content: []byte{}, Mode: 0644, Filetype: tar.TypeReg},
}

// archiveFormat creates a fixture archive of one format
type archiveFormat struct {
	name   string
	create func(t *testing.T, dir string, content []archiveContent) string
	open   func(path string, cfg *kapsule.Config) (kapsule.Archive, error)
}

// formats lists both backends for table driven tests
var formats = []archiveFormat{
	{
		name: "tar.gz",
		create: func(t *testing.T, dir string, content []archiveContent) string {
			return createTarGz(t, dir, "test.tar.gz", content)
		},
		open: func(path string, cfg *kapsule.Config) (kapsule.Archive, error) {
			return kapsule.OpenTarGz(path, cfg)
		},
	},
	{
		name: "zip",
		create: func(t *testing.T, dir string, content []archiveContent) string {
			return createZip(t, dir, "test.zip", content)
		},
		open: func(path string, cfg *kapsule.Config) (kapsule.Archive, error) {
			return kapsule.OpenZip(path, cfg)
		},
	},
}

// openFixture creates and opens an archive, closing it after the test
func openFixture(t *testing.T, f archiveFormat, content []archiveContent, opts ...kapsule.ConfigOption) kapsule.Archive {
	t.Helper()

	path := f.create(t, t.TempDir(), content)
	a, err := f.open(path, kapsule.NewConfig(opts...))
	if err != nil {
		t.Fatalf("error opening %s archive: %v", f.name, err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// listNames collects all entry names and the first error
func listNames(a kapsule.Archive) ([]string, error) {
	var names []string
	for e, err := range a.Entries() {
		if err != nil {
			return names, err
		}
		names = append(names, e.Name)
	}
	return names, nil
}

// readTree returns all regular files below root with their content, keyed by slash path
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("error walking %s: %v", root, err)
	}
	return tree
}
