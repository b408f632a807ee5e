package kapsule

import (
	"bytes"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestMagicBytes(t *testing.T) {
	tarHeader := make([]byte, maxHeaderLength)
	copy(tarHeader[offsetTar:], "ustar\x0000")

	cases := []struct {
		name   string
		header []byte
		isZip  bool
		isGZip bool
		isTar  bool
	}{
		{name: "zip", header: []byte("PK\x03\x04rest"), isZip: true},
		{name: "empty zip", header: []byte("PK\x05\x06"), isZip: true},
		{name: "gzip", header: []byte{0x1f, 0x8b, 0x08, 0x00}, isGZip: true},
		{name: "tar", header: tarHeader, isTar: true},
		{name: "too short", header: []byte("P")},
		{name: "text", header: []byte("hello world")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isZip(tc.header); got != tc.isZip {
				t.Errorf("isZip() = %v, want %v", got, tc.isZip)
			}
			if got := isGZip(tc.header); got != tc.isGZip {
				t.Errorf("isGZip() = %v, want %v", got, tc.isGZip)
			}
			if got := isTar(tc.header); got != tc.isTar {
				t.Errorf("isTar() = %v, want %v", got, tc.isTar)
			}
		})
	}
}

func TestPeekHeader(t *testing.T) {
	got, err := peekHeader(bytes.NewReader([]byte("abc")), 10)
	if err != nil {
		t.Fatalf("peekHeader() returned an error: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("peekHeader() = %q, want %q", got, "abc")
	}

	got, err = peekHeader(bytes.NewReader([]byte("abcdef")), 4)
	if err != nil || string(got) != "abcd" {
		t.Errorf("peekHeader() = %q, %v", got, err)
	}
}

func TestHasSuffix(t *testing.T) {
	cases := []struct {
		path string
		exts []string
		want bool
	}{
		{"a.zip", []string{fileExtensionZip}, true},
		{"A.ZIP", []string{fileExtensionZip}, true},
		{"a.tar.gz", []string{fileExtensionTarGZip, fileExtensionTgz}, true},
		{"a.tgz", []string{fileExtensionTarGZip, fileExtensionTgz}, true},
		{"a.gz", []string{fileExtensionTarGZip, fileExtensionTgz}, false},
		{"azip", []string{fileExtensionZip}, false},
	}
	for _, tc := range cases {
		if got := hasSuffix(tc.path, tc.exts...); got != tc.want {
			t.Errorf("hasSuffix(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestMatchesName(t *testing.T) {
	dir := &testEntry{name: "docs/", dir: true}
	file := &testEntry{name: "docs/readme.txt"}

	cases := []struct {
		entry archiveEntry
		name  string
		want  bool
	}{
		{dir, "docs/", true},
		{dir, "docs", true},
		{dir, "doc", false},
		{file, "docs/readme.txt", true},
		{file, "docs/readme.txt/", false},
		{file, "readme.txt", false},
	}
	for _, tc := range cases {
		if got := matchesName(tc.entry, tc.name); got != tc.want {
			t.Errorf("matchesName(%q, %q) = %v, want %v", tc.entry.Name(), tc.name, got, tc.want)
		}
	}
}

func TestDestination(t *testing.T) {
	f := ToFile("out/a.txt")
	if f.IsDir() || f.Path() != "out/a.txt" {
		t.Errorf("ToFile() = %v", f)
	}
	d := ToDir("out")
	if !d.IsDir() || d.Path() != "out" {
		t.Errorf("ToDir() = %v", d)
	}
}

// testEntry is an in memory archiveEntry
type testEntry struct {
	name string
	dir  bool
	data string
}

func (e *testEntry) IsDir() bool               { return e.dir }
func (e *testEntry) IsRegular() bool           { return !e.dir }
func (e *testEntry) IsSymlink() bool           { return false }
func (e *testEntry) Linkname() (string, error) { return "", nil }
func (e *testEntry) Mode() fs.FileMode         { return 0644 }
func (e *testEntry) ModTime() time.Time        { return time.Time{} }
func (e *testEntry) Name() string              { return e.name }
func (e *testEntry) Size() int64               { return int64(len(e.data)) }
func (e *testEntry) Open() (io.ReadCloser, error) {
	return noopReaderCloser{strings.NewReader(e.data)}, nil
}

func TestCaptureExtractionDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return start.Add(3 * time.Second) }
	defer func() { now = time.Now }()

	td := &TelemetryData{}
	captureExtractionDuration(td, start)
	if td.ExtractionDuration != 3*time.Second {
		t.Errorf("ExtractionDuration = %v, want %v", td.ExtractionDuration, 3*time.Second)
	}
}
