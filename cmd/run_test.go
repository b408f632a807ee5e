package cmd

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var testVars = kong.Vars{"version": "kapsule (test)"}

type file struct {
	name    string
	content string
}

// writeTarGz creates a tar.gz archive below dir
func writeTarGz(t *testing.T, dir string, name string, files []file) string {
	t.Helper()

	buf := &bytes.Buffer{}
	gw := gzip.NewWriter(buf)
	tw := tar.NewWriter(gw)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Mode:     0644,
			Size:     int64(len(f.content)),
			Typeflag: tar.TypeReg,
			ModTime:  time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
			Format:   tar.FormatGNU,
		}))
		_, err := tw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0640))
	return path
}

// writeZip creates a zip archive below dir with names stored as given
func writeZip(t *testing.T, dir string, name string, files []file) string {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, f := range files {
		fh := &zip.FileHeader{Name: f.name, Method: zip.Deflate, NonUTF8: true}
		fh.SetMode(0644)
		w, err := zw.CreateHeader(fh)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0640))
	return path
}

// run executes the cli and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := execute(args, stdout, stderr, func(int) {}, testVars)
	return stdout.String(), err
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, "a.tar.gz", []file{{"one.txt", "1"}, {"sub/two.txt", "22"}})

	out, err := run(t, "list", path)
	require.NoError(t, err)
	assert.Equal(t, "one.txt\nsub/two.txt\n", out)

	out, err = run(t, "list", "-l", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2024-01-02 03:04")
	assert.True(t, strings.HasSuffix(lines[1], " 2 2024-01-02 03:04 sub/two.txt"), lines[1])
}

func TestListFallbackEncoding(t *testing.T) {
	name, err := simplifiedchinese.GBK.NewEncoder().String("中文文件名称.txt")
	require.NoError(t, err)
	path := writeZip(t, t.TempDir(), "legacy.zip", []file{{name, "x"}})

	out, err := run(t, "--fallback-encoding", "gbk", "list", path)
	require.NoError(t, err)

	assert.Equal(t, "中文文件名称.txt\n", out)
}

func TestUnknownEncoding(t *testing.T) {
	path := writeTarGz(t, t.TempDir(), "a.tar.gz", []file{{"one.txt", "1"}})

	_, err := run(t, "-e", "no-such-encoding", "list", path)
	assert.ErrorContains(t, err, "unknown encoding")
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "a.zip", []file{{"docs/readme.txt", "hello"}})

	// recreate the entry path
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0750))
	_, err := run(t, "extract", path, "docs/readme.txt", "-o", out)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, "docs", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// write the content to a file
	target := filepath.Join(dir, "copy.txt")
	_, err = run(t, "extract", path, "docs/readme.txt", "--to-file", "-o", target)
	require.NoError(t, err)
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// missing entries fail
	_, err = run(t, "extract", path, "missing.txt", "-o", out)
	assert.ErrorContains(t, err, "not found")
}

func TestExtractAll(t *testing.T) {
	dir := t.TempDir()
	first := writeTarGz(t, dir, "first.tar.gz", []file{{"a.txt", "a"}})
	second := writeZip(t, dir, "second.zip", []file{{"b/c.txt", "c"}})
	metricsFile := filepath.Join(dir, "metrics.prom")
	dst := filepath.Join(dir, "out")

	_, err := run(t, "--metrics-file", metricsFile, "extract-all", "-d", dst, "-j", "2", first, second)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dst, "first", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "second", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `kapsule_extractions_total{mode="all",result="success",type="tar.gz"} 1`)
	assert.Contains(t, string(prom), `kapsule_extractions_total{mode="all",result="success",type="zip"} 1`)
}

func TestExtractAllSingleArchive(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, "only.tgz", []file{{"a.txt", "a"}})
	dst := filepath.Join(dir, "out")

	// without -c the destination has to exist
	_, err := run(t, "extract-all", "-d", dst, path)
	assert.Error(t, err)

	_, err = run(t, "extract-all", "-c", "-d", dst, path)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "a.txt"))
	assert.NoError(t, err)
}

func TestArchiveStem(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.tar.gz": "a",
		"b.TGZ":         "b",
		"c.zip":         "c",
		"d.bin":         "d.bin",
		".zip":          ".zip",
	}
	for in, want := range cases {
		assert.Equal(t, want, archiveStem(in), in)
	}
}
