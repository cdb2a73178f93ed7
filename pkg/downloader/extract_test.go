package downloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestExtractZipWritesFilesUnderDest(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pkg.zip")
	writeZip(t, archivePath, map[string]string{
		"pkg-1.0.0/src/Widget.php": "<?php class Widget {}",
		"pkg-1.0.0/README.md":      "hello",
	})

	dest := filepath.Join(dir, "out")
	result, err := Extract(archivePath, dest, ExtractOptions{StripPrefix: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesExtracted)
	got, err := os.ReadFile(filepath.Join(dest, "src", "Widget.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php class Widget {}", string(got))
}

func TestExtractTarGzWritesFilesUnderDest(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pkg.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"pkg-2.0.0/lib/Gadget.php": "<?php class Gadget {}",
	})

	dest := filepath.Join(dir, "out")
	result, err := Extract(archivePath, dest, ExtractOptions{StripPrefix: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesExtracted)
	got, err := os.ReadFile(filepath.Join(dest, "lib", "Gadget.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php class Gadget {}", string(got))
}

func TestExtractRejectsParentTraversalEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZip(t, archivePath, map[string]string{
		"../../../etc/passwd": "root:x:0:0",
	})

	dest := filepath.Join(dir, "out")
	_, err := Extract(archivePath, dest, ExtractOptions{})
	require.Error(t, err)
	kind, ok := pipelineerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.KindArchive, kind)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "etc", "passwd"))
	assert.True(t, os.IsNotExist(statErr), "traversal segments must never escape dest")

	_, statErr = os.Stat(filepath.Join(dest, "etc", "passwd"))
	assert.True(t, os.IsNotExist(statErr), "a rejected entry must not be written inside dest either")
}

func TestExtractRejectsUnknownArchiveType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-an-archive.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := Extract(path, filepath.Join(dir, "out"), ExtractOptions{})
	assert.Error(t, err)
}

func TestFindRootDirDetectsSingleTopLevelDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "only-child", "nested"), 0o755))

	assert.Equal(t, filepath.Join(dir, "only-child"), findRootDir(dir))
}

func TestFindRootDirEmptyWhenMultipleEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	assert.Equal(t, "", findRootDir(dir))
}
