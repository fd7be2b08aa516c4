package toolmanager

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTarGz(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "fixture.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractTarGz(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"trivy":     "binary-bytes",
		"LICENSE":   "license text",
		"README.md": "readme",
	})
	dest := t.TempDir()

	require.NoError(t, extractArchive(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "trivy"))
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))

	info, err := os.Stat(filepath.Join(dest, "trivy"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestExtractTarGzSymlink(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "bin/tool-1.0", Mode: 0o755, Size: 4, Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write([]byte("exec"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "bin/tool", Linkname: "tool-1.0", Typeflag: tar.TypeSymlink,
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	archive := filepath.Join(t.TempDir(), "sym.tar.gz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

	dest := t.TempDir()
	require.NoError(t, extractArchive(archive, dest))

	link, err := os.Readlink(filepath.Join(dest, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "tool-1.0", link)
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"../escape": "nope",
	})

	err := extractArchive(archive, t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "escapes extraction directory")
}

func TestExtractUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.xz")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := extractArchive(path, t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedArchive)
}

func TestEntryPathAllowsNestedNames(t *testing.T) {
	dest := t.TempDir()
	path, err := entryPath(dest, "a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "a", "b", "c.txt"), path)
}
