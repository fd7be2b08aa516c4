package toolmanager

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/statemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/logger"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetMode(0o755)
		f, err := w.CreateHeader(header)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newInstaller(t *testing.T) (*Installer, string) {
	t.Helper()
	base := t.TempDir()
	installer := &Installer{
		Files:  &filemanager.UnixFileManager{},
		States: &statemanager.FileStateManager{Dir: filepath.Join(base, "receipts")},
		Logger: logger.Discard(),
	}
	return installer, base
}

func scannerTool(base, version, url string) Tool {
	dist := "scanner-" + version + "-linux"
	return Tool{
		Name:        "scanner",
		Version:     version,
		URL:         url,
		ArchiveRoot: dist,
		BinaryPath:  "bin/scanner",
		InstallDir:  filepath.Join(base, "opt", dist),
		LinkPath:    filepath.Join(base, "usr", "local", "bin", "scanner"),
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"scanner-1.0-linux/bin/scanner": "#!/bin/sh\necho v1\n",
		"scanner-1.0-linux/conf/scanner.properties": "sonar.host.url=\n",
	})

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	installer, base := newInstaller(t)
	tool := scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")
	ctx := context.Background()

	require.NoError(t, installer.Install(ctx, tool))

	resolved, err := os.Readlink(tool.LinkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tool.InstallDir, "bin/scanner"), resolved)

	data, err := os.ReadFile(tool.LinkPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo v1")

	state, err := installer.States.GetState(ctx, "scanner")
	require.NoError(t, err)
	assert.Equal(t, "1.0", state.Version)
	assert.NotEmpty(t, state.Checksum)

	// Second run must not fetch again.
	require.NoError(t, installer.Install(ctx, tool))
	assert.Equal(t, int32(1), hits.Load())
}

func TestInstallVersionBumpRepointsLink(t *testing.T) {
	archives := map[string][]byte{
		"/scanner-1.0-linux.zip": buildZip(t, map[string]string{"scanner-1.0-linux/bin/scanner": "v1"}),
		"/scanner-2.0-linux.zip": buildZip(t, map[string]string{"scanner-2.0-linux/bin/scanner": "v2"}),
	}

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		archive, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	installer, base := newInstaller(t)
	ctx := context.Background()

	require.NoError(t, installer.Install(ctx, scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")))

	v2 := scannerTool(base, "2.0", server.URL+"/scanner-2.0-linux.zip")
	require.NoError(t, installer.Install(ctx, v2))

	assert.Equal(t, int32(2), hits.Load())

	resolved, err := os.Readlink(v2.LinkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v2.InstallDir, "bin/scanner"), resolved)

	data, err := os.ReadFile(v2.LinkPath)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	state, err := installer.States.GetState(ctx, "scanner")
	require.NoError(t, err)
	assert.Equal(t, "2.0", state.Version)
}

func TestInstallVerifiesChecksum(t *testing.T) {
	archive := buildZip(t, map[string]string{"scanner-1.0-linux/bin/scanner": "v1"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	installer, base := newInstaller(t)
	ctx := context.Background()

	bad := scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")
	bad.SHA256 = "deadbeef"
	err := installer.Install(ctx, bad)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	digest := sha256.Sum256(archive)
	good := scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")
	good.SHA256 = hex.EncodeToString(digest[:])
	assert.NoError(t, installer.Install(ctx, good))
}

func TestInstallServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	installer, base := newInstaller(t)
	tool := scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")

	err := installer.Install(context.Background(), tool)
	assert.ErrorIs(t, err, ErrUnexpectedServerResponse)

	// Nothing half-installed left behind.
	exists, err2 := installer.Files.Exists(tool.InstallDir)
	require.NoError(t, err2)
	assert.False(t, exists)
}

func TestInstallRejectsUnexpectedLayout(t *testing.T) {
	archive := buildZip(t, map[string]string{"other-root/bin/scanner": "v1"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	installer, base := newInstaller(t)
	tool := scannerTool(base, "1.0", server.URL+"/scanner-1.0-linux.zip")

	err := installer.Install(context.Background(), tool)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "has no")
}

func TestSonarScannerPin(t *testing.T) {
	tool := SonarScanner("5.0.1.3006")
	assert.Equal(t, "https://binaries.sonarsource.com/Distribution/sonar-scanner-cli/sonar-scanner-cli-5.0.1.3006-linux.zip", tool.URL)
	assert.Equal(t, "/opt/sonar-scanner-5.0.1.3006-linux", tool.InstallDir)
	assert.Equal(t, "/usr/local/bin/sonar-scanner", tool.LinkPath)
	assert.Equal(t, "bin/sonar-scanner", tool.BinaryPath)
}

func TestTrivyArchivePin(t *testing.T) {
	tool := TrivyArchive("0.45.1")
	assert.Equal(t, "https://github.com/aquasecurity/trivy/releases/download/v0.45.1/trivy_0.45.1_Linux-64bit.tar.gz", tool.URL)
	assert.Empty(t, tool.ArchiveRoot)
	assert.Equal(t, "/usr/local/bin/trivy", tool.LinkPath)
}
