package repomanager

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp"        //nolint:staticcheck // matches the library under test
	"golang.org/x/crypto/openpgp/armor"  //nolint:staticcheck
	"golang.org/x/crypto/openpgp/packet" //nolint:staticcheck

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/packagemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
	"github.com/Devops-Bot-Official/infracycle-agent/logger"
)

var (
	keyOnce        sync.Once
	armoredKey     []byte
	keyFingerprint string
)

// testKey generates one throwaway signing key for the whole package.
func testKey(t *testing.T) ([]byte, string) {
	t.Helper()
	keyOnce.Do(func() {
		entity, err := openpgp.NewEntity("Repo Test", "", "repo@test.invalid", &packet.Config{RSABits: 1024})
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}

		var buf bytes.Buffer
		w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
		if err != nil {
			t.Fatalf("armor key: %v", err)
		}
		if err := entity.Serialize(w); err != nil {
			t.Fatalf("serialize key: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close armor: %v", err)
		}

		armoredKey = buf.Bytes()
		keyFingerprint = hex.EncodeToString(entity.PrimaryKey.Fingerprint[:])
	})
	return armoredKey, keyFingerprint
}

type fakePackageManager struct {
	updates   atomic.Int32
	installed map[string]bool
	ensured   []string
}

func newFakePackageManager() *fakePackageManager {
	return &fakePackageManager{installed: map[string]bool{}}
}

func (f *fakePackageManager) Name() string { return "fake" }

func (f *fakePackageManager) UpdatePackageList(ctx context.Context) error {
	f.updates.Add(1)
	return nil
}

func (f *fakePackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	return f.installed[pkg], nil
}

func (f *fakePackageManager) AddPackage(ctx context.Context, pkg string) error {
	f.installed[pkg] = true
	return nil
}

func (f *fakePackageManager) RemovePackage(ctx context.Context, pkg string) error {
	delete(f.installed, pkg)
	return nil
}

func (f *fakePackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	f.ensured = append(f.ensured, pkg)
	if f.installed[pkg] {
		return false, nil
	}
	f.installed[pkg] = true
	return true, nil
}

func (f *fakePackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	if !f.installed[pkg] {
		return false, nil
	}
	delete(f.installed, pkg)
	return true, nil
}

var _ packagemanager.PackageManager = (*fakePackageManager)(nil)

func newManager() *Manager {
	return &Manager{
		Files:  &filemanager.UnixFileManager{},
		Logger: logger.Discard(),
	}
}

func testRepo(t *testing.T, dir, keyURL string) Repo {
	t.Helper()
	return Repo{
		Name:        "trivy",
		Package:     "trivy",
		KeyURL:      keyURL,
		KeyringPath: filepath.Join(dir, "keyrings", "trivy.gpg"),
		SourceLine:  "deb [signed-by=/usr/share/keyrings/trivy.gpg] https://aquasecurity.github.io/trivy-repo/deb jammy main",
		SourcePath:  filepath.Join(dir, "sources.list.d", "trivy.list"),
		YumRepo:     "[trivy]\nname=Trivy repository\ngpgcheck=1\n",
		YumRepoPath: filepath.Join(dir, "yum.repos.d", "trivy.repo"),
	}
}

func TestEnsureKeyPinsFingerprint(t *testing.T) {
	key, fingerprint := testKey(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(key)
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	// Spaced uppercase pin still matches.
	grouped := strings.ToUpper(fingerprint[:4] + " " + fingerprint[4:])
	repo.KeyFingerprint = grouped

	m := newManager()
	require.NoError(t, m.EnsureKey(context.Background(), repo))

	raw, err := os.ReadFile(repo.KeyringPath)
	require.NoError(t, err)
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, fingerprint, hex.EncodeToString(entities[0].PrimaryKey.Fingerprint[:]))
}

func TestEnsureKeyRejectsWrongFingerprint(t *testing.T) {
	key, _ := testKey(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(key)
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	repo.KeyFingerprint = strings.Repeat("deadbeef", 5)

	m := newManager()
	err := m.EnsureKey(context.Background(), repo)
	require.ErrorIs(t, err, ErrKeyFingerprintMismatch)

	_, statErr := os.Stat(repo.KeyringPath)
	assert.True(t, os.IsNotExist(statErr), "keyring must not be written on mismatch")
}

func TestEnsureKeySkipsExistingKeyring(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.KeyringPath), 0o755))
	require.NoError(t, os.WriteFile(repo.KeyringPath, []byte("existing"), 0o644))

	m := newManager()
	require.NoError(t, m.EnsureKey(context.Background(), repo))
	assert.Zero(t, hits.Load(), "existing keyring must not trigger a download")
}

func TestEnsureKeyRejectsGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a key"))
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	m := newManager()
	assert.Error(t, m.EnsureKey(context.Background(), repo))
}

func TestEnsureKeyReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	m := newManager()
	assert.ErrorIs(t, m.EnsureKey(context.Background(), repo), ErrUnexpectedServerResponse)
}

func TestEnsureAptSourcePreservesExistingEntry(t *testing.T) {
	repo := testRepo(t, t.TempDir(), "http://unused.invalid")
	m := newManager()

	require.NoError(t, m.EnsureAptSource(context.Background(), repo))

	// Operator edits around the managed line survive the next run.
	custom := "# pinned by ops\n" + repo.SourceLine + "\n"
	require.NoError(t, os.WriteFile(repo.SourcePath, []byte(custom), 0o644))
	require.NoError(t, m.EnsureAptSource(context.Background(), repo))

	got, err := os.ReadFile(repo.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, custom, string(got))
}

func TestEnsureAptSourceRewritesChangedLine(t *testing.T) {
	repo := testRepo(t, t.TempDir(), "http://unused.invalid")
	m := newManager()
	require.NoError(t, m.EnsureAptSource(context.Background(), repo))

	repo.SourceLine = strings.Replace(repo.SourceLine, "jammy", "noble", 1)
	require.NoError(t, m.EnsureAptSource(context.Background(), repo))

	got, err := os.ReadFile(repo.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, repo.SourceLine+"\n", string(got))
}

func TestEnsureYumRepoSkipsExisting(t *testing.T) {
	repo := testRepo(t, t.TempDir(), "http://unused.invalid")
	m := newManager()

	require.NoError(t, os.MkdirAll(filepath.Dir(repo.YumRepoPath), 0o755))
	require.NoError(t, os.WriteFile(repo.YumRepoPath, []byte("# local override\n"), 0o644))

	require.NoError(t, m.EnsureYumRepo(context.Background(), repo))

	got, err := os.ReadFile(repo.YumRepoPath)
	require.NoError(t, err)
	assert.Equal(t, "# local override\n", string(got))
}

func TestInstallScannerDebianFlow(t *testing.T) {
	key, fingerprint := testKey(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(key)
	}))
	defer server.Close()

	repo := testRepo(t, t.TempDir(), server.URL)
	repo.KeyFingerprint = fingerprint

	m := newManager()
	pm := newFakePackageManager()
	require.NoError(t, m.InstallScanner(context.Background(), platform.FamilyDebian, repo, pm))

	assert.FileExists(t, repo.KeyringPath)
	assert.FileExists(t, repo.SourcePath)
	assert.Equal(t, int32(1), pm.updates.Load())
	assert.Equal(t, []string{"trivy"}, pm.ensured)
}

func TestInstallScannerEnterpriseFlow(t *testing.T) {
	repo := testRepo(t, t.TempDir(), "http://unused.invalid")
	m := newManager()
	pm := newFakePackageManager()
	require.NoError(t, m.InstallScanner(context.Background(), platform.FamilyRHEL, repo, pm))

	assert.FileExists(t, repo.YumRepoPath)
	assert.Equal(t, []string{"trivy"}, pm.ensured)
}

func TestInstallScannerUnknownFamily(t *testing.T) {
	repo := testRepo(t, t.TempDir(), "http://unused.invalid")
	m := newManager()
	pm := newFakePackageManager()

	err := m.InstallScanner(context.Background(), platform.FamilyAlpine, repo, pm)
	require.ErrorIs(t, err, ErrNoRepoForFamily)
	assert.Empty(t, pm.ensured)
}

func TestTrivyRepoCodename(t *testing.T) {
	assert.Contains(t, TrivyRepo("jammy").SourceLine, " jammy main")
	assert.Contains(t, TrivyRepo("").SourceLine, " generic main")
	assert.Equal(t, "trivy", TrivyRepo("jammy").Package)
}
