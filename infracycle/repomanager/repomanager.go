// Package repomanager configures third-party package repositories and their
// signing keys so the family package manager can install vendor tools from a
// trusted source.
package repomanager

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/openpgp" //nolint:staticcheck // frozen upstream, sufficient for key parsing and fingerprint checks

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/packagemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
)

// Repo describes one signed repository and the package it exists to provide.
type Repo struct {
	Name    string
	Package string

	KeyURL string
	// KeyFingerprint pins the primary key, hex encoded; spaces and case
	// are ignored. Empty logs the observed fingerprint instead of
	// enforcing one.
	KeyFingerprint string
	KeyringPath    string

	// Debian-family source list entry.
	SourceLine string
	SourcePath string

	// Enterprise-family repo stanza.
	YumRepo     string
	YumRepoPath string
}

var (
	ErrKeyFingerprintMismatch   = errors.New("repository key fingerprint mismatch")
	ErrNoRepoForFamily          = errors.New("no repository route for platform family")
	ErrUnexpectedServerResponse = errors.New("unexpected server response")
)

// Manager installs repository definitions on the local host.
type Manager struct {
	HTTPClient *http.Client
	Files      filemanager.FileManager
	Logger     *logrus.Logger
}

func (m *Manager) client() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

// EnsureKey downloads the repository signing key, verifies it against the
// pinned fingerprint and writes the dearmored keyring. A keyring already in
// place is left untouched.
func (m *Manager) EnsureKey(ctx context.Context, repo Repo) error {
	exists, err := m.Files.Exists(repo.KeyringPath)
	if err != nil {
		return err
	}
	if exists {
		m.Logger.WithField("keyring", repo.KeyringPath).Debug("Signing key already in place")
		return nil
	}

	data, err := m.fetch(ctx, repo.KeyURL)
	if err != nil {
		return fmt.Errorf("download signing key for %s: %w", repo.Name, err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse signing key for %s: %w", repo.Name, err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("signing key for %s contains no keys", repo.Name)
	}

	fingerprint := hex.EncodeToString(entities[0].PrimaryKey.Fingerprint[:])
	if repo.KeyFingerprint != "" {
		pinned := normalizeFingerprint(repo.KeyFingerprint)
		if !strings.EqualFold(pinned, fingerprint) {
			return fmt.Errorf("%w for %s: pinned %s, downloaded %s", ErrKeyFingerprintMismatch, repo.Name, pinned, fingerprint)
		}
	} else {
		m.Logger.WithFields(logrus.Fields{
			"repo":        repo.Name,
			"fingerprint": fingerprint,
		}).Info("No fingerprint pinned for repository key; trusting on first use")
	}

	var keyring bytes.Buffer
	for _, entity := range entities {
		if err := entity.Serialize(&keyring); err != nil {
			return fmt.Errorf("dearmor signing key for %s: %w", repo.Name, err)
		}
	}

	if err := m.Files.WriteFile(repo.KeyringPath, keyring.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write keyring %s: %w", repo.KeyringPath, err)
	}

	m.Logger.WithFields(logrus.Fields{
		"repo":        repo.Name,
		"keyring":     repo.KeyringPath,
		"fingerprint": fingerprint,
	}).Info("Installed repository signing key")
	return nil
}

// EnsureAptSource writes the repository's source list entry if it is not
// already present.
func (m *Manager) EnsureAptSource(ctx context.Context, repo Repo) error {
	exists, err := m.Files.Exists(repo.SourcePath)
	if err != nil {
		return err
	}
	if exists {
		current, err := m.Files.ReadFile(repo.SourcePath)
		if err != nil {
			return err
		}
		if strings.Contains(string(current), repo.SourceLine) {
			m.Logger.WithField("source", repo.SourcePath).Debug("Repository source already configured")
			return nil
		}
	}

	if err := m.Files.WriteFile(repo.SourcePath, []byte(repo.SourceLine+"\n"), 0o644); err != nil {
		return fmt.Errorf("write source list %s: %w", repo.SourcePath, err)
	}
	m.Logger.WithFields(logrus.Fields{
		"repo":   repo.Name,
		"source": repo.SourcePath,
	}).Info("Added repository source")
	return nil
}

// EnsureYumRepo writes the repository's .repo stanza if it is not already
// present.
func (m *Manager) EnsureYumRepo(ctx context.Context, repo Repo) error {
	exists, err := m.Files.Exists(repo.YumRepoPath)
	if err != nil {
		return err
	}
	if exists {
		m.Logger.WithField("repo", repo.YumRepoPath).Debug("Repository already configured")
		return nil
	}

	if err := m.Files.WriteFile(repo.YumRepoPath, []byte(repo.YumRepo), 0o644); err != nil {
		return fmt.Errorf("write repo file %s: %w", repo.YumRepoPath, err)
	}
	m.Logger.WithFields(logrus.Fields{
		"repo": repo.Name,
		"path": repo.YumRepoPath,
	}).Info("Added repository definition")
	return nil
}

// InstallScanner configures the repository for the detected family and
// installs the package it provides. Families without a repository route get
// ErrNoRepoForFamily so the caller can fall back to a direct archive
// install.
func (m *Manager) InstallScanner(ctx context.Context, family platform.Family, repo Repo, pm packagemanager.PackageManager) error {
	switch family {
	case platform.FamilyDebian:
		if err := m.EnsureKey(ctx, repo); err != nil {
			return err
		}
		if err := m.EnsureAptSource(ctx, repo); err != nil {
			return err
		}
	case platform.FamilyRHEL:
		if err := m.EnsureYumRepo(ctx, repo); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrNoRepoForFamily, family)
	}

	if err := pm.UpdatePackageList(ctx); err != nil {
		return fmt.Errorf("refresh package list for %s: %w", repo.Name, err)
	}

	changed, err := pm.EnsurePackagePresent(ctx, repo.Package)
	if err != nil {
		return fmt.Errorf("install %s: %w", repo.Package, err)
	}
	if changed {
		m.Logger.WithField("package", repo.Package).Info("Installed scanner package")
	} else {
		m.Logger.WithField("package", repo.Package).Info("Scanner package already installed")
	}
	return nil
}

func (m *Manager) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedServerResponse, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func normalizeFingerprint(fp string) string {
	return strings.ToLower(strings.ReplaceAll(fp, " ", ""))
}

// TrivyRepo pins the vulnerability scanner's vendor repository. The codename
// selects the Debian-family release channel; empty falls back to "generic".
func TrivyRepo(codename string) Repo {
	if codename == "" {
		codename = "generic"
	}
	return Repo{
		Name:           "trivy",
		Package:        "trivy",
		KeyURL:         "https://aquasecurity.github.io/trivy-repo/deb/public.key",
		KeyFingerprint: "",
		KeyringPath:    "/usr/share/keyrings/trivy.gpg",
		SourceLine:     fmt.Sprintf("deb [signed-by=/usr/share/keyrings/trivy.gpg] https://aquasecurity.github.io/trivy-repo/deb %s main", codename),
		SourcePath:     "/etc/apt/sources.list.d/trivy.list",
		YumRepo: `[trivy]
name=Trivy repository
baseurl=https://aquasecurity.github.io/trivy-repo/rpm/releases/$releasever/$basearch/
gpgcheck=1
enabled=1
gpgkey=https://aquasecurity.github.io/trivy-repo/rpm/public.key
`,
		YumRepoPath: "/etc/yum.repos.d/trivy.repo",
	}
}
