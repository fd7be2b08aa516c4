// Package toolmanager installs CLI tools that are not distributed through
// any OS package repository. A tool is a fixed-version archive fetched from
// a fixed URL, unpacked under a version-qualified directory and exposed
// through a stable symlink, so callers invoke it by one name no matter
// which version is pinned.
package toolmanager

import (
	"errors"
	"fmt"
)

// Tool describes one versioned archive install.
type Tool struct {
	Name    string
	Version string
	URL     string

	// SHA256 is the expected archive digest, hex encoded. Empty skips
	// verification.
	SHA256 string

	// ArchiveRoot is the single top-level directory inside the archive.
	// Empty means entries sit at the archive root.
	ArchiveRoot string

	// BinaryPath locates the executable relative to the archive root.
	BinaryPath string

	// InstallDir is the version-qualified location the unpacked tree is
	// moved to.
	InstallDir string

	// LinkPath is the stable name pointing at the installed binary.
	LinkPath string
}

var (
	ErrUnexpectedServerResponse = errors.New("unexpected server response")
	ErrChecksumMismatch         = errors.New("archive checksum mismatch")
	ErrUnsupportedArchive       = errors.New("unsupported archive format")
)

// SonarScanner pins the SonarQube scanner CLI distribution for a version.
func SonarScanner(version string) Tool {
	dist := fmt.Sprintf("sonar-scanner-%s-linux", version)
	return Tool{
		Name:        "sonar-scanner",
		Version:     version,
		URL:         fmt.Sprintf("https://binaries.sonarsource.com/Distribution/sonar-scanner-cli/sonar-scanner-cli-%s-linux.zip", version),
		ArchiveRoot: dist,
		BinaryPath:  "bin/sonar-scanner",
		InstallDir:  "/opt/" + dist,
		LinkPath:    "/usr/local/bin/sonar-scanner",
	}
}

// TrivyArchive pins the scanner's release tarball. This is the install route
// for hosts whose package manager cannot consume the signed repository.
func TrivyArchive(version string) Tool {
	return Tool{
		Name:       "trivy",
		Version:    version,
		URL:        fmt.Sprintf("https://github.com/aquasecurity/trivy/releases/download/v%s/trivy_%s_Linux-64bit.tar.gz", version, version),
		BinaryPath: "trivy",
		InstallDir: fmt.Sprintf("/opt/trivy-%s", version),
		LinkPath:   "/usr/local/bin/trivy",
	}
}
