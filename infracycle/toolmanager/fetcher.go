package toolmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/statemanager"
)

// Installer fetches and installs versioned tools.
type Installer struct {
	HTTPClient *http.Client
	Files      filemanager.FileManager
	States     statemanager.StateManager
	Logger     *logrus.Logger

	// ChangedBy is recorded on receipts; defaults to the agent name.
	ChangedBy string
}

func (i *Installer) client() *http.Client {
	if i.HTTPClient != nil {
		return i.HTTPClient
	}
	return http.DefaultClient
}

// Installed reports whether the pinned version is already in place: the
// receipt matches and both the versioned binary and the stable link exist.
func (i *Installer) Installed(ctx context.Context, tool Tool) (bool, error) {
	state, err := i.States.GetState(ctx, tool.Name)
	if err != nil {
		if errors.Is(err, statemanager.ErrStateNotFound) {
			return false, nil
		}
		return false, err
	}
	if state.Version != tool.Version {
		return false, nil
	}

	binary := filepath.Join(tool.InstallDir, tool.BinaryPath)
	for _, p := range []string{binary, tool.LinkPath} {
		exists, err := i.Files.Exists(p)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}

// Install puts the pinned tool version in place. Calling it again for the
// same version is a no-op; a different pinned version replaces the install
// and repoints the stable link.
func (i *Installer) Install(ctx context.Context, tool Tool) error {
	installed, err := i.Installed(ctx, tool)
	if err != nil {
		return fmt.Errorf("check %s install state: %w", tool.Name, err)
	}
	if installed {
		i.Logger.WithFields(logrus.Fields{
			"tool":    tool.Name,
			"version": tool.Version,
		}).Info("Tool already installed")
		return nil
	}

	i.Logger.WithFields(logrus.Fields{
		"tool":    tool.Name,
		"version": tool.Version,
		"url":     tool.URL,
	}).Info("Installing tool")

	installParent := filepath.Dir(tool.InstallDir)
	if err := i.Files.CreateDirectory(installParent, 0o755); err != nil {
		return fmt.Errorf("create install parent %s: %w", installParent, err)
	}

	// Staging lives next to the final location so the move below never
	// crosses filesystems.
	staging, err := os.MkdirTemp(installParent, ".fetch-"+tool.Name+"-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		_ = i.Files.DeleteDirectory(staging)
	}()

	archivePath, digest, err := i.download(ctx, tool, staging)
	if err != nil {
		return err
	}
	if tool.SHA256 != "" && !strings.EqualFold(digest, tool.SHA256) {
		return fmt.Errorf("%w for %s: want %s, got %s", ErrChecksumMismatch, tool.Name, tool.SHA256, digest)
	}

	extractDir := filepath.Join(staging, "extract")
	if err := extractArchive(archivePath, extractDir); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
	}

	srcRoot := extractDir
	if tool.ArchiveRoot != "" {
		srcRoot = filepath.Join(extractDir, tool.ArchiveRoot)
		exists, err := i.Files.Exists(srcRoot)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("archive for %s has no %s directory", tool.Name, tool.ArchiveRoot)
		}
	}

	if err := i.Files.DeleteDirectory(tool.InstallDir); err != nil {
		return fmt.Errorf("clear previous install of %s: %w", tool.Name, err)
	}
	if err := i.Files.MoveDirectory(srcRoot, tool.InstallDir); err != nil {
		return fmt.Errorf("move %s into place: %w", tool.Name, err)
	}

	binary := filepath.Join(tool.InstallDir, tool.BinaryPath)
	if err := i.Files.SetPermissions(binary, 0o755); err != nil {
		return fmt.Errorf("mark %s executable: %w", binary, err)
	}
	if err := i.Files.ReplaceSymlink(binary, tool.LinkPath); err != nil {
		return fmt.Errorf("link %s: %w", tool.LinkPath, err)
	}

	changedBy := i.ChangedBy
	if changedBy == "" {
		changedBy = "infracycle-agent"
	}
	receipt := statemanager.State{
		Resource:    tool.Name,
		Version:     tool.Version,
		Checksum:    digest,
		Source:      tool.URL,
		InstalledAt: time.Now().UTC(),
		ChangedBy:   changedBy,
	}
	if err := i.States.SaveState(ctx, receipt); err != nil {
		return fmt.Errorf("record receipt for %s: %w", tool.Name, err)
	}

	i.Logger.WithFields(logrus.Fields{
		"tool":    tool.Name,
		"version": tool.Version,
		"link":    tool.LinkPath,
	}).Info("Tool installed")
	return nil
}

// download fetches the archive into dir and returns its path along with the
// hex SHA-256 of the bytes received.
func (i *Installer) download(ctx context.Context, tool Tool, dir string) (string, string, error) {
	parsed, err := url.Parse(tool.URL)
	if err != nil {
		return "", "", fmt.Errorf("parse download URL for %s: %w", tool.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tool.URL, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := i.client().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", tool.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download %s: %w: %s", tool.Name, ErrUnexpectedServerResponse, resp.Status)
	}

	archivePath := filepath.Join(dir, path.Base(parsed.Path))
	out, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer out.Close()

	hasher := sha256.New()
	if _, err := io.Copy(out, io.TeeReader(resp.Body, hasher)); err != nil {
		return "", "", fmt.Errorf("write %s: %w", archivePath, err)
	}

	return archivePath, hex.EncodeToString(hasher.Sum(nil)), nil
}
