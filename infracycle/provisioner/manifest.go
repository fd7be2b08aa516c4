package provisioner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/repomanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/toolmanager"
)

// Pinned versions used when a manifest entry does not name one.
const (
	DefaultSonarScannerVersion = "5.0.1.3006"
	DefaultTrivyVersion        = "0.58.1"
)

// Manifest is the declarative toolchain a build host must provide.
type Manifest struct {
	Packages    []string   `yaml:"packages"`
	NodeGlobals []string   `yaml:"node_globals"`
	Tools       []ToolSpec `yaml:"tools"`
	Repos       []RepoSpec `yaml:"repos"`
}

// ToolSpec selects a versioned archive install from the tool catalog.
type ToolSpec struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// RepoSpec selects a signed package repository from the catalog. Codename
// overrides the release channel detected from the platform, and
// FallbackVersion pins the release archive used on families the repository
// does not serve.
type RepoSpec struct {
	Name            string `yaml:"name"`
	Codename        string `yaml:"codename"`
	KeyFingerprint  string `yaml:"key_fingerprint"`
	FallbackVersion string `yaml:"fallback_version"`
}

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrUnknownRepo = errors.New("unknown repository")
)

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func (m Manifest) Validate() error {
	if len(m.Packages) == 0 && len(m.NodeGlobals) == 0 && len(m.Tools) == 0 && len(m.Repos) == 0 {
		return errors.New("manifest lists nothing to provision")
	}
	for i, pkg := range m.Packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("packages[%d] is empty", i)
		}
	}
	for i, name := range m.NodeGlobals {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("node_globals[%d] is empty", i)
		}
	}
	for _, spec := range m.Tools {
		if _, err := spec.resolve(); err != nil {
			return err
		}
	}
	for _, spec := range m.Repos {
		if _, err := spec.resolve(platform.Info{}); err != nil {
			return err
		}
	}
	return nil
}

// DefaultManifest is the stock build toolchain baked into the agent image.
// Package names target the Debian-family base the stock images are built
// from; alternative manifests carry their own names.
func DefaultManifest() Manifest {
	return Manifest{
		Packages: []string{
			"git",
			"curl",
			"unzip",
			"ca-certificates",
			"docker.io",
			"openjdk-17-jdk-headless",
			"maven",
			"gradle",
			"ant",
			"nodejs",
			"npm",
			"golang",
			"python3",
		},
		NodeGlobals: []string{"yarn"},
		Tools: []ToolSpec{
			{Name: "sonar-scanner", Version: DefaultSonarScannerVersion},
		},
		Repos: []RepoSpec{
			{Name: "trivy"},
		},
	}
}

func (s ToolSpec) resolve() (toolmanager.Tool, error) {
	switch s.Name {
	case "sonar-scanner":
		version := s.Version
		if version == "" {
			version = DefaultSonarScannerVersion
		}
		return toolmanager.SonarScanner(version), nil
	case "trivy":
		version := s.Version
		if version == "" {
			version = DefaultTrivyVersion
		}
		return toolmanager.TrivyArchive(version), nil
	default:
		return toolmanager.Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, s.Name)
	}
}

func (s RepoSpec) resolve(info platform.Info) (repomanager.Repo, error) {
	switch s.Name {
	case "trivy":
		codename := s.Codename
		if codename == "" {
			codename = info.VersionCodename
		}
		repo := repomanager.TrivyRepo(codename)
		if s.KeyFingerprint != "" {
			repo.KeyFingerprint = s.KeyFingerprint
		}
		return repo, nil
	default:
		return repomanager.Repo{}, fmt.Errorf("%w: %s", ErrUnknownRepo, s.Name)
	}
}

// fallbackTool is the direct archive install used where no repository route
// exists for the detected family.
func (s RepoSpec) fallbackTool() (toolmanager.Tool, error) {
	switch s.Name {
	case "trivy":
		version := s.FallbackVersion
		if version == "" {
			version = DefaultTrivyVersion
		}
		return toolmanager.TrivyArchive(version), nil
	default:
		return toolmanager.Tool{}, fmt.Errorf("%w: %s", ErrUnknownRepo, s.Name)
	}
}
