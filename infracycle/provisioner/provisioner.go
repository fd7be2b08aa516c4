// Package provisioner turns a declarative toolchain manifest into an
// installed build host. Execution is strictly sequential and aborts on the
// first failing step; re-running against an already provisioned host is a
// no-op.
package provisioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/packagemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/repomanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/toolmanager"
)

// ToolInstaller is the slice of the tool fetcher the provisioner drives.
type ToolInstaller interface {
	Install(ctx context.Context, tool toolmanager.Tool) error
	Installed(ctx context.Context, tool toolmanager.Tool) (bool, error)
}

// RepoInstaller configures a signed repository and installs its package.
type RepoInstaller interface {
	InstallScanner(ctx context.Context, family platform.Family, repo repomanager.Repo, pm packagemanager.PackageManager) error
}

type Provisioner struct {
	Detector platform.Detector
	Commands cm.CommandManager
	Tools    ToolInstaller
	Repos    RepoInstaller
	Logger   *logrus.Logger
	Sudo     bool

	// PackageManagers overrides family dispatch. Nil uses the stock
	// factory.
	PackageManagers func(family platform.Family) packagemanager.PackageManager
}

func (p *Provisioner) packageManager(family platform.Family) packagemanager.PackageManager {
	if p.PackageManagers != nil {
		return p.PackageManagers(family)
	}
	return packagemanager.ForFamily(family, p.Commands, p.Sudo, p.Logger)
}

// Provision installs everything the manifest names. Package-database steps
// are skipped with a warning on unrecognized platform families; direct tool
// fetches run regardless.
func (p *Provisioner) Provision(ctx context.Context, manifest Manifest) error {
	info, err := p.Detector.Detect()
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}
	p.Logger.WithFields(logrus.Fields{
		"platform": info.PrettyName,
		"family":   string(info.Family),
	}).Info("Provisioning build toolchain")

	if info.Family == platform.FamilyUnknown {
		p.Logger.WithField("id", info.ID).Warn("Unsupported platform family; skipping package installation")
	} else {
		pm := p.packageManager(info.Family)
		if err := pm.UpdatePackageList(ctx); err != nil {
			return fmt.Errorf("update package list: %w", err)
		}

		for _, pkg := range manifest.Packages {
			changed, err := pm.EnsurePackagePresent(ctx, pkg)
			if err != nil {
				return fmt.Errorf("ensure package %s: %w", pkg, err)
			}
			if changed {
				p.Logger.WithField("package", pkg).Info("Installed package")
			} else {
				p.Logger.WithField("package", pkg).Info("Package already installed")
			}
		}

		for _, name := range manifest.NodeGlobals {
			if err := p.ensureNodeGlobal(ctx, name); err != nil {
				return err
			}
		}

		for _, spec := range manifest.Repos {
			if err := p.installRepo(ctx, spec, info, pm); err != nil {
				return err
			}
		}
	}

	for _, spec := range manifest.Tools {
		tool, err := spec.resolve()
		if err != nil {
			return err
		}
		if err := p.Tools.Install(ctx, tool); err != nil {
			return fmt.Errorf("install tool %s: %w", tool.Name, err)
		}
	}

	p.Logger.Info("Provisioning complete")
	return nil
}

// Verify re-checks every manifest item without changing anything and
// aggregates all misses into one error.
func (p *Provisioner) Verify(ctx context.Context, manifest Manifest) error {
	info, err := p.Detector.Detect()
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	var missing *multierror.Error
	if info.Family == platform.FamilyUnknown {
		p.Logger.WithField("id", info.ID).Warn("Unsupported platform family; package checks skipped")
	} else {
		pm := p.packageManager(info.Family)

		for _, pkg := range manifest.Packages {
			installed, err := pm.IsPackageInstalled(ctx, pkg)
			if err != nil {
				missing = multierror.Append(missing, fmt.Errorf("check package %s: %w", pkg, err))
				continue
			}
			if !installed {
				missing = multierror.Append(missing, fmt.Errorf("package %s is not installed", pkg))
			}
		}

		for _, name := range manifest.NodeGlobals {
			if _, err := p.Commands.Run(ctx, cm.CommandConfig{Command: "npm", Args: []string{"list", "-g", name}}); err != nil {
				missing = multierror.Append(missing, fmt.Errorf("node global %s is not installed", name))
			}
		}

		for _, spec := range manifest.Repos {
			if err := p.verifyRepo(ctx, spec, info, pm); err != nil {
				missing = multierror.Append(missing, err)
			}
		}
	}

	for _, spec := range manifest.Tools {
		tool, err := spec.resolve()
		if err != nil {
			missing = multierror.Append(missing, err)
			continue
		}
		installed, err := p.Tools.Installed(ctx, tool)
		if err != nil {
			missing = multierror.Append(missing, fmt.Errorf("check tool %s: %w", tool.Name, err))
			continue
		}
		if !installed {
			missing = multierror.Append(missing, fmt.Errorf("tool %s %s is not installed", tool.Name, tool.Version))
		}
	}

	return missing.ErrorOrNil()
}

func (p *Provisioner) ensureNodeGlobal(ctx context.Context, name string) error {
	if _, err := p.Commands.Run(ctx, cm.CommandConfig{Command: "npm", Args: []string{"list", "-g", name}}); err == nil {
		p.Logger.WithField("package", name).Info("Node global already installed")
		return nil
	}

	p.Logger.WithField("package", name).Info("Installing node global")
	if _, err := p.Commands.Run(ctx, cm.CommandConfig{Command: "npm", Args: []string{"install", "-g", name}, Sudo: p.Sudo}); err != nil {
		return fmt.Errorf("npm install -g %s: %w", name, err)
	}
	return nil
}

func (p *Provisioner) installRepo(ctx context.Context, spec RepoSpec, info platform.Info, pm packagemanager.PackageManager) error {
	repo, err := spec.resolve(info)
	if err != nil {
		return err
	}

	err = p.Repos.InstallScanner(ctx, info.Family, repo, pm)
	if errors.Is(err, repomanager.ErrNoRepoForFamily) {
		tool, resolveErr := spec.fallbackTool()
		if resolveErr != nil {
			return resolveErr
		}
		p.Logger.WithFields(logrus.Fields{
			"repo":   repo.Name,
			"family": string(info.Family),
		}).Info("No package repository for this family; fetching release archive instead")
		if err := p.Tools.Install(ctx, tool); err != nil {
			return fmt.Errorf("install %s from release archive: %w", repo.Name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("configure repository %s: %w", repo.Name, err)
	}
	return nil
}

func (p *Provisioner) verifyRepo(ctx context.Context, spec RepoSpec, info platform.Info, pm packagemanager.PackageManager) error {
	repo, err := spec.resolve(info)
	if err != nil {
		return err
	}

	switch info.Family {
	case platform.FamilyDebian, platform.FamilyRHEL:
		installed, err := pm.IsPackageInstalled(ctx, repo.Package)
		if err != nil {
			return fmt.Errorf("check package %s: %w", repo.Package, err)
		}
		if !installed {
			return fmt.Errorf("package %s is not installed", repo.Package)
		}
		return nil
	default:
		tool, err := spec.fallbackTool()
		if err != nil {
			return err
		}
		installed, err := p.Tools.Installed(ctx, tool)
		if err != nil {
			return fmt.Errorf("check tool %s: %w", tool.Name, err)
		}
		if !installed {
			return fmt.Errorf("tool %s %s is not installed", tool.Name, tool.Version)
		}
		return nil
	}
}
