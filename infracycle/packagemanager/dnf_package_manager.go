package packagemanager

import (
	"context"

	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

type DnfPackageManager struct {
	CommandManager cm.CommandManager
	Logger         *logrus.Logger
	Sudo           bool
}

func (dpm *DnfPackageManager) Name() string { return "dnf" }

func (dpm *DnfPackageManager) UpdatePackageList(ctx context.Context) error {
	_, err := dpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dnf",
		Sudo:    dpm.Sudo,
		Args:    []string{"makecache"},
	})
	return err
}

func (dpm *DnfPackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := dpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "rpm",
		Args:    []string{"-q", pkg},
	})
	if err != nil {
		if output.ExitCode == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (dpm *DnfPackageManager) AddPackage(ctx context.Context, pkg string) error {
	_, err := dpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dnf",
		Sudo:    dpm.Sudo,
		Args:    []string{"install", "-y", pkg},
	})
	return err
}

func (dpm *DnfPackageManager) RemovePackage(ctx context.Context, pkg string) error {
	_, err := dpm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dnf",
		Sudo:    dpm.Sudo,
		Args:    []string{"remove", "-y", pkg},
	})
	return err
}

func (dpm *DnfPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	installed, err := dpm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if installed {
		if dpm.Logger != nil {
			dpm.Logger.WithField("package", pkg).Debug("Package already installed")
		}
		return false, nil
	}
	if err := dpm.AddPackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

func (dpm *DnfPackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	installed, err := dpm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if !installed {
		return false, nil
	}
	if err := dpm.RemovePackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}
