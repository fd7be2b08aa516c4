package packagemanager

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

type AptPackageManager struct {
	CommandManager cm.CommandManager
	Logger         *logrus.Logger
	Sudo           bool
}

func (apm *AptPackageManager) Name() string { return "apt" }

func (apm *AptPackageManager) UpdatePackageList(ctx context.Context) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    apm.Sudo,
		Args:    []string{"update"},
	})
	return err
}

func (apm *AptPackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dpkg-query",
		Args:    []string{"-W", "-f=${Status}", pkg},
	})
	if err != nil {
		// dpkg-query exits 1 for a package it has never heard of.
		if output.ExitCode == 1 {
			return false, nil
		}
		return false, err
	}
	return strings.Contains(output.STDOUT, "install ok installed"), nil
}

func (apm *AptPackageManager) AddPackage(ctx context.Context, pkg string) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    apm.Sudo,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Args:    []string{"install", "-y", "-o", "Dpkg::Options::=--force-confdef", "-o", "Dpkg::Options::=--force-confold", pkg},
	})
	return err
}

func (apm *AptPackageManager) RemovePackage(ctx context.Context, pkg string) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    apm.Sudo,
		Args:    []string{"remove", "-y", pkg},
	})
	return err
}

func (apm *AptPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	installed, err := apm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if installed {
		if apm.Logger != nil {
			apm.Logger.WithField("package", pkg).Debug("Package already installed")
		}
		return false, nil
	}
	if err := apm.AddPackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

func (apm *AptPackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	installed, err := apm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if !installed {
		return false, nil
	}
	if err := apm.RemovePackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}
