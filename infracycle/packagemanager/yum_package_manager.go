package packagemanager

import (
	"context"

	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

// YumPackageManager covers enterprise-family hosts that predate dnf.
type YumPackageManager struct {
	CommandManager cm.CommandManager
	Logger         *logrus.Logger
	Sudo           bool
}

func (ypm *YumPackageManager) Name() string { return "yum" }

func (ypm *YumPackageManager) UpdatePackageList(ctx context.Context) error {
	_, err := ypm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "yum",
		Sudo:    ypm.Sudo,
		Args:    []string{"makecache"},
	})
	return err
}

func (ypm *YumPackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := ypm.CommandManager.Run(ctx, cm.CommandConfig{
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

func (ypm *YumPackageManager) AddPackage(ctx context.Context, pkg string) error {
	_, err := ypm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "yum",
		Sudo:    ypm.Sudo,
		Args:    []string{"install", "-y", pkg},
	})
	return err
}

func (ypm *YumPackageManager) RemovePackage(ctx context.Context, pkg string) error {
	_, err := ypm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "yum",
		Sudo:    ypm.Sudo,
		Args:    []string{"remove", "-y", pkg},
	})
	return err
}

func (ypm *YumPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	installed, err := ypm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if installed {
		if ypm.Logger != nil {
			ypm.Logger.WithField("package", pkg).Debug("Package already installed")
		}
		return false, nil
	}
	if err := ypm.AddPackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

func (ypm *YumPackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	installed, err := ypm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if !installed {
		return false, nil
	}
	if err := ypm.RemovePackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}
