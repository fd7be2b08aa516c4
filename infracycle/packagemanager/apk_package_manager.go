package packagemanager

import (
	"context"

	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

type ApkPackageManager struct {
	CommandManager cm.CommandManager
	Logger         *logrus.Logger
	Sudo           bool
}

func (apkm *ApkPackageManager) Name() string { return "apk" }

func (apkm *ApkPackageManager) UpdatePackageList(ctx context.Context) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    apkm.Sudo,
		Args:    []string{"update"},
	})
	return err
}

func (apkm *ApkPackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Args:    []string{"info", "-e", pkg},
	})
	if err != nil {
		if output.ExitCode == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (apkm *ApkPackageManager) AddPackage(ctx context.Context, pkg string) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    apkm.Sudo,
		Args:    []string{"add", pkg},
	})
	return err
}

func (apkm *ApkPackageManager) RemovePackage(ctx context.Context, pkg string) error {
	_, err := apkm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apk",
		Sudo:    apkm.Sudo,
		Args:    []string{"del", pkg},
	})
	return err
}

func (apkm *ApkPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	installed, err := apkm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if installed {
		if apkm.Logger != nil {
			apkm.Logger.WithField("package", pkg).Debug("Package already installed")
		}
		return false, nil
	}
	if err := apkm.AddPackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

func (apkm *ApkPackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	installed, err := apkm.IsPackageInstalled(ctx, pkg)
	if err != nil {
		return false, err
	}
	if !installed {
		return false, nil
	}
	if err := apkm.RemovePackage(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}
