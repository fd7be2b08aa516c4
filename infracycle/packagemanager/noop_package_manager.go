package packagemanager

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
)

// NoopPackageManager is the fallthrough for a platform family nobody wired a
// real manager for. Mutating calls warn and succeed without acting, so an
// unrecognized distribution degrades a provisioning run instead of killing it.
type NoopPackageManager struct {
	Family platform.Family
	Logger *logrus.Logger
}

func (npm *NoopPackageManager) Name() string { return "noop" }

func (npm *NoopPackageManager) warn(action, pkg string) {
	if npm.Logger == nil {
		return
	}
	entry := npm.Logger.WithField("family", string(npm.Family))
	if pkg != "" {
		entry = entry.WithField("package", pkg)
	}
	entry.Warnf("No package manager for this platform; skipping %s", action)
}

func (npm *NoopPackageManager) UpdatePackageList(ctx context.Context) error {
	npm.warn("package list update", "")
	return nil
}

func (npm *NoopPackageManager) IsPackageInstalled(ctx context.Context, pkg string) (bool, error) {
	return false, nil
}

func (npm *NoopPackageManager) AddPackage(ctx context.Context, pkg string) error {
	npm.warn("install", pkg)
	return nil
}

func (npm *NoopPackageManager) RemovePackage(ctx context.Context, pkg string) error {
	npm.warn("removal", pkg)
	return nil
}

func (npm *NoopPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) (bool, error) {
	npm.warn("install", pkg)
	return false, nil
}

func (npm *NoopPackageManager) EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error) {
	npm.warn("removal", pkg)
	return false, nil
}
