package packagemanager

import "context"

// PackageManager is one family's command set against the host package
// database.
type PackageManager interface {
	Name() string
	UpdatePackageList(ctx context.Context) error
	IsPackageInstalled(ctx context.Context, pkg string) (bool, error)
	AddPackage(ctx context.Context, pkg string) error
	RemovePackage(ctx context.Context, pkg string) error

	// Idempotent package management. The bool reports whether the state
	// actually changed; false means the host was already as requested.
	EnsurePackagePresent(ctx context.Context, pkg string) (bool, error)
	EnsurePackageAbsent(ctx context.Context, pkg string) (bool, error)
}
