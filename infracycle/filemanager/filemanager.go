package filemanager

import "os"

// FileManager encompasses the local filesystem operations the provisioner
// and the pipeline perform. Everything runs against the filesystem of the
// current process; there is no remote variant.
type FileManager interface {
	CreateDirectory(path string, perm os.FileMode) error
	DeleteDirectory(path string) error

	// MoveDirectory renames a directory. Both paths must live on the same
	// filesystem.
	MoveDirectory(sourcePath, destPath string) error
	MoveFile(sourcePath, destPath string) error

	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadFile(path string) ([]byte, error)
	SetPermissions(path string, perm os.FileMode) error
	Exists(path string) (bool, error)

	// ReplaceSymlink points link at target, atomically replacing any
	// previous link so a concurrent reader never sees the name missing.
	ReplaceSymlink(target, link string) error
}
