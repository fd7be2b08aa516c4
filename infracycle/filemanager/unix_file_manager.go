package filemanager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type UnixFileManager struct{}

func (ufm *UnixFileManager) CreateDirectory(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (ufm *UnixFileManager) DeleteDirectory(path string) error {
	return os.RemoveAll(path)
}

func (ufm *UnixFileManager) MoveDirectory(sourcePath, destPath string) error {
	return os.Rename(sourcePath, destPath)
}

func (ufm *UnixFileManager) MoveFile(sourcePath, destPath string) error {
	return os.Rename(sourcePath, destPath)
}

func (ufm *UnixFileManager) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func (ufm *UnixFileManager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (ufm *UnixFileManager) SetPermissions(path string, perm os.FileMode) error {
	return os.Chmod(path, perm)
}

func (ufm *UnixFileManager) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (ufm *UnixFileManager) ReplaceSymlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}

	staging := fmt.Sprintf("%s.new.%d", link, os.Getpid())
	_ = os.Remove(staging)
	if err := os.Symlink(target, staging); err != nil {
		return err
	}
	if err := os.Rename(staging, link); err != nil {
		_ = os.Remove(staging)
		return err
	}
	return nil
}
