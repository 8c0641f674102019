// Package atomicfile writes files the way a client fetching artifacts over
// the network must: to a temporary path beside the destination, then an
// atomic rename, so a cancelled or failed download never leaves a truncated
// file at the final name.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirPermissions are the permission bits applied to directories created on
// a caller's behalf (e.g. the "lib" subdirectory in --include-dependencies
// mode).
const DirPermissions = os.ModeDir | 0775

// FilePermissions are the permission bits applied to a downloaded file.
const FilePermissions = 0664

// PathExists returns true if the given path exists, as a file or directory.
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsDirectory returns true if path exists and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureDir creates dir (and any missing parents) if it doesn't already
// exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, DirPermissions)
}

// WriteFile streams r to a fresh file named filename inside dir, writing to
// a temporary sibling first and renaming into place only once the full
// stream has landed successfully. Returns the final path.
func WriteFile(r io.Reader, dir, filename string) (string, error) {
	dest := filepath.Join(dir, filename)
	tempPath := filepath.Join(dir, filename+"."+uuid.NewString()+".tmp")

	tempFile, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePermissions)
	if err != nil {
		return "", fmt.Errorf("creating temporary file for %s: %w", dest, err)
	}
	if _, err := io.Copy(tempFile, r); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := renameFile(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("renaming into place %s: %w", dest, err)
	}
	return dest, nil
}

// renameFile renames from to to, falling back to copy-then-remove when the
// two paths live on different filesystems (os.Rename cannot cross them,
// and /tmp is commonly its own tmpfs mount).
func renameFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	if err := copyFile(from, to); err != nil {
		return err
	}
	return os.Remove(from)
}

func copyFile(from, to string) (err error) {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePermissions)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(); e != nil && err == nil {
			err = e
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
