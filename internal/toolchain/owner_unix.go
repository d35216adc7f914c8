//go:build unix

package toolchain

import (
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// chownTree sets uid/gid on root and everything below it without following
// symlinks. The first failure aborts the walk.
func chownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := unix.Lchown(p, uid, gid); err != nil {
			return &os.PathError{Op: "lchown", Path: p, Err: err}
		}
		return nil
	})
}
