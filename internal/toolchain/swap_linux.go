//go:build linux

package toolchain

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// exchange atomically swaps a and b with renameat2(RENAME_EXCHANGE). It
// reports false without error when the kernel or filesystem lacks support.
func exchange(a, b string) (bool, error) {
	err := unix.Renameat2(unix.AT_FDCWD, a, unix.AT_FDCWD, b, unix.RENAME_EXCHANGE)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EINVAL), errors.Is(err, unix.EOPNOTSUPP):
		return false, nil
	default:
		return false, &os.LinkError{Op: "renameat2", Old: a, New: b, Err: err}
	}
}
