//go:build !unix

package toolchain

import (
	"fmt"
	"runtime"
)

func chownTree(root string, _, _ int) error {
	return fmt.Errorf("ownership transfer of %s is not supported on %s", root, runtime.GOOS)
}
