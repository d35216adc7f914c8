package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// replaceDir puts the staged tree at target. It returns the location of the
// previous tree (now detached from target) so the caller can remove it, or
// "" when target did not exist.
//
// With an atomic exchange readers see either the old or the new tree. The
// rename fallback leaves target absent between its two renames, and puts
// the old tree back if the second rename fails.
func replaceDir(staged, target string) (string, error) {
	if _, err := os.Lstat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat install path: %w", err)
		}
		if err := os.Rename(staged, target); err != nil {
			return "", fmt.Errorf("install new tree: %w", err)
		}
		return "", nil
	}

	exchanged, err := exchange(staged, target)
	if err != nil {
		return "", fmt.Errorf("exchange trees: %w", err)
	}
	if exchanged {
		return staged, nil
	}
	return renameSwap(staged, target)
}

func renameSwap(staged, target string) (string, error) {
	backup := siblingPath(target, "old")
	if err := os.Rename(target, backup); err != nil {
		return "", fmt.Errorf("move previous install aside: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		if restoreErr := os.Rename(backup, target); restoreErr != nil {
			return "", fmt.Errorf("install new tree: %w (restore of %s failed: %v)", err, backup, restoreErr)
		}
		return "", fmt.Errorf("install new tree: %w", err)
	}
	return backup, nil
}

// siblingPath returns a hidden, unique path next to target.
func siblingPath(target, tag string) string {
	dir, base := filepath.Split(filepath.Clean(target))
	suffix := strconv.Itoa(os.Getpid()) + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	return filepath.Join(dir, "."+base+"."+tag+"-"+suffix)
}

// stagingPattern is the os.MkdirTemp pattern for target's staging dir.
func stagingPattern(target string) string {
	return "." + filepath.Base(filepath.Clean(target)) + ".staging-*"
}
