package toolchain

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// extractor unpacks one archive into dest, dropping the first strip path
// elements of every entry. Every entry path is resolved inside dest.
type extractor struct {
	ctx   context.Context
	dest  string
	strip int
	files int
	dirs  []dirMode
}

type dirMode struct {
	path string
	mode fs.FileMode
}

// extractArchive unpacks archivePath into dest and returns the number of
// non-directory entries written.
func extractArchive(ctx context.Context, format ArchiveFormat, archivePath, dest string, strip int) (int, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("prepare extract dir: %w", err)
	}
	x := &extractor{ctx: ctx, dest: dest, strip: strip}

	var err error
	switch format {
	case FormatTarGz:
		err = x.tarGz(archivePath)
	case FormatTarZst:
		err = x.tarZst(archivePath)
	case FormatTarXz:
		return extractTarXz(ctx, archivePath, dest, strip)
	case FormatZip:
		err = x.zip(archivePath)
	default:
		return 0, fmt.Errorf("unsupported archive format %q", format)
	}
	if err != nil {
		return 0, err
	}
	if err := x.applyDirModes(); err != nil {
		return 0, err
	}
	return x.files, nil
}

func (x *extractor) tarGz(archivePath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	return x.untar(gz)
}

func (x *extractor) tarZst(archivePath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	return x.untar(dec)
}

// extractTarXz shells out to tar; there is no xz decoder in our stack.
func extractTarXz(ctx context.Context, archivePath, dest string, strip int) (int, error) {
	args := []string{"-xJf", archivePath, "-C", dest, "--no-same-owner"}
	if strip > 0 {
		args = append(args, "--strip-components="+strconv.Itoa(strip))
	}
	cmd := exec.CommandContext(ctx, "tar", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("tar extract: %v: %s", err, strings.TrimSpace(string(output)))
	}
	return countFiles(dest)
}

func (x *extractor) untar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		rel, err := stripEntry(header.Name, x.strip)
		if err != nil {
			return err
		}
		mode := fs.FileMode(header.Mode).Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := x.mkdir(rel, mode); err != nil {
				return err
			}
		case tar.TypeReg:
			if rel == "" {
				return fmt.Errorf("file entry %s stripped to nothing", header.Name)
			}
			if err := x.writeFile(rel, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if rel == "" {
				continue
			}
			if err := x.symlink(rel, header.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			if rel == "" {
				continue
			}
			oldRel, err := stripEntry(header.Linkname, x.strip)
			if err != nil {
				return err
			}
			if err := x.hardlink(rel, oldRel); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader:
			// pax metadata only
		default:
			return fmt.Errorf("unsupported tar entry %s (type %q)", header.Name, header.Typeflag)
		}
	}
}

func (x *extractor) zip(archivePath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		rel, err := stripEntry(file.Name, x.strip)
		if err != nil {
			return err
		}
		info := file.FileInfo()
		switch {
		case info.IsDir():
			if err := x.mkdir(rel, info.Mode().Perm()); err != nil {
				return err
			}
		case info.Mode()&fs.ModeSymlink != 0:
			if rel == "" {
				continue
			}
			target, err := readZipEntry(file)
			if err != nil {
				return err
			}
			if err := x.symlink(rel, target); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if rel == "" {
				return fmt.Errorf("file entry %s stripped to nothing", file.Name)
			}
			rc, err := file.Open()
			if err != nil {
				return fmt.Errorf("open zip entry %s: %w", file.Name, err)
			}
			err = x.writeFile(rel, rc, info.Mode().Perm())
			rc.Close()
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported zip entry %s (mode %s)", file.Name, info.Mode())
		}
	}
	return nil
}

func readZipEntry(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open zip entry %s: %w", file.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("read zip entry %s: %w", file.Name, err)
	}
	return string(data), nil
}

// resolve maps a stripped entry path to a location inside dest.
func (x *extractor) resolve(rel string) (string, error) {
	target, err := securejoin.SecureJoin(x.dest, rel)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rel, err)
	}
	return target, nil
}

func (x *extractor) mkdir(rel string, mode fs.FileMode) error {
	target, err := x.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", target, err)
	}
	if mode == 0 {
		mode = 0o755
	}
	x.dirs = append(x.dirs, dirMode{path: target, mode: mode})
	return nil
}

func (x *extractor) writeFile(rel string, r io.Reader, mode fs.FileMode) error {
	target, err := x.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	if err := os.Chmod(target, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	x.files++
	return nil
}

func (x *extractor) symlink(rel, linkname string) error {
	target, err := x.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare link %s: %w", target, err)
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	x.files++
	return nil
}

func (x *extractor) hardlink(rel, oldRel string) error {
	target, err := x.resolve(rel)
	if err != nil {
		return err
	}
	source, err := x.resolve(oldRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare link %s: %w", target, err)
	}
	if err := os.Link(source, target); err != nil {
		return fmt.Errorf("create hard link %s: %w", target, err)
	}
	x.files++
	return nil
}

// applyDirModes sets directory permissions deepest first, after all
// entries are written, so read-only directories can still be populated.
func (x *extractor) applyDirModes() error {
	sort.SliceStable(x.dirs, func(i, j int) bool {
		return len(x.dirs[i].path) > len(x.dirs[j].path)
	})
	for _, d := range x.dirs {
		if err := os.Chmod(d.path, d.mode); err != nil {
			return fmt.Errorf("chmod %s: %w", d.path, err)
		}
	}
	return nil
}

// stripEntry validates an archive entry name and removes the first n
// elements. Absolute names and ".." elements are rejected outright.
func stripEntry(name string, n int) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute path in archive: %s", name)
	}
	var parts []string
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("path escapes archive root: %s", name)
		}
		parts = append(parts, part)
	}
	if n >= len(parts) {
		return "", nil
	}
	return path.Join(parts[n:]...), nil
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
