package toolchain

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type entry struct {
	Name     string
	Body     string
	Mode     int64
	Dir      bool
	Symlink  string
	Hardlink string
}

func writeTar(t *testing.T, w *tar.Writer, entries []entry) {
	t.Helper()
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.Dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		case e.Symlink != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Symlink
			hdr.Mode = 0o777
		case e.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write tar body %s: %v", e.Name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
}

func buildTarGz(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, tar.NewWriter(gz), entries)
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func buildTarZst(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	writeTar(t, tar.NewWriter(enc), entries)
	if err := enc.Close(); err != nil {
		t.Fatalf("close zstd: %v", err)
	}
	return buf.Bytes()
}

func buildZip(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		name := e.Name
		if e.Dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		mode := fs.FileMode(e.Mode)
		if mode == 0 {
			mode = 0o644
		}
		if e.Dir {
			mode = fs.ModeDir | 0o755
		}
		hdr.SetMode(mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		if !e.Dir {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("zip body %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// goRelease mimics the layout of an official Go tarball.
func goRelease(version string, extra ...entry) []entry {
	entries := []entry{
		{Name: "go/", Dir: true},
		{Name: "go/VERSION", Body: version + "\ntime 2024-02-01T00:00:00Z\n"},
		{Name: "go/bin/", Dir: true},
		{Name: "go/bin/go", Body: "#!/bin/sh\necho " + version + "\n", Mode: 0o755},
		{Name: "go/src/runtime/runtime.go", Body: "package runtime // " + version + "\n"},
	}
	return append(entries, extra...)
}

// snapshot maps every path under root to a description of its content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			out[rel] = "link:" + target
		case d.IsDir():
			out[rel] = "dir"
		default:
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			out[rel] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", root, err)
	}
	return out
}

// releaseServer serves a version endpoint and per-version Go archives.
type releaseServer struct {
	*httptest.Server

	mu       sync.Mutex
	version  string
	archives map[string][]byte
	truncate bool
	hits     map[string]int
}

func newReleaseServer(t *testing.T) *releaseServer {
	t.Helper()
	rs := &releaseServer{archives: map[string][]byte{}, hits: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/VERSION", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		rs.hits["version"]++
		_, _ = w.Write([]byte(rs.version))
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		name := strings.TrimPrefix(r.URL.Path, "/dl/")
		rs.hits[name]++
		data, ok := rs.archives[name]
		truncate := rs.truncate
		rs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if truncate {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			_, _ = w.Write(data[:len(data)/2])
			return
		}
		_, _ = w.Write(data)
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) setVersion(body string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.version = body
}

func (rs *releaseServer) addArchive(name string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.archives[name] = data
}

func (rs *releaseServer) setTruncate(v bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.truncate = v
}

func (rs *releaseServer) hitCount(name string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[name]
}

func (rs *releaseServer) goSpec(installPath string) ToolSpec {
	return ToolSpec{
		Name:            "go",
		Version:         VersionQuery{URL: rs.URL + "/VERSION?m=text"},
		VersionPrefix:   "go",
		ArchiveURL:      rs.URL + "/dl/{version}.{os}-{arch}.tar.gz",
		StripComponents: 1,
		InstallPath:     installPath,
		VersionFile:     "VERSION",
	}
}

var linuxAMD64 = Platform{OS: "linux", Arch: "amd64"}
