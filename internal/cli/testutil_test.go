package cli

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adrg/xdg"
)

// isolate points XDG lookups and the working directory at temp dirs and
// clears TOOLPROV_* so the host configuration cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "TOOLPROV_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}

	wd := t.TempDir()
	t.Chdir(wd)
	return wd
}

func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func goTarball(t *testing.T, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	write := func(hdr *tar.Header, body string) {
		hdr.Size = int64(len(body))
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("tar body: %v", err)
		}
	}
	write(&tar.Header{Name: "go/", Typeflag: tar.TypeDir, Mode: 0o755}, "")
	write(&tar.Header{Name: "go/VERSION", Typeflag: tar.TypeReg, Mode: 0o644}, version+"\ntime 2024-02-01T00:00:00Z\n")
	write(&tar.Header{Name: "go/bin/", Typeflag: tar.TypeDir, Mode: 0o755}, "")
	write(&tar.Header{Name: "go/bin/go", Typeflag: tar.TypeReg, Mode: 0o755}, "#!/bin/sh\necho "+version+"\n")
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// releaseServer mimics go.dev: /VERSION plus /dl/<file> and
// /dl/<file>.sha256.
type releaseServer struct {
	*httptest.Server

	mu      sync.Mutex
	version string
	status  int
	files   map[string][]byte
}

func newReleaseServer(t *testing.T, version string) *releaseServer {
	t.Helper()
	rs := &releaseServer{status: http.StatusOK, files: map[string][]byte{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	rs.publish(t, version)
	return rs
}

// publish makes version the latest release and serves its linux/amd64
// archive with a matching checksum.
func (rs *releaseServer) publish(t *testing.T, version string) {
	t.Helper()
	archive := goTarball(t, version)
	name := version + ".linux-amd64.tar.gz"

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.version = version
	rs.files[name] = archive
	rs.files[name+".sha256"] = []byte(sha256Hex(archive) + "  " + name + "\n")
}

func (rs *releaseServer) setFile(name string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[name] = data
}

func (rs *releaseServer) setVersionStatus(code int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.status = code
}

func (rs *releaseServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r.URL.Path == "/VERSION" {
		if rs.status != http.StatusOK {
			http.Error(w, "unavailable", rs.status)
			return
		}
		fmt.Fprintf(w, "%s\ntime 2024-02-01T00:00:00Z\n", rs.version)
		return
	}
	data, ok := rs.files[strings.TrimPrefix(r.URL.Path, "/dl/")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// catalogEntry renders a YAML catalog entry pointing at the server.
func (rs *releaseServer) catalogEntry(name, installPath string) string {
	return fmt.Sprintf(`  %s:
    version:
      url: %s/VERSION
    version_prefix: go
    archive_url: %s/dl/{version}.{os}-{arch}.tar.gz
    checksum_url: %s/dl/{version}.{os}-{arch}.tar.gz.sha256
    strip_components: 1
    install_path: %s
    version_file: VERSION
`, name, rs.URL, rs.URL, rs.URL, installPath)
}

// writeCatalog writes a one-tool catalog and returns its path and the
// tool's install path.
func writeCatalog(t *testing.T, rs *releaseServer) (catalog, installPath string) {
	t.Helper()
	dir := t.TempDir()
	installPath = filepath.Join(dir, "usr", "local", "go")
	if err := os.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		t.Fatal(err)
	}
	catalog = filepath.Join(dir, "toolprov.yaml")
	contents := "version: 1\ntools:\n" + rs.catalogEntry("go", installPath)
	if err := os.WriteFile(catalog, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return catalog, installPath
}

func readInstalledVersion(t *testing.T, installPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(installPath, "VERSION"))
	if err != nil {
		t.Fatalf("read installed VERSION: %v", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return line
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
