package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	maxChecksumBody  = 4 << 10
	progressInterval = 100 * time.Millisecond
)

// archiveFile is a fully downloaded and verified archive on disk.
type archiveFile struct {
	Path   string
	Digest digest.Digest
	Size   int64
}

// expectedDigest returns the digest the archive must match, or "" when the
// spec configures no checksum.
func (p *Provisioner) expectedDigest(ctx context.Context, spec ToolSpec, v ResolvedVersion, platform Platform) (digest.Digest, error) {
	if spec.Checksum != "" {
		d, err := ParseDigest(spec.Checksum)
		if err != nil {
			return "", DownloadError("checksum", err)
		}
		return d, nil
	}
	if spec.ChecksumURL == "" {
		return "", nil
	}

	checksumURL, err := spec.Expand(spec.ChecksumURL, v, platform)
	if err != nil {
		return "", DownloadError(spec.ChecksumURL, fmt.Errorf("expand checksum url: %w", err))
	}
	resp, err := p.get(ctx, checksumURL)
	if err != nil {
		return "", DownloadError(checksumURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumBody))
	if err != nil {
		return "", DownloadError(checksumURL, fmt.Errorf("read checksum: %w", err))
	}
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", DownloadError(checksumURL, errors.New("empty checksum response"))
	}
	d, err := ParseDigest(fields[0])
	if err != nil {
		return "", DownloadError(checksumURL, err)
	}
	return d, nil
}

// ParseDigest accepts "sha256:<hex>" or a bare sha256 hex string.
func ParseDigest(value string) (digest.Digest, error) {
	value = strings.TrimSpace(value)
	var d digest.Digest
	if strings.Contains(value, ":") {
		d = digest.Digest(strings.ToLower(value))
	} else {
		d = digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(value))
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid checksum %q: %w", value, err)
	}
	return d, nil
}

// downloadArchive streams archiveURL into a temp file under dir. The file
// is removed on any failure, including short reads and digest mismatches.
func (p *Provisioner) downloadArchive(ctx context.Context, tool, archiveURL, dir string, expected digest.Digest) (archiveFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("prepare staging dir: %w", err))
	}

	resp, err := p.get(ctx, archiveURL)
	if err != nil {
		return archiveFile{}, DownloadError(archiveURL, err)
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(dir, "."+tool+"-download-*.tmp")
	if err != nil {
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	algorithm := digest.Canonical
	if expected != "" {
		algorithm = expected.Algorithm()
	}
	if !algorithm.Available() {
		tmpFile.Close()
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("digest algorithm %s unavailable", algorithm))
	}
	digester := algorithm.Digester()

	progress := &progressWriter{
		report:   func(n int64) { p.reporter.Progress(tool, n, resp.ContentLength) },
		interval: progressInterval,
	}
	written, err := io.Copy(io.MultiWriter(tmpFile, digester.Hash(), progress), resp.Body)
	progress.flush()
	if err != nil {
		tmpFile.Close()
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("close temp file: %w", err))
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("truncated transfer: got %d of %d bytes", written, resp.ContentLength))
	}
	if written == 0 {
		return archiveFile{}, DownloadError(archiveURL, errors.New("empty archive"))
	}

	actual := digester.Digest()
	if expected != "" && actual != expected {
		return archiveFile{}, DownloadError(archiveURL, fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual))
	}

	committed = true
	return archiveFile{Path: tmpPath, Digest: actual, Size: written}, nil
}

// get issues a GET and rejects non-2xx responses. The caller closes the body.
func (p *Provisioner) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}

// progressWriter counts bytes and reports the running total at most once
// per interval.
type progressWriter struct {
	report   func(int64)
	interval time.Duration
	total    int64
	last     time.Time
}

func (w *progressWriter) Write(b []byte) (int, error) {
	w.total += int64(len(b))
	if now := time.Now(); now.Sub(w.last) >= w.interval {
		w.last = now
		w.report(w.total)
	}
	return len(b), nil
}

func (w *progressWriter) flush() {
	w.report(w.total)
}
