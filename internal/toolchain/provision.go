package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultResolveTimeout  = 30 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultUserAgent       = "toolprov/1.0"
)

// Reporter receives step transitions and download progress. Calls are made
// from the provisioning goroutine in pipeline order.
type Reporter interface {
	StepStarted(tool string, step Step)
	StepFinished(tool string, step Step, err error)
	Progress(tool string, written, total int64)
}

type nopReporter struct{}

func (nopReporter) StepStarted(string, Step) {}

func (nopReporter) StepFinished(string, Step, error) {}

func (nopReporter) Progress(string, int64, int64) {}

// Options configures a Provisioner. Zero values select defaults.
type Options struct {
	Client          *http.Client
	UserAgent       string
	Owner           Owner
	Identity        IdentityDB
	ResolveTimeout  time.Duration
	DownloadTimeout time.Duration
	// StagingDir holds the downloaded archive. Defaults to the install
	// path's parent. Extraction always stages next to the install path so
	// the final rename stays on one filesystem.
	StagingDir  string
	SkipCurrent bool
	Reporter    Reporter
	Logger      logrus.FieldLogger
}

// Provisioner runs the resolve, download, extract, ownership and replace
// pipeline for one ToolSpec at a time. It holds no per-run state; callers
// serialize runs that target the same install path.
type Provisioner struct {
	client          *http.Client
	userAgent       string
	owner           Owner
	identity        IdentityDB
	resolveTimeout  time.Duration
	downloadTimeout time.Duration
	stagingDir      string
	skipCurrent     bool
	reporter        Reporter
	log             logrus.FieldLogger
}

// New builds a Provisioner from opts.
func New(opts Options) *Provisioner {
	p := &Provisioner{
		client:          opts.Client,
		userAgent:       opts.UserAgent,
		owner:           opts.Owner,
		identity:        opts.Identity,
		resolveTimeout:  opts.ResolveTimeout,
		downloadTimeout: opts.DownloadTimeout,
		stagingDir:      opts.StagingDir,
		skipCurrent:     opts.SkipCurrent,
		reporter:        opts.Reporter,
		log:             opts.Logger,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.userAgent == "" {
		p.userAgent = DefaultUserAgent
	}
	if p.resolveTimeout <= 0 {
		p.resolveTimeout = DefaultResolveTimeout
	}
	if p.downloadTimeout <= 0 {
		p.downloadTimeout = DefaultDownloadTimeout
	}
	if p.reporter == nil {
		p.reporter = nopReporter{}
	}
	if p.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		p.log = discard
	}
	return p
}

// Resolve runs only the version resolution step.
func (p *Provisioner) Resolve(ctx context.Context, spec ToolSpec) (ResolvedVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.resolveTimeout)
	defer cancel()
	return resolveVersion(ctx, p.client, p.userAgent, spec)
}

// Provision installs spec for platform. It stops at the first failing step;
// the install path then holds either the previous tree or nothing, never a
// mix of old and new files.
func (p *Provisioner) Provision(ctx context.Context, spec ToolSpec, platform Platform) (InstallResult, error) {
	if spec.InstallPath == "" {
		return InstallResult{}, fmt.Errorf("tool %s: install path is empty", spec.Name)
	}
	installPath, err := filepath.Abs(spec.InstallPath)
	if err != nil {
		return InstallResult{}, fmt.Errorf("tool %s: resolve install path: %w", spec.Name, err)
	}
	name := spec.Name
	log := p.log.WithFields(logrus.Fields{
		"tool":     name,
		"path":     installPath,
		"platform": platform.String(),
	})

	var version ResolvedVersion
	err = p.step(name, StepResolve, func() error {
		var err error
		version, err = p.Resolve(ctx, spec)
		return err
	})
	if err != nil {
		return InstallResult{}, err
	}
	log = log.WithField("version", version.Raw)
	log.Info("resolved version")

	result := InstallResult{
		Tool:     name,
		Path:     installPath,
		Version:  version,
		Owner:    p.owner,
		UID:      -1,
		GID:      -1,
		Platform: platform.String(),
	}
	if !p.owner.IsZero() {
		err := p.step(name, StepOwnership, func() error {
			uid, gid, err := p.identity.Lookup(p.owner)
			if err != nil {
				return OwnershipError(p.owner.String(), err)
			}
			result.UID, result.GID = uid, gid
			return nil
		})
		if err != nil {
			return InstallResult{}, err
		}
	}

	if p.skipCurrent {
		installed, err := Inspect(spec)
		if err != nil {
			log.WithError(err).Warn("could not read installed version")
		}
		if installed != "" && installed == version.Raw {
			log.Info("installed version is current; re-applying ownership only")
			if err := p.step(name, StepOwnership, func() error { return p.applyOwnership(installPath, result) }); err != nil {
				return InstallResult{}, err
			}
			files, err := countFiles(installPath)
			if err != nil {
				log.WithError(err).Warn("could not count installed files")
			}
			result.Files = files
			result.Reused = true
			return result, nil
		}
	}

	archiveURL, err := spec.Expand(spec.ArchiveURL, version, platform)
	if err != nil {
		err = DownloadError(spec.ArchiveURL, fmt.Errorf("expand archive url: %w", err))
		return InstallResult{}, p.fail(name, StepDownload, err)
	}
	result.ArchiveURL = archiveURL
	format := spec.archiveFormat(archiveURL)
	if !format.Valid() {
		err = ExtractionError(archiveURL, fmt.Errorf("unsupported archive format %q", format))
		return InstallResult{}, p.fail(name, StepExtract, err)
	}

	parent := filepath.Dir(installPath)
	downloadDir := p.stagingDir
	if downloadDir == "" {
		downloadDir = parent
	}

	var archive archiveFile
	err = p.step(name, StepDownload, func() error {
		dctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
		defer cancel()
		expected, err := p.expectedDigest(dctx, spec, version, platform)
		if err != nil {
			return err
		}
		log.WithField("url", archiveURL).Debug("downloading archive")
		archive, err = p.downloadArchive(dctx, name, archiveURL, downloadDir, expected)
		return err
	})
	if err != nil {
		return InstallResult{}, err
	}
	defer func() { _ = os.Remove(archive.Path) }()
	result.Digest = archive.Digest
	log.WithFields(logrus.Fields{"digest": archive.Digest.String(), "bytes": archive.Size}).Debug("archive downloaded")

	if err := os.MkdirAll(parent, 0o755); err != nil {
		err = ReplaceError(parent, fmt.Errorf("prepare parent dir: %w", err))
		return InstallResult{}, p.fail(name, StepReplace, err)
	}
	staged, err := os.MkdirTemp(parent, stagingPattern(installPath))
	if err != nil {
		err = ReplaceError(parent, fmt.Errorf("create staging dir: %w", err))
		return InstallResult{}, p.fail(name, StepReplace, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staged)
		}
	}()

	err = p.step(name, StepExtract, func() error {
		if err := os.Chmod(staged, 0o755); err != nil {
			return ExtractionError(staged, err)
		}
		files, err := extractArchive(ctx, format, archive.Path, staged, spec.StripComponents)
		if err != nil {
			return ExtractionError(archiveURL, err)
		}
		if files == 0 {
			return ExtractionError(archiveURL, errors.New("archive contains no files"))
		}
		result.Files = files
		return nil
	})
	if err != nil {
		return InstallResult{}, err
	}

	if err := p.step(name, StepOwnership, func() error { return p.applyOwnership(staged, result) }); err != nil {
		return InstallResult{}, err
	}

	var previous string
	err = p.step(name, StepReplace, func() error {
		var err error
		previous, err = replaceDir(staged, installPath)
		if err != nil {
			return ReplaceError(installPath, err)
		}
		return nil
	})
	if err != nil {
		return InstallResult{}, err
	}
	committed = true
	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			log.WithError(err).WithField("previous", previous).Warn("could not remove previous install")
		}
	}

	log.WithField("files", result.Files).Info("installed")
	return result, nil
}

// applyOwnership chowns root to the resolved ids; a zero owner is a no-op.
func (p *Provisioner) applyOwnership(root string, result InstallResult) error {
	if p.owner.IsZero() {
		return nil
	}
	if err := chownTree(root, result.UID, result.GID); err != nil {
		return OwnershipError(root, err)
	}
	return nil
}

// step wraps fn with reporter notifications.
func (p *Provisioner) step(tool string, step Step, fn func() error) error {
	p.reporter.StepStarted(tool, step)
	err := fn()
	p.reporter.StepFinished(tool, step, err)
	return err
}

// fail reports a step that failed before any work in it began.
func (p *Provisioner) fail(tool string, step Step, err error) error {
	return p.step(tool, step, func() error { return err })
}
