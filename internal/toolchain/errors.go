package toolchain

import "errors"

// Step identifies one stage of the provisioning pipeline.
type Step string

const (
	StepResolve   Step = "resolve"
	StepDownload  Step = "download"
	StepExtract   Step = "extract"
	StepOwnership Step = "ownership"
	StepReplace   Step = "replace"
)

// Steps lists the pipeline stages in execution order.
var Steps = []Step{StepResolve, StepDownload, StepExtract, StepOwnership, StepReplace}

var (
	ErrVersionResolution = errors.New("version resolution failed")
	ErrDownload          = errors.New("download failed")
	ErrReplace           = errors.New("replace failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrOwnership         = errors.New("ownership transfer failed")
)

var stepSentinels = map[Step]error{
	StepResolve:   ErrVersionResolution,
	StepDownload:  ErrDownload,
	StepReplace:   ErrReplace,
	StepExtract:   ErrExtraction,
	StepOwnership: ErrOwnership,
}

// StepError reports the failing step, what it was operating on (a URL or a
// path) and the underlying cause.
type StepError struct {
	Step   Step
	Target string
	Err    error
}

func (e *StepError) Error() string {
	sentinel := stepSentinels[e.Step]
	msg := string(e.Step) + " failed"
	if sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Target != "" {
		msg += " (" + e.Target + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error's step.
func (e *StepError) Is(target error) bool {
	sentinel, ok := stepSentinels[e.Step]
	return ok && target == sentinel
}

// VersionResolutionError wraps a failure to obtain a usable version string.
func VersionResolutionError(target string, err error) error {
	return &StepError{Step: StepResolve, Target: target, Err: err}
}

// DownloadError wraps a failure to retrieve or verify the archive.
func DownloadError(target string, err error) error {
	return &StepError{Step: StepDownload, Target: target, Err: err}
}

// ReplaceError wraps a failure to swap the staged tree into place.
func ReplaceError(target string, err error) error {
	return &StepError{Step: StepReplace, Target: target, Err: err}
}

// ExtractionError wraps a failure to unpack the archive.
func ExtractionError(target string, err error) error {
	return &StepError{Step: StepExtract, Target: target, Err: err}
}

// OwnershipError wraps a failure to resolve the owner or chown the tree.
func OwnershipError(target string, err error) error {
	return &StepError{Step: StepOwnership, Target: target, Err: err}
}

// FailedStep returns the pipeline step an error originated from.
func FailedStep(err error) (Step, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
