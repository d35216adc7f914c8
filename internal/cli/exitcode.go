package cli

import "toolprov/internal/toolchain"

// Process exit codes. Anything that is not a pipeline step failure
// (usage, catalog, settings) exits with ExitFailure.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitResolution = 10
	ExitDownload   = 11
	ExitReplace    = 12
	ExitExtraction = 13
	ExitOwnership  = 14
)

var stepExitCodes = map[toolchain.Step]int{
	toolchain.StepResolve:   ExitResolution,
	toolchain.StepDownload:  ExitDownload,
	toolchain.StepReplace:   ExitReplace,
	toolchain.StepExtract:   ExitExtraction,
	toolchain.StepOwnership: ExitOwnership,
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if step, ok := toolchain.FailedStep(err); ok {
		if code, ok := stepExitCodes[step]; ok {
			return code
		}
	}
	return ExitFailure
}
