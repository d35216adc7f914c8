package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"toolprov/internal/toolchain"
)

// Column headers shared by the reporters and the CLI tables.
const (
	ColTool    = "TOOL"
	ColStep    = "STEP"
	ColStatus  = "STATUS"
	ColVersion = "VERSION"
	ColDetail  = "DETAIL"
)

var activeStatus = map[toolchain.Step]string{
	toolchain.StepResolve:   "resolving",
	toolchain.StepDownload:  "downloading",
	toolchain.StepExtract:   "extracting",
	toolchain.StepOwnership: "chowning",
	toolchain.StepReplace:   "replacing",
}

// ActiveStatus returns the in-progress status shown while step runs.
func ActiveStatus(step toolchain.Step) string {
	if s, ok := activeStatus[step]; ok {
		return s
	}
	return string(step)
}

// ProgramReporter turns provisioner callbacks into bubbletea messages. Rows
// are keyed by tool name.
type ProgramReporter struct {
	send func(tea.Msg)
}

// NewProgramReporter wraps the send callback handed out by RunWithWork.
func NewProgramReporter(send func(tea.Msg)) *ProgramReporter {
	return &ProgramReporter{send: send}
}

// StepStarted implements toolchain.Reporter.
func (r *ProgramReporter) StepStarted(tool string, step toolchain.Step) {
	r.send(RowUpdateMsg{
		Key: tool,
		Fields: map[string]string{
			ColStep:   string(step),
			ColStatus: ActiveStatus(step),
			ColDetail: "",
		},
	})
}

// StepFinished implements toolchain.Reporter. Successful steps leave the
// row alone; the next StepStarted or the final result overwrites it.
func (r *ProgramReporter) StepFinished(tool string, step toolchain.Step, err error) {
	if err == nil {
		return
	}
	r.send(RowUpdateMsg{
		Key: tool,
		Fields: map[string]string{
			ColStep:   string(step),
			ColStatus: "failed",
			ColDetail: err.Error(),
		},
	})
}

// Progress implements toolchain.Reporter.
func (r *ProgramReporter) Progress(tool string, written, total int64) {
	r.send(TransferMsg{Key: tool, Written: written, Total: total})
}

// LogReporter reports step transitions through a logger. It is used when
// output is not a terminal.
type LogReporter struct {
	log logrus.FieldLogger

	// lastQuarter is the most recent 25% download boundary logged per tool.
	lastQuarter map[string]int64
}

// NewLogReporter creates a reporter writing to log.
func NewLogReporter(log logrus.FieldLogger) *LogReporter {
	return &LogReporter{log: log, lastQuarter: make(map[string]int64)}
}

// StepStarted implements toolchain.Reporter.
func (r *LogReporter) StepStarted(tool string, step toolchain.Step) {
	r.log.WithFields(logrus.Fields{"tool": tool, "step": step}).Info(ActiveStatus(step))
	if step == toolchain.StepDownload {
		r.lastQuarter[tool] = 0
	}
}

// StepFinished implements toolchain.Reporter.
func (r *LogReporter) StepFinished(tool string, step toolchain.Step, err error) {
	entry := r.log.WithFields(logrus.Fields{"tool": tool, "step": step})
	if err != nil {
		entry.WithError(err).Error("step failed")
		return
	}
	entry.Debug("step finished")
}

// Progress implements toolchain.Reporter. Known-size downloads are logged
// at each quarter; unknown sizes only at debug level.
func (r *LogReporter) Progress(tool string, written, total int64) {
	entry := r.log.WithFields(logrus.Fields{"tool": tool, "step": toolchain.StepDownload})
	if total <= 0 {
		entry.Debug(TransferText(written, total))
		return
	}
	quarter := written * 4 / total
	if quarter <= r.lastQuarter[tool] {
		return
	}
	r.lastQuarter[tool] = quarter
	entry.Infof("%s (%d%%)", TransferText(written, total), quarter*25)
}
