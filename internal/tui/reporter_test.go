package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"toolprov/internal/toolchain"
)

func TestProgramReporterMessages(t *testing.T) {
	var got []tea.Msg
	r := NewProgramReporter(func(msg tea.Msg) { got = append(got, msg) })

	r.StepStarted("go", toolchain.StepDownload)
	r.Progress("go", 10, 100)
	r.StepFinished("go", toolchain.StepDownload, nil)
	r.StepStarted("go", toolchain.StepExtract)
	r.StepFinished("go", toolchain.StepExtract, errors.New("corrupt archive"))

	want := []tea.Msg{
		RowUpdateMsg{Key: "go", Fields: map[string]string{ColStep: "download", ColStatus: "downloading", ColDetail: ""}},
		TransferMsg{Key: "go", Written: 10, Total: 100},
		RowUpdateMsg{Key: "go", Fields: map[string]string{ColStep: "extract", ColStatus: "extracting", ColDetail: ""}},
		RowUpdateMsg{Key: "go", Fields: map[string]string{ColStep: "extract", ColStatus: "failed", ColDetail: "corrupt archive"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestLogReporterQuarters(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true})

	r := NewLogReporter(logger)
	r.StepStarted("go", toolchain.StepDownload)
	for _, written := range []int64{10, 20, 30, 55, 60, 99, 100} {
		r.Progress("go", written, 100)
	}
	r.StepFinished("go", toolchain.StepDownload, errors.New("unexpected EOF"))

	logged := out.String()
	for _, want := range []string{"downloading", "(25%)", "(50%)", "(75%)", "(100%)", "step failed", "unexpected EOF"} {
		if !strings.Contains(logged, want) {
			t.Errorf("expected log to contain %q:\n%s", want, logged)
		}
	}
	if strings.Count(logged, "(50%)") != 1 {
		t.Errorf("expected each quarter logged once:\n%s", logged)
	}
}

func TestActiveStatus(t *testing.T) {
	for _, step := range toolchain.Steps {
		if ActiveStatus(step) == string(step) {
			t.Errorf("expected an active status for %s", step)
		}
	}
}
