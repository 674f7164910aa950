package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
)

// Reporter shows delivery progress for a batch sent from the CLI.
// It implements delivery.Observer.
type Reporter interface {
	delivery.Observer
	// Start announces a batch of total recipients.
	Start(total int)
}

// NewReporter returns a TerminalReporter, or a CIReporter when running
// under CI. Output goes to w, or stderr when w is nil.
func NewReporter(w io.Writer) Reporter {
	if w == nil {
		w = os.Stderr
	}
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{out: w}
	}
	return &TerminalReporter{out: w}
}

// TerminalReporter displays a progress bar.
type TerminalReporter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription("Sending"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) RecipientDone(_ string, index, _ int, rr delivery.RecipientResult) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(describe(rr))
	_ = r.bar.Set(index + 1)
}

func (r *TerminalReporter) BatchDone(_ string, s delivery.BatchSummary) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Fprintf(r.out, "Sent %d of %d (%d failed)\n", s.SuccessCount, s.Total, s.FailedCount)
}

// CIReporter prints one line per recipient, suitable for CI logs.
type CIReporter struct {
	out   io.Writer
	total int
}

func (r *CIReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.out, "Sending to %d recipient(s)\n", total)
}

func (r *CIReporter) RecipientDone(_ string, index, total int, rr delivery.RecipientResult) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", index+1, total, describe(rr))
}

func (r *CIReporter) BatchDone(_ string, s delivery.BatchSummary) {
	fmt.Fprintf(r.out, "Done: %d sent, %d failed\n", s.SuccessCount, s.FailedCount)
}

func describe(rr delivery.RecipientResult) string {
	if rr.Result.Success {
		return rr.Recipient + " ok"
	}
	if rr.Result.ErrorCode != "" {
		return rr.Recipient + " failed (" + rr.Result.ErrorCode + ")"
	}
	return rr.Recipient + " failed"
}
