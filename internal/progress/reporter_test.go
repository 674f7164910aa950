package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
)

func TestNewReporterCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter(nil).(*CIReporter); !ok {
		t.Error("expected CIReporter under CI")
	}
}

func TestNewReporterTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if _, ok := NewReporter(nil).(*TerminalReporter); !ok {
		t.Error("expected TerminalReporter outside CI")
	}
}

func TestCIReporterOutput(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{out: &buf}

	r.Start(2)
	r.RecipientDone("b", 0, 2, delivery.RecipientResult{
		Recipient: "821011112222",
		Result:    channel.DeliveryResult{Success: true},
	})
	r.RecipientDone("b", 1, 2, delivery.RecipientResult{
		Recipient: "821033334444",
		Result:    channel.DeliveryResult{ErrorCode: channel.ErrCodeNetwork},
	})
	r.BatchDone("b", delivery.BatchSummary{Total: 2, SuccessCount: 1, FailedCount: 1})

	out := buf.String()
	for _, want := range []string{
		"Sending to 2 recipient(s)",
		"[1/2] 821011112222 ok",
		"[2/2] 821033334444 failed (network_error)",
		"Done: 1 sent, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTerminalReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	r := &TerminalReporter{out: &buf}

	// Updates before Start are ignored.
	r.RecipientDone("b", 0, 1, delivery.RecipientResult{Recipient: "x"})

	r.Start(1)
	r.RecipientDone("b", 0, 1, delivery.RecipientResult{
		Recipient: "821011112222",
		Result:    channel.DeliveryResult{Success: true},
	})
	r.BatchDone("b", delivery.BatchSummary{Total: 1, SuccessCount: 1})

	if !strings.Contains(buf.String(), "Sent 1 of 1 (0 failed)") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
