package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeShutdowner struct {
	err    error
	called bool
}

func (f *fakeShutdowner) Shutdown(context.Context) error {
	f.called = true
	return f.err
}

func TestDrainWorkerLogsIncompleteDrain(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	w := &fakeShutdowner{err: context.DeadlineExceeded}

	drainWorker(context.Background(), w, logger)

	if !w.called {
		t.Fatal("expected Shutdown to be called")
	}
	if !strings.Contains(buf.String(), "delivery queue not fully drained") {
		t.Errorf("expected warning, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), context.DeadlineExceeded.Error()) {
		t.Errorf("expected error in log, got %q", buf.String())
	}
}

func TestDrainWorkerQuietOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	w := &fakeShutdowner{}

	drainWorker(context.Background(), w, zerolog.New(&buf))

	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}

