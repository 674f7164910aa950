package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
	"github.com/ziadkadry99/drivenotify/internal/pipeline"
	"github.com/ziadkadry99/drivenotify/internal/progress"
	"github.com/ziadkadry99/drivenotify/internal/recipients"
)

var (
	sendTo       []string
	sendMediaURL string
	sendButtons  []string
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a free-text WhatsApp message",
	Long: `Sends a message to the given numbers from this process, showing progress as
each recipient is delivered. Manual sends are not written to the
notification log.`,
	Example: `  drivenotify send --to 010-1111-2222 --to 010-3333-4444 "Quarterly report is ready"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := pipeline.ManualRequest{
			Recipients: sendTo,
			Message:    strings.Join(args, " "),
		}
		if sendMediaURL != "" {
			req.FileInfo = map[string]any{"thumbnailUrl": sendMediaURL}
		}
		for i, title := range sendButtons {
			req.Buttons = append(req.Buttons, channel.Button{ID: fmt.Sprintf("btn_%d", i), Title: title})
		}

		return runCLISend(len(recipients.Dedupe(sendTo)), func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Response, error) {
			return p.ManualSend(ctx, req)
		})
	},
}

// runCLISend runs one pipeline operation against an in-process worker and
// waits for the batch to finish.
func runCLISend(total int, op func(context.Context, *pipeline.Pipeline) (*pipeline.Response, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep log lines off the progress bar.
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	if !verbose && logger.GetLevel() < zerolog.WarnLevel {
		logger = logger.Level(zerolog.WarnLevel)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := progress.NewReporter(os.Stderr)
	results := &batchResult{}
	worker := a.worker(reporter, results)

	reporter.Start(total)
	resp, err := op(ctx, a.pipeline(worker))
	if err != nil {
		drainWorker(context.Background(), worker, logger)
		return err
	}
	if !resp.Success {
		drainWorker(context.Background(), worker, logger)
		return fmt.Errorf("%s", resp.Message)
	}

	// Ctrl-C cancels the remaining recipients.
	drainCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-drainCtx.Done():
		}
	}()
	drainWorker(drainCtx, worker, logger)

	if results.summary.FailedCount > 0 {
		for _, d := range results.summary.Details {
			if !d.Result.Success {
				fmt.Fprintf(os.Stderr, "  %s: %s %s\n", d.Recipient, d.Result.ErrorCode, d.Result.Error)
			}
		}
		return fmt.Errorf("%d of %d deliveries failed", results.summary.FailedCount, results.summary.Total)
	}
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drainWorker waits for queued deliveries and logs an incomplete drain.
func drainWorker(ctx context.Context, w shutdowner, logger zerolog.Logger) {
	if err := w.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("delivery queue not fully drained")
	}
}

// batchResult keeps the last batch summary for the exit status.
type batchResult struct {
	summary delivery.BatchSummary
}

func (b *batchResult) RecipientDone(string, int, int, delivery.RecipientResult) {}

func (b *batchResult) BatchDone(_ string, s delivery.BatchSummary) { b.summary = s }

func init() {
	sendCmd.Flags().StringSliceVar(&sendTo, "to", nil, "recipient phone number (repeatable or comma-separated)")
	sendCmd.Flags().StringVar(&sendMediaURL, "media-url", "", "image URL to attach")
	sendCmd.Flags().StringSliceVar(&sendButtons, "button", nil, "reply button title (up to 3)")
	sendCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(sendCmd)
}
