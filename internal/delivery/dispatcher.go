// Package delivery sends one message to many recipients and runs batches in
// the background.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/channel"
)

// RecipientResult pairs a recipient with its send outcome.
type RecipientResult struct {
	Recipient string                 `json:"recipient"`
	Result    channel.DeliveryResult `json:"result"`
}

// BatchSummary aggregates one batch. Details are in input order.
type BatchSummary struct {
	Total        int               `json:"total"`
	SuccessCount int               `json:"success"`
	FailedCount  int               `json:"failed"`
	Details      []RecipientResult `json:"details"`
}

// Observer is notified as a batch progresses. Calls for one batch are made
// from a single goroutine, in order.
type Observer interface {
	RecipientDone(batchID string, index, total int, rr RecipientResult)
	BatchDone(batchID string, summary BatchSummary)
}

// Dispatcher sends to recipients one at a time, pausing between sends.
type Dispatcher struct {
	channel   channel.Channel
	pacing    time.Duration
	observers []Observer
	logger    zerolog.Logger
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a Dispatcher. A zero pacing interval sends
// back to back.
func NewDispatcher(ch channel.Channel, pacing time.Duration, logger zerolog.Logger, observers ...Observer) *Dispatcher {
	return &Dispatcher{
		channel:   ch,
		pacing:    pacing,
		observers: observers,
		logger:    logger.With().Str("component", "dispatcher").Str("channel", ch.Name()).Logger(),
		now:       time.Now,
		wait:      sleepContext,
	}
}

// Channel returns the channel used for sends.
func (d *Dispatcher) Channel() channel.Channel { return d.channel }

// DispatchAll sends msg to every recipient under a fresh batch id.
func (d *Dispatcher) DispatchAll(ctx context.Context, recipients []string, msg channel.OutboundMessage) BatchSummary {
	return d.Dispatch(ctx, uuid.New().String(), recipients, msg)
}

// Dispatch sends msg to each recipient strictly in order. A failed or
// panicking send is recorded and the batch continues. Once ctx is done the
// remaining recipients are recorded as cancelled without being sent.
func (d *Dispatcher) Dispatch(ctx context.Context, batchID string, recipients []string, msg channel.OutboundMessage) BatchSummary {
	summary := BatchSummary{
		Total:   len(recipients),
		Details: make([]RecipientResult, 0, len(recipients)),
	}
	if len(recipients) == 0 {
		return summary
	}

	log := d.logger.With().Str("batch_id", batchID).Logger()
	log.Info().Int("recipients", len(recipients)).Msg("batch started")
	started := d.now()

	for i, recipient := range recipients {
		var res channel.DeliveryResult
		if err := ctx.Err(); err != nil {
			res = channel.DeliveryResult{
				Status:    "failed",
				Error:     "delivery cancelled: " + err.Error(),
				ErrorCode: channel.ErrCodeCancelled,
				Timestamp: d.now(),
			}
		} else {
			res = d.send(ctx, recipient, msg)
		}

		rr := RecipientResult{Recipient: recipient, Result: res}
		summary.Details = append(summary.Details, rr)
		if res.Success {
			summary.SuccessCount++
			log.Debug().Str("recipient", recipient).Str("message_id", res.MessageID).Msg("message sent")
		} else {
			summary.FailedCount++
			log.Warn().Str("recipient", recipient).Str("error_code", res.ErrorCode).Str("error", res.Error).Msg("message failed")
		}
		for _, o := range d.observers {
			o.RecipientDone(batchID, i, len(recipients), rr)
		}

		if i < len(recipients)-1 && d.pacing > 0 && ctx.Err() == nil {
			d.wait(ctx, d.pacing)
		}
	}

	batchesCompletedCounter.WithLabelValues(d.channel.Name()).Inc()
	log.Info().
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailedCount).
		Dur("elapsed", d.now().Sub(started)).
		Msg("batch completed")

	for _, o := range d.observers {
		o.BatchDone(batchID, summary)
	}
	return summary
}

// send calls the channel, turning a panic into a failed result.
func (d *Dispatcher) send(ctx context.Context, recipient string, msg channel.OutboundMessage) (res channel.DeliveryResult) {
	name := d.channel.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("recipient", recipient).Interface("panic", r).Msg("channel panicked")
			res = channel.DeliveryResult{
				Status:    "failed",
				Error:     fmt.Sprintf("internal error: %v", r),
				ErrorCode: channel.ErrCodeInternal,
				Timestamp: d.now(),
			}
		}
		sendDurationHist.WithLabelValues(name).Observe(time.Since(start).Seconds())
		status := "failed"
		if res.Success {
			status = "success"
		}
		messagesSentCounter.WithLabelValues(name, status).Inc()
	}()
	return d.channel.Send(ctx, recipient, msg)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
