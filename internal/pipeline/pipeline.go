// Package pipeline turns inbound Drive events and manual requests into
// queued WhatsApp deliveries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
	"github.com/ziadkadry99/drivenotify/internal/event"
	"github.com/ziadkadry99/drivenotify/internal/message"
	"github.com/ziadkadry99/drivenotify/internal/notifications"
	"github.com/ziadkadry99/drivenotify/internal/phone"
	"github.com/ziadkadry99/drivenotify/internal/recipients"
)

// Response is returned to the caller of every pipeline operation. A false
// Success with a nil error is an expected outcome such as an invalid event.
type Response struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	NotificationID string         `json:"notificationId,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// ManualRequest is an administrative free-text send.
type ManualRequest struct {
	Recipients []string         `json:"recipients"`
	Message    string           `json:"message"`
	FileInfo   map[string]any   `json:"fileInfo,omitempty"`
	Buttons    []channel.Button `json:"buttons,omitempty"`
}

// LogStore is the part of the notification log the pipeline writes to.
type LogStore interface {
	Create(ctx context.Context, rec notifications.NewRecord) (string, error)
	UpdateStatus(ctx context.Context, id string, successCount, failedCount int) error
}

// Queue accepts delivery jobs.
type Queue interface {
	Enqueue(ctx context.Context, job delivery.Job) error
}

// Options tune optional pipeline behaviour.
type Options struct {
	// AttachThumbnail sends the event thumbnail as an image message.
	AttachThumbnail bool
	// TestNumber receives SendTest when no number is given.
	TestNumber string
}

// Pipeline validates, resolves, formats, logs and queues.
type Pipeline struct {
	resolver  recipients.Resolver
	formatter *message.Formatter
	store     LogStore
	queue     Queue
	opts      Options
	logger    zerolog.Logger
}

// New creates a Pipeline.
func New(resolver recipients.Resolver, formatter *message.Formatter, store LogStore, queue Queue, opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		formatter: formatter,
		store:     store,
		queue:     queue,
		opts:      opts,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// HandleEvent processes one Drive event. Validation failures and empty
// recipient lists return before any record is written or message sent.
// The returned error is reserved for unexpected failures.
func (p *Pipeline) HandleEvent(ctx context.Context, ev event.DriveEvent) (*Response, error) {
	log := p.logger.With().Str("event_type", ev.EventType).Str("file_id", ev.FileID).Logger()

	if err := event.Validate(ev); err != nil {
		var verr *event.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Warn().Str("field", verr.Field).Msg("invalid event received")
		return &Response{Success: false, Message: "Invalid event: " + verr.Field + " " + verr.Reason}, nil
	}

	targets := p.resolver.Resolve(ev)
	if len(targets) == 0 {
		log.Warn().Msg("no recipients for event")
		return &Response{Success: false, Message: "No recipients configured"}, nil
	}

	msg := channel.OutboundMessage{Text: p.formatter.Format(ev)}
	if p.opts.AttachThumbnail && ev.ThumbnailURL != "" {
		msg.MediaURL = ev.ThumbnailURL
	}

	recordID, err := p.store.Create(ctx, notifications.NewRecord{
		EventType:  ev.EventType,
		FileName:   ev.FileName,
		FileID:     ev.FileID,
		Recipients: targets,
	})
	if err != nil {
		return nil, fmt.Errorf("creating notification record: %w", err)
	}

	job := delivery.Job{
		ID:         uuid.New().String(),
		RecordID:   recordID,
		Recipients: targets,
		Message:    msg,
		OnComplete: p.completeRecord(recordID),
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		// The record still gets its single status update.
		if uerr := p.store.UpdateStatus(context.WithoutCancel(ctx), recordID, 0, len(targets)); uerr != nil {
			log.Error().Err(uerr).Str("record_id", recordID).Msg("failed to close record after enqueue failure")
		}
		return nil, fmt.Errorf("queueing delivery: %w", err)
	}

	log.Info().Str("record_id", recordID).Int("recipients", len(targets)).Msg("delivery queued")
	return &Response{
		Success:        true,
		Message:        fmt.Sprintf("Sending notification to %d recipient(s)", len(targets)),
		NotificationID: recordID,
		Details: map[string]any{
			"eventType":      ev.EventType,
			"fileName":       ev.FileName,
			"recipientCount": len(targets),
		},
	}, nil
}

// completeRecord returns the hook that writes a batch's counts to its record.
func (p *Pipeline) completeRecord(recordID string) delivery.CompletionHook {
	return func(ctx context.Context, s delivery.BatchSummary) {
		if err := p.store.UpdateStatus(ctx, recordID, s.SuccessCount, s.FailedCount); err != nil {
			p.logger.Error().Err(err).Str("record_id", recordID).Msg("failed to record delivery status")
			return
		}
		p.logger.Info().
			Str("record_id", recordID).
			Int("success", s.SuccessCount).
			Int("failed", s.FailedCount).
			Msg("notification completed")
	}
}

// ManualSend queues a free-text message. Manual sends are not written to the
// notification log.
func (p *Pipeline) ManualSend(ctx context.Context, req ManualRequest) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return &Response{Success: false, Message: "Message is required"}, nil
	}
	targets := recipients.Dedupe(req.Recipients)
	if len(targets) == 0 {
		return &Response{Success: false, Message: "No valid recipients"}, nil
	}

	msg := channel.OutboundMessage{
		Text:     p.formatter.FormatCustom(req.Message),
		MediaURL: stringField(req.FileInfo, "thumbnailUrl"),
		Buttons:  req.Buttons,
	}
	job := delivery.Job{ID: uuid.New().String(), Recipients: targets, Message: msg}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("queueing manual delivery: %w", err)
	}

	p.logger.Info().Str("job_id", job.ID).Int("recipients", len(targets)).Msg("manual delivery queued")
	return &Response{
		Success: true,
		Message: fmt.Sprintf("Sending message to %d recipient(s)", len(targets)),
		Details: map[string]any{"recipientCount": len(targets)},
	}, nil
}

// SendTest queues the test message to to, or to the configured test number
// when to is empty.
func (p *Pipeline) SendTest(ctx context.Context, to string) (*Response, error) {
	if strings.TrimSpace(to) == "" {
		to = p.opts.TestNumber
	}
	if strings.TrimSpace(to) == "" {
		return &Response{Success: false, Message: "No test number configured"}, nil
	}
	if !phone.Validate(to) {
		return &Response{Success: false, Message: "Invalid phone number"}, nil
	}

	number := phone.Normalize(to)
	job := delivery.Job{
		ID:         uuid.New().String(),
		Recipients: []string{number},
		Message:    channel.OutboundMessage{Text: p.formatter.FormatTest()},
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("queueing test message: %w", err)
	}
	return &Response{
		Success: true,
		Message: "Test message queued",
		Details: map[string]any{"recipient": number},
	}, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
