// Package channel delivers one WhatsApp message to one recipient through a
// provider API. Provider failures never escape as Go errors from Send; they
// are reported in the DeliveryResult.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/config"
)

// Error codes set on failed results that did not come from the provider.
const (
	ErrCodeMissingCredentials = "missing_credentials"
	ErrCodeInvalidRecipient   = "invalid_recipient"
	ErrCodeNetwork            = "network_error"
	ErrCodeInvalidResponse    = "invalid_response"
	ErrCodeCancelled          = "cancelled"
	ErrCodeInternal           = "internal_error"
)

// ErrMissingCredentials is returned by Ping and MessageStatus when the
// channel is not configured.
var ErrMissingCredentials = errors.New("channel credentials are not configured")

const maxBodyBytes = 16 * 1024

// Button is an interactive reply button.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// OutboundMessage is the content sent to every recipient of a batch. It is
// passed by value and never modified by a channel.
type OutboundMessage struct {
	Text     string   `json:"text"`
	MediaURL string   `json:"mediaUrl,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// DeliveryResult is the outcome of one send.
type DeliveryResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TemplateParameter fills one variable of a pre-approved provider template.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TemplateComponent groups the parameters for one part of a template.
type TemplateComponent struct {
	Type       string              `json:"type"`
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

// MessageStatus is the provider-side state of a sent message.
type MessageStatus struct {
	Status      string `json:"status"`
	DeliveredAt string `json:"deliveredAt,omitempty"`
	ReadAt      string `json:"readAt,omitempty"`
}

// Channel sends messages through one provider. Implementations are safe for
// concurrent use and share a single HTTP client.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient string, msg OutboundMessage) DeliveryResult
	SendTemplate(ctx context.Context, recipient, name, languageCode string, components []TemplateComponent) DeliveryResult
	Ping(ctx context.Context) error
}

// StatusChecker is implemented by channels that can look up the delivery
// state of a sent message.
type StatusChecker interface {
	MessageStatus(ctx context.Context, messageID string) (*MessageStatus, error)
}

// Option customises a channel.
type Option func(*options)

type options struct {
	client *http.Client
	now    func() time.Time
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithClock overrides the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// New returns the channel selected by cfg.Channel.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) Channel {
	if cfg.Channel == config.ChannelTwilio {
		return NewTwilioChannel(cfg.Twilio, logger, opts...)
	}
	return NewGraphChannel(cfg.Graph, logger, opts...)
}

func failure(now time.Time, code, msg string) DeliveryResult {
	return DeliveryResult{
		Success:   false,
		Status:    "failed",
		Error:     msg,
		ErrorCode: code,
		Timestamp: now,
	}
}

// transportFailure classifies an error from http.Client.Do.
func transportFailure(ctx context.Context, now time.Time, err error) DeliveryResult {
	if ctx.Err() != nil {
		return failure(now, ErrCodeCancelled, ctx.Err().Error())
	}
	return failure(now, ErrCodeNetwork, err.Error())
}

func httpErrorCode(status int) string {
	return "http_" + strconv.Itoa(status)
}

func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}
