package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/config"
	"github.com/ziadkadry99/drivenotify/internal/phone"
)

const (
	maxButtons     = 3
	maxButtonTitle = 20
)

// GraphChannel sends through the Meta WhatsApp Cloud API.
type GraphChannel struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	client        *http.Client
	now           func() time.Time
	logger        zerolog.Logger
}

// NewGraphChannel creates a GraphChannel. Missing credentials are not an
// error here; every send reports them instead.
func NewGraphChannel(cfg config.GraphConfig, logger zerolog.Logger, opts ...Option) *GraphChannel {
	o := buildOptions(cfg.Timeout, opts)
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultGraphBaseURL
	}
	if cfg.APIVersion != "" {
		base += "/" + cfg.APIVersion
	}
	return &GraphChannel{
		baseURL:       base,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		client:        o.client,
		now:           o.now,
		logger:        logger.With().Str("component", "channel").Str("channel", "graph").Logger(),
	}
}

// Name implements Channel.
func (g *GraphChannel) Name() string { return "graph" }

func (g *GraphChannel) configured() bool {
	return g.accessToken != "" && g.phoneNumberID != ""
}

type graphMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *graphText        `json:"text,omitempty"`
	Image            *graphImage       `json:"image,omitempty"`
	Interactive      *graphInteractive `json:"interactive,omitempty"`
	Template         *graphTemplate    `json:"template,omitempty"`
}

type graphText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type graphImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type graphInteractive struct {
	Type   string           `json:"type"`
	Header *graphHeader     `json:"header,omitempty"`
	Body   graphBody        `json:"body"`
	Action graphReplyAction `json:"action"`
}

type graphHeader struct {
	Type  string      `json:"type"`
	Image *graphImage `json:"image,omitempty"`
}

type graphBody struct {
	Text string `json:"text"`
}

type graphReplyAction struct {
	Buttons []graphButton `json:"buttons"`
}

type graphButton struct {
	Type  string     `json:"type"`
	Reply graphReply `json:"reply"`
}

type graphReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type graphTemplate struct {
	Name       string              `json:"name"`
	Language   graphLanguage       `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type graphLanguage struct {
	Code string `json:"code"`
}

type graphResponse struct {
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status"`
	} `json:"messages"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// buildMessage picks exactly one message form: interactive when buttons are
// present, else image when media is present, else text.
func buildMessage(to string, msg OutboundMessage) graphMessage {
	m := graphMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
	}

	switch {
	case len(msg.Buttons) > 0:
		m.Type = "interactive"
		in := &graphInteractive{
			Type:   "button",
			Body:   graphBody{Text: msg.Text},
			Action: graphReplyAction{Buttons: replyButtons(msg.Buttons)},
		}
		if msg.MediaURL != "" {
			in.Header = &graphHeader{Type: "image", Image: &graphImage{Link: msg.MediaURL}}
		}
		m.Interactive = in
	case msg.MediaURL != "":
		m.Type = "image"
		m.Image = &graphImage{Link: msg.MediaURL, Caption: msg.Text}
	default:
		m.Type = "text"
		m.Text = &graphText{Body: msg.Text, PreviewURL: strings.Contains(msg.Text, "https://")}
	}
	return m
}

// replyButtons applies the Cloud API limits: at most three buttons with
// titles of at most twenty characters and non-empty ids.
func replyButtons(buttons []Button) []graphButton {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	out := make([]graphButton, 0, len(buttons))
	for i, b := range buttons {
		id := b.ID
		if id == "" {
			id = "btn_" + strconv.Itoa(i+1)
		}
		title := []rune(b.Title)
		if len(title) > maxButtonTitle {
			title = title[:maxButtonTitle]
		}
		out = append(out, graphButton{Type: "reply", Reply: graphReply{ID: id, Title: string(title)}})
	}
	return out
}

// Send implements Channel.
func (g *GraphChannel) Send(ctx context.Context, recipient string, msg OutboundMessage) DeliveryResult {
	to := phone.Normalize(recipient)
	if !g.configured() {
		return failure(g.now(), ErrCodeMissingCredentials, "WhatsApp access token or phone number ID is not configured")
	}
	if !phone.Validate(to) {
		return failure(g.now(), ErrCodeInvalidRecipient, fmt.Sprintf("invalid phone number %q", recipient))
	}
	return g.post(ctx, buildMessage(to, msg))
}

// SendTemplate implements Channel.
func (g *GraphChannel) SendTemplate(ctx context.Context, recipient, name, languageCode string, components []TemplateComponent) DeliveryResult {
	to := phone.Normalize(recipient)
	if !g.configured() {
		return failure(g.now(), ErrCodeMissingCredentials, "WhatsApp access token or phone number ID is not configured")
	}
	if !phone.Validate(to) {
		return failure(g.now(), ErrCodeInvalidRecipient, fmt.Sprintf("invalid phone number %q", recipient))
	}
	if languageCode == "" {
		languageCode = "ko"
	}
	return g.post(ctx, graphMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &graphTemplate{
			Name:       name,
			Language:   graphLanguage{Code: languageCode},
			Components: components,
		},
	})
}

func (g *GraphChannel) post(ctx context.Context, m graphMessage) DeliveryResult {
	payload, err := json.Marshal(m)
	if err != nil {
		return failure(g.now(), ErrCodeInternal, fmt.Sprintf("encoding message: %v", err))
	}

	endpoint := fmt.Sprintf("%s/%s/messages", g.baseURL, url.PathEscape(g.phoneNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failure(g.now(), ErrCodeInternal, fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn().Err(err).Str("to", m.To).Msg("graph request failed")
		return transportFailure(ctx, g.now(), err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return failure(g.now(), ErrCodeNetwork, err.Error())
	}

	var parsed graphResponse
	parseErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && parsed.Error != nil {
			msg := parsed.Error.Message
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			code := httpErrorCode(resp.StatusCode)
			if parsed.Error.Code != 0 {
				code = strconv.Itoa(parsed.Error.Code)
			}
			return failure(g.now(), code, msg)
		}
		return failure(g.now(), httpErrorCode(resp.StatusCode), http.StatusText(resp.StatusCode))
	}
	if parseErr != nil {
		return failure(g.now(), ErrCodeInvalidResponse, fmt.Sprintf("decoding response: %v", parseErr))
	}

	result := DeliveryResult{Success: true, Status: "sent", Timestamp: g.now()}
	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
		if s := parsed.Messages[0].MessageStatus; s != "" {
			result.Status = s
		}
	}
	return result
}

// Ping checks that the configured phone number is reachable with the token.
func (g *GraphChannel) Ping(ctx context.Context) error {
	if !g.configured() {
		return ErrMissingCredentials
	}
	resp, err := g.get(ctx, g.phoneNumberID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph api returned status %d", resp.StatusCode)
	}
	return nil
}

// MessageStatus looks up the provider state of a sent message.
func (g *GraphChannel) MessageStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	if !g.configured() {
		return nil, ErrMissingCredentials
	}
	resp, err := g.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api returned status %d for message %s", resp.StatusCode, messageID)
	}

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	var data struct {
		Status      string `json:"status"`
		DeliveredAt string `json:"delivered_at"`
		ReadAt      string `json:"read_at"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding message status: %w", err)
	}
	return &MessageStatus{Status: data.Status, DeliveredAt: data.DeliveredAt, ReadAt: data.ReadAt}, nil
}

func (g *GraphChannel) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+url.PathEscape(path), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling graph api: %w", err)
	}
	return resp, nil
}
var _ StatusChecker = (*GraphChannel)(nil)
