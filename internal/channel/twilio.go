package channel

import (
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

// TwilioChannel sends WhatsApp messages through Twilio's Messages API.
type TwilioChannel struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

// NewTwilioChannel creates a TwilioChannel. Missing credentials are reported
// per send.
func NewTwilioChannel(cfg config.TwilioConfig, logger zerolog.Logger, opts ...Option) *TwilioChannel {
	o := buildOptions(cfg.Timeout, opts)
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultTwilioBaseURL
	}
	return &TwilioChannel{
		baseURL:    base,
		accountSID: strings.TrimSpace(cfg.AccountSID),
		authToken:  strings.TrimSpace(cfg.AuthToken),
		from:       formatWhatsAppAddress(cfg.WhatsAppNumber),
		client:     o.client,
		now:        o.now,
		logger:     logger.With().Str("component", "channel").Str("channel", "twilio").Logger(),
	}
}

// Name implements Channel.
func (t *TwilioChannel) Name() string { return "twilio" }

func (t *TwilioChannel) configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

// Send implements Channel. Twilio has no free-form interactive message, so
// buttons are appended to the body as a numbered list.
func (t *TwilioChannel) Send(ctx context.Context, recipient string, msg OutboundMessage) DeliveryResult {
	to := phone.Normalize(recipient)
	if !t.configured() {
		return failure(t.now(), ErrCodeMissingCredentials, "Twilio account SID, auth token or WhatsApp number is not configured")
	}
	if !phone.Validate(to) {
		return failure(t.now(), ErrCodeInvalidRecipient, fmt.Sprintf("invalid phone number %q", recipient))
	}

	params := url.Values{}
	params.Set("To", "whatsapp:+"+to)
	params.Set("From", t.from)
	if body := withButtonList(msg.Text, msg.Buttons); body != "" {
		params.Set("Body", body)
	}
	if msg.MediaURL != "" {
		params.Set("MediaUrl", msg.MediaURL)
	}
	return t.post(ctx, params)
}

// SendTemplate implements Channel. The template name is a Twilio Content
// SID; body parameters become numbered content variables. languageCode is
// unused because Content templates are bound to one language.
func (t *TwilioChannel) SendTemplate(ctx context.Context, recipient, name, languageCode string, components []TemplateComponent) DeliveryResult {
	to := phone.Normalize(recipient)
	if !t.configured() {
		return failure(t.now(), ErrCodeMissingCredentials, "Twilio account SID, auth token or WhatsApp number is not configured")
	}
	if !phone.Validate(to) {
		return failure(t.now(), ErrCodeInvalidRecipient, fmt.Sprintf("invalid phone number %q", recipient))
	}

	params := url.Values{}
	params.Set("To", "whatsapp:+"+to)
	params.Set("From", t.from)
	params.Set("ContentSid", name)
	if vars := contentVariables(components); len(vars) > 0 {
		data, err := json.Marshal(vars)
		if err != nil {
			return failure(t.now(), ErrCodeInternal, fmt.Sprintf("encoding content variables: %v", err))
		}
		params.Set("ContentVariables", string(data))
	}
	return t.post(ctx, params)
}

type twilioBody struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *TwilioChannel) post(ctx context.Context, params url.Values) DeliveryResult {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return failure(t.now(), ErrCodeInternal, fmt.Sprintf("creating request: %v", err))
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn().Err(err).Str("to", params.Get("To")).Msg("twilio request failed")
		return transportFailure(ctx, t.now(), err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return failure(t.now(), ErrCodeNetwork, err.Error())
	}

	var parsed twilioBody
	parseErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := httpErrorCode(resp.StatusCode)
		if parseErr == nil && parsed.Code > 0 {
			code = strconv.Itoa(parsed.Code)
		}
		msg := parsed.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return failure(t.now(), code, msg)
	}
	if parseErr != nil {
		return failure(t.now(), ErrCodeInvalidResponse, fmt.Sprintf("decoding response: %v", parseErr))
	}

	status := parsed.Status
	if status == "" {
		status = "queued"
	}
	return DeliveryResult{Success: true, MessageID: parsed.SID, Status: status, Timestamp: t.now()}
}

// Ping fetches the account resource to verify the credentials.
func (t *TwilioChannel) Ping(ctx context.Context) error {
	if !t.configured() {
		return ErrMissingCredentials
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling twilio api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twilio api returned status %d", resp.StatusCode)
	}
	return nil
}

func withButtonList(text string, buttons []Button) string {
	if len(buttons) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	if text != "" {
		b.WriteString("\n")
	}
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Title)
	}
	return b.String()
}

// contentVariables numbers the text parameters of all components from 1.
func contentVariables(components []TemplateComponent) map[string]string {
	vars := map[string]string{}
	n := 0
	for _, c := range components {
		for _, p := range c.Parameters {
			if p.Text == "" {
				continue
			}
			n++
			vars[strconv.Itoa(n)] = p.Text
		}
	}
	return vars
}

// formatWhatsAppAddress turns "+14155238886" or "whatsapp:14155238886" into
// "whatsapp:+14155238886". The sender is not run through phone.Normalize
// because it is usually not a domestic number.
func formatWhatsAppAddress(number string) string {
	n := strings.TrimSpace(number)
	if strings.HasPrefix(strings.ToLower(n), "whatsapp:") {
		n = strings.TrimSpace(n[len("whatsapp:"):])
	}
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return "whatsapp:" + n
}
