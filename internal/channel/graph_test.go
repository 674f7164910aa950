package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziadkadry99/drivenotify/internal/config"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newGraphForTest(t *testing.T, handler http.HandlerFunc) *GraphChannel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.GraphConfig{
		BaseURL:       server.URL,
		APIVersion:    "v18.0",
		AccessToken:   "test-token",
		PhoneNumberID: "pn-1",
		Timeout:       5 * time.Second,
	}
	return NewGraphChannel(cfg, zerolog.Nop(), WithHTTPClient(server.Client()), WithClock(func() time.Time { return fixedNow }))
}

func decodeGraph(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestGraphChannel_Name(t *testing.T) {
	g := NewGraphChannel(config.GraphConfig{}, zerolog.Nop())
	assert.Equal(t, "graph", g.Name())
}

func TestGraphChannel_SendText(t *testing.T) {
	var got map[string]any
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v18.0/pn-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got = decodeGraph(t, r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.1"}]}`)
	})

	res := g.Send(context.Background(), "010-1111-2222", OutboundMessage{Text: "hello"})

	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "wamid.1", res.MessageID)
	assert.Equal(t, "sent", res.Status)
	assert.Equal(t, fixedNow, res.Timestamp)

	assert.Equal(t, "821011112222", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "hello", got["text"].(map[string]any)["body"])
	assert.NotContains(t, got, "image")
	assert.NotContains(t, got, "interactive")
}

func TestGraphChannel_SendImage(t *testing.T) {
	var got map[string]any
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		got = decodeGraph(t, r)
		io.WriteString(w, `{"messages":[{"id":"wamid.2"}]}`)
	})

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "caption", MediaURL: "https://x/thumb.png"})

	require.True(t, res.Success)
	assert.Equal(t, "image", got["type"])
	assert.NotContains(t, got, "text")
	image := got["image"].(map[string]any)
	assert.Equal(t, "https://x/thumb.png", image["link"])
	assert.Equal(t, "caption", image["caption"])
}

func TestGraphChannel_SendInteractive(t *testing.T) {
	var got map[string]any
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		got = decodeGraph(t, r)
		io.WriteString(w, `{"messages":[{"id":"wamid.3"}]}`)
	})

	msg := OutboundMessage{
		Text:     "Open the file?",
		MediaURL: "https://x/thumb.png",
		Buttons: []Button{
			{ID: "open", Title: "Open"},
			{Title: "A very long button title that is cut"},
			{ID: "c", Title: "C"},
			{ID: "d", Title: "D"},
		},
	}
	res := g.Send(context.Background(), "01011112222", msg)

	require.True(t, res.Success)
	assert.Equal(t, "interactive", got["type"])
	assert.NotContains(t, got, "text")
	assert.NotContains(t, got, "image")

	in := got["interactive"].(map[string]any)
	assert.Equal(t, "button", in["type"])
	assert.Equal(t, "Open the file?", in["body"].(map[string]any)["text"])
	assert.Equal(t, "image", in["header"].(map[string]any)["type"])

	buttons := in["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, buttons, maxButtons)
	second := buttons[1].(map[string]any)["reply"].(map[string]any)
	assert.Equal(t, "btn_2", second["id"])
	assert.Len(t, []rune(second["title"].(string)), maxButtonTitle)
}

func TestGraphChannel_SendTemplate(t *testing.T) {
	var got map[string]any
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		got = decodeGraph(t, r)
		io.WriteString(w, `{"messages":[{"id":"wamid.4","message_status":"accepted"}]}`)
	})

	components := []TemplateComponent{{
		Type:       "body",
		Parameters: []TemplateParameter{{Type: "text", Text: "report.pdf"}},
	}}
	res := g.SendTemplate(context.Background(), "01011112222", "file_shared_v1", "", components)

	require.True(t, res.Success)
	assert.Equal(t, "accepted", res.Status)
	assert.Equal(t, "template", got["type"])
	tmpl := got["template"].(map[string]any)
	assert.Equal(t, "file_shared_v1", tmpl["name"])
	assert.Equal(t, "ko", tmpl["language"].(map[string]any)["code"])
	assert.Len(t, tmpl["components"], 1)
}

func TestGraphChannel_APIError(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"Recipient not on allow list","type":"OAuthException","code":131030}}`)
	})

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, "Recipient not on allow list", res.Error)
	assert.Equal(t, "131030", res.ErrorCode)
}

func TestGraphChannel_APIErrorWithoutCode(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	})

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid OAuth access token", res.Error)
	assert.Equal(t, "http_401", res.ErrorCode)
}

func TestGraphChannel_HTTPErrorWithoutBody(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, "http_502", res.ErrorCode)
	assert.Equal(t, "Bad Gateway", res.Error)
}

func TestGraphChannel_MalformedResponse(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>not json</html>`)
	})

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeInvalidResponse, res.ErrorCode)
}

func TestGraphChannel_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	g := NewGraphChannel(config.GraphConfig{
		BaseURL:       server.URL,
		AccessToken:   "tok",
		PhoneNumberID: "pn",
		Timeout:       time.Second,
	}, zerolog.Nop())

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeNetwork, res.ErrorCode)
	assert.NotEmpty(t, res.Error)
}

func TestGraphChannel_Cancelled(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := g.Send(ctx, "01011112222", OutboundMessage{Text: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeCancelled, res.ErrorCode)
}

func TestGraphChannel_MissingCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer server.Close()

	g := NewGraphChannel(config.GraphConfig{BaseURL: server.URL}, zerolog.Nop())

	res := g.Send(context.Background(), "01011112222", OutboundMessage{Text: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeMissingCredentials, res.ErrorCode)

	res = g.SendTemplate(context.Background(), "01011112222", "t", "en", nil)
	assert.Equal(t, ErrCodeMissingCredentials, res.ErrorCode)

	assert.ErrorIs(t, g.Ping(context.Background()), ErrMissingCredentials)
	assert.Zero(t, calls)
}

func TestGraphChannel_InvalidRecipient(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid recipient should not be sent")
	})

	res := g.Send(context.Background(), "12345", OutboundMessage{Text: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeInvalidRecipient, res.ErrorCode)
}

func TestGraphChannel_Ping(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v18.0/pn-1", r.URL.Path)
		io.WriteString(w, `{"id":"pn-1"}`)
	})
	require.NoError(t, g.Ping(context.Background()))
}

func TestGraphChannel_PingFailure(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := g.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGraphChannel_MessageStatus(t *testing.T) {
	g := newGraphForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/wamid.9", r.URL.Path)
		io.WriteString(w, `{"status":"read","delivered_at":"2024-01-01T00:00:01Z","read_at":"2024-01-01T00:01:00Z"}`)
	})

	st, err := g.MessageStatus(context.Background(), "wamid.9")
	require.NoError(t, err)
	assert.Equal(t, "read", st.Status)
	assert.Equal(t, "2024-01-01T00:01:00Z", st.ReadAt)
}

func TestNewSelectsChannel(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "graph", New(cfg, zerolog.Nop()).Name())

	cfg.Channel = config.ChannelTwilio
	assert.Equal(t, "twilio", New(cfg, zerolog.Nop()).Name())
}
