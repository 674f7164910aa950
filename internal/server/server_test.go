package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/db"
	"github.com/ziadkadry99/drivenotify/internal/message"
	"github.com/ziadkadry99/drivenotify/internal/notifications"
)

type stubChannel struct {
	pingErr error
}

func (c *stubChannel) Name() string { return "stub" }

func (c *stubChannel) Send(context.Context, string, channel.OutboundMessage) channel.DeliveryResult {
	return channel.DeliveryResult{Success: true}
}

func (c *stubChannel) SendTemplate(context.Context, string, string, string, []channel.TemplateComponent) channel.DeliveryResult {
	return channel.DeliveryResult{Success: true}
}

func (c *stubChannel) Ping(context.Context) error { return c.pingErr }

// statusChannel also reports message status.
type statusChannel struct {
	stubChannel
	err error
}

func (c *statusChannel) MessageStatus(_ context.Context, id string) (*channel.MessageStatus, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &channel.MessageStatus{Status: "read:" + id}, nil
}

func setupServer(t *testing.T, cfg Config, ch channel.Channel) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return New(cfg, Deps{
		DB:        database,
		Channel:   ch,
		Store:     notifications.NewStore(database),
		Formatter: message.NewFormatter(message.NewCatalog(nil), time.UTC),
	}, zerolog.Nop())
}

func do(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})

	w := do(srv, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestBanner(t *testing.T) {
	srv := setupServer(t, Config{Version: "1.2.3"}, &stubChannel{})

	w := do(srv, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["service"] != "drivenotify" || body["version"] != "1.2.3" || body["channel"] != "stub" {
		t.Errorf("unexpected banner: %v", body)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := setupServer(t, Config{AllowAll: true}, &stubChannel{})

	w := do(srv, "OPTIONS", "/healthz", map[string]string{
		"Origin":                        "http://example.com",
		"Access-Control-Request-Method": "GET",
	})
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestStatusHealthy(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})

	w := do(srv, "GET", "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentStatus `json:"components"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Components["database"].Status != "ok" || body.Components["channel"].Status != "ok" {
		t.Errorf("components = %+v", body.Components)
	}
}

func TestStatusChannelDown(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{pingErr: errors.New("unauthorized")})

	w := do(srv, "GET", "/status", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unauthorized") {
		t.Errorf("expected ping error in body: %s", w.Body.String())
	}
}

func TestAPIKey(t *testing.T) {
	srv := setupServer(t, Config{APIKey: "secret"}, &stubChannel{})

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"header", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "GET", "/stats", tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// Health endpoints stay open.
	if w := do(srv, "GET", "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", w.Code)
	}
}

func TestFeatureRoutesMounted(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})

	for _, path := range []string{"/stats", "/notifications/history", "/api/templates"} {
		if w := do(srv, "GET", path, nil); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
	// The pipeline was not supplied.
	if w := do(srv, "POST", "/webhook/gdrive", nil); w.Code == http.StatusOK {
		t.Error("webhook should not be mounted without a pipeline")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})
	do(srv, "GET", "/healthz", nil)

	w := do(srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "drivenotify_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestPanicReturnsJSON500(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})
	srv.Router().Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	w := do(srv, "GET", "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["success"] != false || body["message"] != "Internal server error" {
		t.Errorf("unexpected body: %v", body)
	}
	if strings.Contains(w.Body.String(), "kaboom") {
		t.Error("panic detail leaked to client")
	}
}

func TestMessageStatus(t *testing.T) {
	srv := setupServer(t, Config{}, &statusChannel{})

	w := do(srv, "GET", "/messages/wamid.7/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "read:wamid.7") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestMessageStatusUnsupported(t *testing.T) {
	srv := setupServer(t, Config{}, &stubChannel{})
	if w := do(srv, "GET", "/messages/x/status", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", w.Code)
	}
}

func TestMessageStatusProviderError(t *testing.T) {
	srv := setupServer(t, Config{}, &statusChannel{err: errors.New("boom")})
	w := do(srv, "GET", "/messages/x/status", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("provider error leaked to client")
	}
}
