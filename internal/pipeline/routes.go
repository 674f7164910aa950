package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/event"
)

const maxRequestBytes = 1 << 20

// RegisterRoutes mounts the webhook and send endpoints on the given router.
func RegisterRoutes(r chi.Router, p *Pipeline, logger zerolog.Logger) {
	r.Post("/webhook/gdrive", handleWebhook(p, logger))
	r.Post("/notify/manual", handleManual(p, logger))
	r.Post("/notify/test", handleTest(p, logger))
}

func handleWebhook(p *Pipeline, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev event.DriveEvent
		if err := decodeBody(r, &ev); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "Invalid request body"})
			return
		}

		resp, err := p.HandleEvent(r.Context(), ev)
		if err != nil {
			writeInternalError(w, logger, err, "webhook handling failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleManual(p *Pipeline, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ManualRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "Invalid request body"})
			return
		}

		resp, err := p.ManualSend(r.Context(), req)
		if err != nil {
			writeInternalError(w, logger, err, "manual send failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTest(p *Pipeline, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To string `json:"to"`
		}
		// An empty body means the configured test number.
		if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "Invalid request body"})
			return
		}

		resp, err := p.SendTest(r.Context(), req.To)
		if err != nil {
			writeInternalError(w, logger, err, "test send failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(v)
}

func writeInternalError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	logger.Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success":   false,
		"message":   "Internal server error",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
