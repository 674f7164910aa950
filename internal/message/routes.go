package message

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/drivenotify/internal/event"
)

// TemplateInfo describes one catalog entry.
type TemplateInfo struct {
	Key  string `json:"key"`
	Body string `json:"body"`
}

// sampleEvent fills every placeholder for previews.
func sampleEvent(eventType string) event.DriveEvent {
	size := event.ByteSize(2_457_600)
	return event.DriveEvent{
		EventType:  eventType,
		FileID:     "sample",
		FileName:   "Quarterly report.pdf",
		FileType:   "application/pdf",
		FileURL:    "https://drive.google.com/file/d/sample/view",
		FileSize:   &size,
		SharedBy:   "alice@example.com",
		Permission: "writer",
		Timestamp:  "2024-01-01T00:00:00Z",
	}
}

// RegisterRoutes mounts template inspection endpoints under /api/templates.
func RegisterRoutes(r chi.Router, f *Formatter) {
	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", handleList(f))
		r.Get("/{key}/preview", handlePreview(f))
	})
}

func handleList(f *Formatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := f.Catalog().Keys()
		items := make([]TemplateInfo, 0, len(keys))
		for _, k := range keys {
			body, _ := f.Catalog().Lookup(k)
			items = append(items, TemplateInfo{Key: k, Body: body})
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": items})
	}
}

func handlePreview(f *Formatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if _, ok := f.Catalog().Lookup(key); !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"message": "Template not found",
			})
			return
		}

		var text string
		switch key {
		case KeyTestMessage:
			text = f.FormatTest()
		case KeyCustom:
			text = f.FormatCustom("Hello from *drivenotify*")
		default:
			text = f.Format(sampleEvent(key))
		}

		rendered, err := Preview(text)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "Internal server error",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"key":     key,
			"text":    text,
			"html":    rendered,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
