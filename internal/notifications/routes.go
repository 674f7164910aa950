package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultPurgeDays    = 30
)

// RegisterRoutes mounts the administrative log endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store, logger zerolog.Logger) {
	r.Get("/notifications/history", handleHistory(store, logger))
	r.Get("/notifications/{id}", handleGetByID(store, logger))
	r.Delete("/notifications/clear", handleClear(store, logger))
	r.Get("/stats", handleStats(store, logger))
}

func handleHistory(store *Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := queryInt(q.Get("limit"), defaultHistoryLimit)
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		offset := queryInt(q.Get("offset"), 0)
		if offset < 0 {
			offset = 0
		}

		records, err := store.List(r.Context(), limit, offset)
		if err != nil {
			writeInternalError(w, logger, err)
			return
		}
		total, err := store.Count(r.Context())
		if err != nil {
			writeInternalError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"total":         total,
			"limit":         limit,
			"offset":        offset,
			"notifications": records,
		})
	}
}

func handleGetByID(store *Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"message": "Notification not found",
			})
			return
		}
		if err != nil {
			writeInternalError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "notification": rec})
	}
}

func handleStats(store *Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Statistics(r.Context())
		if err != nil {
			writeInternalError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"statistics": stats,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleClear(store *Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := queryInt(r.URL.Query().Get("days_old"), defaultPurgeDays)
		if days < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "days_old must be non-negative",
			})
			return
		}

		removed, err := store.PurgeOlderThan(r.Context(), days)
		if err != nil {
			writeInternalError(w, logger, err)
			return
		}
		logger.Info().Int("days_old", days).Int64("removed", removed).Msg("cleared old notifications")

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Cleared notifications older than " + strconv.Itoa(days) + " days",
			"daysOld": days,
			"removed": removed,
		})
	}
}

// queryInt parses v, returning def when it is empty or malformed.
func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeInternalError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("notification log request failed")
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
