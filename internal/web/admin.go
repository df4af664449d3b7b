package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/maloquacious/backdrop/internal/background"
	"github.com/maloquacious/backdrop/internal/messages"
)

// AdminInfo is reported by /admin/status.
type AdminInfo struct {
	Version       string
	SchemaVersion string
	BuildDate     string
}

// AdminHandler routes the JSON-only admin API. shutdown is called by
// /admin/shutdown after the response is written.
func (s *Server) AdminHandler(info AdminInfo, shutdown func()) http.Handler {
	adminMux := http.NewServeMux()

	adminMux.Handle("GET /admin/status", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)
		mode := "starting"
		if s.Background.Initialized() {
			mode = "running"
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"version":       info.Version,
			"schemaVersion": info.SchemaVersion,
			"buildDate":     info.BuildDate,
			"time":          now,
			"mode":          mode,
			"background":    s.Background.Get().State().String(),
		})
	})))

	adminMux.Handle("GET /admin/background", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Background.Get())
	})))

	adminMux.Handle("PUT /admin/background", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload background.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		s.setBackground(w, r, payload.ImageURI)
	})))

	adminMux.Handle("DELETE /admin/background", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setBackground(w, r, "")
	})))

	adminMux.Handle("GET /admin/messages", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := s.History.List(r.Context())
		if list == nil {
			list = []messages.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": list})
	})))

	adminMux.Handle("POST /admin/shutdown", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		if shutdown != nil {
			go shutdown()
		}
	})))

	return adminMux
}

// setBackground applies a change and waits for it to be persisted. The new
// value stays in effect even when persisting fails.
func (s *Server) setBackground(w http.ResponseWriter, r *http.Request, uri string) {
	err := s.Background.Set(r.Context(), uri).Wait(r.Context())
	switch {
	case errors.Is(err, background.ErrMalformedReference):
		writeJSONError(w, http.StatusBadRequest, "invalid_reference", err.Error())
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "persist_failed", err.Error())
	default:
		writeJSON(w, http.StatusOK, s.Background.Get())
	}
}

// jsonOnly enforces JSON-only contract for admin routes.
func jsonOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Require Accept: application/json (at least for admin)
		accept := r.Header.Get("Accept")
		if !strings.Contains(accept, "application/json") && accept != "" {
			writeJSONError(w, http.StatusNotAcceptable, "not_acceptable", "Accept must include application/json")
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodDelete && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}
