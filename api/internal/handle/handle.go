package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/session"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Handle struct {
	sessions *session.Manager
	encoder  *payload.Encoder
	client   *ocr.Client
	previews *preview.Store
	log      *zap.Logger
	// request body cap; base64 bodies are larger than the image itself
	maxBody int64
}

func New(sessions *session.Manager, encoder *payload.Encoder, client *ocr.Client, previews *preview.Store, maxUpload int64, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = payload.DefaultMaxBytes
	}
	return &Handle{
		sessions: sessions,
		encoder:  encoder,
		client:   client,
		previews: previews,
		log:      log,
		maxBody:  maxUpload/3*4 + 1<<20,
	}
}

func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /v1/extract", h.Extract)

	mux.HandleFunc("POST /v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.DeleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/image", h.SelectImage)
	mux.HandleFunc("DELETE /v1/sessions/{id}/image", h.ClearImage)
	mux.HandleFunc("GET /v1/sessions/{id}/preview", h.Preview)
	mux.HandleFunc("POST /v1/sessions/{id}/extract", h.StartExtraction)
	mux.HandleFunc("POST /v1/sessions/{id}/retry", h.Retry)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", h.Reset)
	mux.HandleFunc("POST /v1/sessions/{id}/copy", h.Copy)
	mux.HandleFunc("GET /v1/sessions/{id}/download", h.Download)
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps package sentinels to HTTP codes.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	switch {
	case errors.Is(err, payload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, payload.ErrEmpty), errors.Is(err, payload.ErrUnsupportedType),
		errors.Is(err, payload.ErrTooManyPixels), errors.Is(err, payload.ErrBadEncoding):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrNoResult):
		return http.StatusConflict
	case errors.Is(err, preview.ErrReleased):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// requestTimeout reads X-Request-Timeout or ?timeoutSec, in seconds.
func requestTimeout(r *http.Request, def time.Duration) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}

func (h *Handle) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	if !session.PublicID(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), d)
}
