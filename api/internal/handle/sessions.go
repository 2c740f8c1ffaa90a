package handle

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"exam-ocr/api/internal/session"
)

func (h *Handle) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *Handle) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handle) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if id := r.PathValue("id"); !session.PublicID(id) || !h.sessions.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectImage replaces the session's image. A rejected upload leaves the session untouched.
func (h *Handle) SelectImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	img, err := h.readImage(r.Context(), w, r)
	if err != nil {
		h.log.Info("image rejected", zap.String("session", s.ID()), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.SelectImage(img)
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handle) ClearImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ClearImage(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handle) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	img, ok := s.Image()
	if !ok || img.Preview.IsZero() {
		writeError(w, http.StatusNotFound, "no image")
		return
	}
	data, mt, err := h.previews.Open(img.Preview.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", mt)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// StartExtraction returns 202 at once, or the settled view with ?wait=true.
func (h *Handle) StartExtraction(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *session.Session) error { return s.Start(r.Context()) })
}

func (h *Handle) Retry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *session.Session) error { return s.Retry(r.Context()) })
}

func (h *Handle) transition(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, s.View())
		return
	}
	ctx, cancel := withTimeout(r, requestTimeout(r, 0))
	defer cancel()
	v, err := s.Wait(ctx)
	if err != nil {
		// still running; report progress
		writeJSON(w, http.StatusAccepted, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handle) Copy(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	text, err := s.Copy()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "session": s.View()})
}

func (h *Handle) Download(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name, content, err := s.Download()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	WriteDownload(w, name, content)
}

// WriteDownload sends text as a plain-text attachment.
func WriteDownload(w http.ResponseWriter, name, content string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}
