// Package web serves the browser page for a single session bound to a cookie.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/session"
)

const (
	CookieName = "exam_ocr_session"
	// form uploads carry raw bytes plus multipart framing
	formOverhead = 1 << 20
)

//go:embed templates/page.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/page.html"))

type UI struct {
	sessions *session.Manager
	encoder  *payload.Encoder
	previews *preview.Store
	labels   Labels
	md       goldmark.Markdown
	maxBody  int64
	secure   bool
	log      *zap.Logger

	// one-shot notices for rejected uploads, keyed by session id
	notices noticeBox
}

type Option func(*UI)

// WithSecureCookie marks the session cookie Secure, for HTTPS deployments.
func WithSecureCookie() Option { return func(u *UI) { u.secure = true } }

func New(sessions *session.Manager, encoder *payload.Encoder, previews *preview.Store, lang string, maxUpload int64, log *zap.Logger, opts ...Option) *UI {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = payload.DefaultMaxBytes
	}
	u := &UI{
		sessions: sessions,
		encoder:  encoder,
		previews: previews,
		labels:   LabelsFor(lang),
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		maxBody:  maxUpload + formOverhead,
		log:      log,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *UI) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.Page)
	mux.HandleFunc("GET /ui/preview", u.Preview)
	mux.HandleFunc("GET /ui/download", u.Download)
	mux.HandleFunc("POST /ui/image", u.SelectImage)
	mux.HandleFunc("POST /ui/clear", u.action(func(s *session.Session, r *http.Request) error { return s.ClearImage() }))
	mux.HandleFunc("POST /ui/extract", u.action(func(s *session.Session, r *http.Request) error { return s.Start(r.Context()) }))
	mux.HandleFunc("POST /ui/retry", u.action(func(s *session.Session, r *http.Request) error { return s.Retry(r.Context()) }))
	mux.HandleFunc("POST /ui/reset", u.action(func(s *session.Session, r *http.Request) error { s.Reset(); return nil }))
	mux.HandleFunc("POST /ui/copy", u.action(func(s *session.Session, r *http.Request) error {
		_, err := s.Copy()
		return err
	}))
}

type pageData struct {
	L             Labels
	V             session.View
	HTML          template.HTML
	Notice        string
	CopyAck       int
	CopyAckMillis int64
}

func (u *UI) Page(w http.ResponseWriter, r *http.Request) {
	s := u.session(w, r)
	data := pageData{
		L:             u.labels,
		V:             s.View(),
		Notice:        u.notices.take(s.ID()),
		CopyAck:       int(session.CopyAckDuration / time.Second),
		CopyAckMillis: session.CopyAckDuration.Milliseconds(),
	}
	if data.V.Phase == session.PhaseSucceeded {
		html, err := u.render(data.V.Text)
		if err != nil {
			u.log.Warn("markdown render failed", zap.String("session", s.ID()), zap.Error(err))
		}
		data.HTML = html
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		u.log.Error("page render failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// render converts the extracted Markdown to HTML. Raw HTML in the source is dropped by goldmark.
func (u *UI) render(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text)), err
	}
	return template.HTML(buf.String()), nil
}

func (u *UI) SelectImage(w http.ResponseWriter, r *http.Request) {
	s := u.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, u.maxBody)
	f, hdr, err := r.FormFile("image")
	if err != nil {
		u.reject(s, err)
		u.home(w, r)
		return
	}
	defer f.Close()
	img, err := u.encoder.Encode(r.Context(), f, hdr.Header.Get("Content-Type"))
	if err != nil {
		u.reject(s, err)
		u.home(w, r)
		return
	}
	s.SelectImage(img)
	u.home(w, r)
}

func (u *UI) reject(s *session.Session, err error) {
	u.log.Info("upload rejected", zap.String("session", s.ID()), zap.Error(err))
	u.notices.put(s.ID(), err.Error())
}

func (u *UI) Preview(w http.ResponseWriter, r *http.Request) {
	s := u.session(w, r)
	img, ok := s.Image()
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, mt, err := u.previews.Open(img.Preview.ID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mt)
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(data)
}

func (u *UI) Download(w http.ResponseWriter, r *http.Request) {
	s := u.session(w, r)
	name, content, err := s.Download()
	if err != nil {
		u.home(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write([]byte(content))
}

// action runs fn and redirects back to the page. Rejected actions are ignored; the
// page only offers the ones the current phase allows.
func (u *UI) action(fn func(*session.Session, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := u.session(w, r)
		if err := fn(s, r); err != nil {
			u.log.Debug("ui action rejected", zap.String("session", s.ID()), zap.String("path", r.URL.Path), zap.Error(err))
		}
		u.home(w, r)
	}
}

func (u *UI) home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// session returns the cookie's session, starting a new one when the cookie is missing or stale.
func (u *UI) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(CookieName); err == nil && session.PublicID(c.Value) {
		if s, ok := u.sessions.Get(c.Value); ok {
			return s
		}
	}
	s := u.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID(),
		Path:     "/",
		HttpOnly: true,
		Secure:   u.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}
