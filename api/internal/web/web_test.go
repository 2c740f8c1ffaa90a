package web

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/session"
)

type fixedExtractor struct{ out ocr.Outcome }

func (f fixedExtractor) Extract(ctx context.Context, encoded, mediaType string) ocr.Outcome {
	return f.out
}

type browser struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	sessions *session.Manager
	previews *preview.Store
}

func newBrowser(t *testing.T, out ocr.Outcome) *browser {
	t.Helper()
	log := zaptest.NewLogger(t)
	previews := preview.NewStore()
	sessions := session.NewManager(fixedExtractor{out}, previews, 0, log)
	ui := New(sessions, payload.NewEncoder(previews, 0, 0), previews, "ar", 0, log)
	mux := http.NewServeMux()
	ui.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &browser{t: t, srv: srv, client: &http.Client{Jar: jar}, sessions: sessions, previews: previews}
}

func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.srv.URL + path)
	if err != nil {
		b.t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (b *browser) post(path, ct string, body io.Reader) string {
	b.t.Helper()
	resp, err := b.client.Post(b.srv.URL+path, ct, body)
	if err != nil {
		b.t.Fatal(err)
	}
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)
	return string(page)
}

func (b *browser) upload(data []byte) string {
	b.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "exam.png")
	fw.Write(data)
	mw.Close()
	return b.post("/ui/image", mw.FormDataContentType(), &body)
}

// settle waits for the only session to leave the extracting phase.
func (b *browser) settle() {
	b.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, page := b.get("/")
		if !strings.Contains(page, arabic.ProgressTitle) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.t.Fatal("extraction did not settle")
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPageFlowSuccess(t *testing.T) {
	b := newBrowser(t, ocr.Success("# الاختبار\n\n| س | ج |\n|---|---|\n| 1 | ٢ |"))

	_, page := b.get("/")
	if !strings.Contains(page, arabic.EmptyTitle) || !strings.Contains(page, `dir="rtl"`) {
		t.Fatal("empty page missing prompt")
	}
	if !strings.Contains(page, "disabled") {
		t.Fatal("extract button should be disabled without an image")
	}

	page = b.upload(pngImage(t))
	if !strings.Contains(page, `src="/ui/preview`) {
		t.Fatal("preview not shown after upload")
	}
	if code, _ := b.get("/ui/preview"); code != http.StatusOK {
		t.Fatalf("preview status = %d", code)
	}

	b.post("/ui/extract", "", nil)
	b.settle()

	_, page = b.get("/")
	for _, want := range []string{"<h1>الاختبار</h1>", "<table>", arabic.Copy, arabic.Download} {
		if !strings.Contains(page, want) {
			t.Fatalf("result page missing %q", want)
		}
	}

	page = b.post("/ui/copy", "", nil)
	if !strings.Contains(page, `class="ok"`) {
		t.Fatal("copy acknowledgment missing")
	}

	resp, err := b.client.Get(b.srv.URL + "/ui/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "exam_extracted_") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	page = b.post("/ui/reset", "", nil)
	if !strings.Contains(page, arabic.EmptyTitle) {
		t.Fatal("reset did not return to the upload prompt")
	}
	if b.previews.Len() != 0 {
		t.Fatal("preview not released on reset")
	}
}

func TestPageFlowFailure(t *testing.T) {
	b := newBrowser(t, ocr.Failure(ocr.Arabic.NoText))
	b.upload(pngImage(t))
	b.post("/ui/extract", "", nil)
	b.settle()

	_, page := b.get("/")
	if !strings.Contains(page, arabic.ErrorTitle) || !strings.Contains(page, ocr.Arabic.NoText) {
		t.Fatal("error view missing")
	}
	if !strings.Contains(page, `action="/ui/retry"`) {
		t.Fatal("retry action missing")
	}
}

func TestRejectedUploadShowsNotice(t *testing.T) {
	b := newBrowser(t, ocr.Success("x"))
	b.upload(pngImage(t))

	page := b.upload([]byte("not an image"))
	if !strings.Contains(page, `class="error"`) {
		t.Fatal("rejection notice missing")
	}
	if !strings.Contains(page, `src="/ui/preview`) {
		t.Fatal("previous image lost after rejected upload")
	}

	_, page = b.get("/")
	if strings.Contains(page, `<p class="error">`) {
		t.Fatal("notice shown twice")
	}
}

func TestMarkdownEscapesRawHTML(t *testing.T) {
	u := New(nil, nil, nil, "ar", 0, nil)
	html, err := u.render("<script>alert(1)</script>\n\n**ok**")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("raw html passed through: %s", html)
	}
	if !strings.Contains(string(html), "<strong>ok</strong>") {
		t.Fatalf("markdown not rendered: %s", html)
	}
}

func TestLabelsFor(t *testing.T) {
	if LabelsFor("en").Dir != "ltr" || LabelsFor("ar").Dir != "rtl" || LabelsFor("").Lang != "ar" {
		t.Fatal("unexpected labels")
	}
}

func TestForeignCookieGetsFreshSession(t *testing.T) {
	b := newBrowser(t, ocr.Success("x"))
	chat, _ := b.sessions.Ensure("tg:42")
	img, err := payload.NewEncoder(b.previews, 0, 0).Encode(context.Background(), bytes.NewReader(pngImage(t)), "")
	if err != nil {
		t.Fatal(err)
	}
	chat.SelectImage(img)

	u, _ := url.Parse(b.srv.URL)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: CookieName, Value: "tg:42", Path: "/"}})

	page := b.post("/ui/reset", "", nil)
	if !strings.Contains(page, arabic.EmptyTitle) {
		t.Fatal("expected a fresh empty page")
	}
	if code, _ := b.get("/ui/preview"); code != http.StatusNotFound {
		t.Fatalf("preview status = %d, want 404", code)
	}
	if chat.Phase() != session.PhaseImageReady {
		t.Fatalf("chat session changed to %s", chat.Phase())
	}
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == CookieName && c.Value == "tg:42" {
			t.Fatal("cookie was not replaced")
		}
	}
}
