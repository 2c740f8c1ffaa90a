package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/session"
)

const chatID = 42

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	reqs []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) last() tgbotapi.MessageConfig {
	ms := b.messages()
	if len(ms) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return ms[len(ms)-1]
}

type outcomeExtractor struct {
	mu  sync.Mutex
	out ocr.Outcome
}

func (e *outcomeExtractor) Extract(ctx context.Context, encoded, mediaType string) ocr.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *outcomeExtractor) set(o ocr.Outcome) {
	e.mu.Lock()
	e.out = o
	e.mu.Unlock()
}

type fixture struct {
	bot      *fakeBot
	ext      *outcomeExtractor
	router   *Router
	sessions *session.Manager
	files    map[string][]byte
}

func newFixture(t *testing.T, out ocr.Outcome) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	previews := preview.NewStore()
	ext := &outcomeExtractor{out: out}
	sessions := session.NewManager(ext, previews, 0, log)
	bot := &fakeBot{}
	f := &fixture{bot: bot, ext: ext, sessions: sessions, files: map[string][]byte{}}
	f.router = NewRouter(bot, sessions, payload.NewEncoder(previews, 0, 0), "ar", log)
	f.router.fetch = func(ctx context.Context, url string) ([]byte, error) {
		id := strings.TrimPrefix(url, "https://files.example/")
		data, ok := f.files[id]
		if !ok {
			return nil, errors.New("not found")
		}
		return data, nil
	}
	return f
}

func pageImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func textMsg(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func photoMsg(fileID, group string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:         &tgbotapi.Chat{ID: chatID},
		Photo:        []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: fileID}},
		MediaGroupID: group,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func (f *fixture) wait(t *testing.T) session.View {
	t.Helper()
	s, ok := f.sessions.Get(SessionID(chatID))
	if !ok {
		t.Fatal("no session for chat")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return v
}

// delivered waits for the latest message whose keyboard starts with button data.
func (f *fixture) delivered(t *testing.T, data string) tgbotapi.MessageConfig {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ms := f.bot.messages()
		for i := len(ms) - 1; i >= 0; i-- {
			kb, ok := ms[i].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			if ok && *kb.InlineKeyboard[0][0].CallbackData == data {
				return ms[i]
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no message with %q keyboard", data)
	return tgbotapi.MessageConfig{}
}

func TestCommands(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	ctx := context.Background()

	f.router.HandleUpdate(ctx, textMsg("/start"))
	if got := f.bot.last().Text; got != arabicTexts.Welcome {
		t.Fatalf("/start reply = %q", got)
	}
	f.router.HandleUpdate(ctx, textMsg("/nope"))
	if got := f.bot.last().Text; got != arabicTexts.UnknownCommand {
		t.Fatalf("unknown command reply = %q", got)
	}
	f.router.HandleUpdate(ctx, textMsg("hello"))
	if got := f.bot.last().Text; got != arabicTexts.Help {
		t.Fatalf("plain text reply = %q", got)
	}
}

func TestPhotoExtractDownload(t *testing.T) {
	f := newFixture(t, ocr.Success("# الاختبار\n\n1. السؤال الأول"))
	f.files["big"] = pageImage(t, 8, 8, color.White)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, photoMsg("big", ""))
	if m := f.bot.last(); m.Text != arabicTexts.ImageReceived || m.ReplyMarkup == nil {
		t.Fatalf("after photo: %+v", m)
	}

	f.router.HandleUpdate(ctx, callback(cbExtract))
	v := f.wait(t)
	if v.Phase != session.PhaseSucceeded {
		t.Fatalf("phase = %s", v.Phase)
	}
	if got := f.delivered(t, cbDownload).Text; got != "# الاختبار\n\n1. السؤال الأول" {
		t.Fatalf("result message = %q", got)
	}

	f.router.HandleUpdate(ctx, callback(cbDownload))
	f.bot.mu.Lock()
	doc, ok := f.bot.sent[len(f.bot.sent)-1].(tgbotapi.DocumentConfig)
	f.bot.mu.Unlock()
	if !ok {
		t.Fatal("download did not send a document")
	}
	fb, ok := doc.File.(tgbotapi.FileBytes)
	if !ok || !strings.HasPrefix(fb.Name, "exam_extracted_") || string(fb.Bytes) != v.Text {
		t.Fatalf("document = %#v", doc.File)
	}
}

func TestFailureThenRetry(t *testing.T) {
	f := newFixture(t, ocr.Failure(ocr.Arabic.NoText))
	f.files["p"] = pageImage(t, 4, 4, color.Black)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, photoMsg("p", ""))
	f.router.HandleUpdate(ctx, callback(cbExtract))
	f.wait(t)
	if got := f.delivered(t, cbRetry).Text; !strings.Contains(got, ocr.Arabic.NoText) {
		t.Fatalf("failure message = %q", got)
	}

	f.ext.set(ocr.Success("نص"))
	f.router.HandleUpdate(ctx, callback(cbRetry))
	if v := f.wait(t); v.Phase != session.PhaseSucceeded || v.Text != "نص" {
		t.Fatalf("after retry: %+v", v)
	}
	f.delivered(t, cbDownload)
}

func TestExtractWithoutImage(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	f.router.HandleUpdate(context.Background(), callback(cbExtract))
	if got := f.bot.last().Text; got != arabicTexts.NeedImage {
		t.Fatalf("reply = %q", got)
	}
}

func TestResetCommandClearsImage(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	f.files["p"] = pageImage(t, 4, 4, color.Black)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, photoMsg("p", ""))

	f.router.HandleUpdate(ctx, textMsg("/reset"))
	s, _ := f.sessions.Get(SessionID(chatID))
	if s.Phase() != session.PhaseNoImage {
		t.Fatalf("phase = %s", s.Phase())
	}
}

func TestDocumentMustBeImage(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Document: &tgbotapi.Document{FileID: "d", MimeType: "application/pdf"},
	}})
	if got := f.bot.last().Text; got != arabicTexts.NotImage {
		t.Fatalf("reply = %q", got)
	}
}

func TestRejectedPhotoKeepsPrevious(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	f.files["good"] = pageImage(t, 4, 4, color.Black)
	f.files["bad"] = []byte("not an image")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, photoMsg("good", ""))
	f.router.HandleUpdate(ctx, photoMsg("bad", ""))
	s, _ := f.sessions.Get(SessionID(chatID))
	if s.Phase() != session.PhaseImageReady {
		t.Fatalf("phase = %s", s.Phase())
	}
	if !strings.HasPrefix(f.bot.last().Text, "تعذّر قبول الصورة") {
		t.Fatalf("reply = %q", f.bot.last().Text)
	}
}

func TestAlbumPagesAreStitched(t *testing.T) {
	f := newFixture(t, ocr.Success("x"))
	f.files["p1"] = pageImage(t, 10, 6, color.Black)
	f.files["p2"] = pageImage(t, 6, 4, color.Black)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, photoMsg("p1", "g1"))
	f.router.HandleUpdate(ctx, photoMsg("p2", "g1"))

	deadline := time.Now().Add(albumDebounce + 2*time.Second)
	var s *session.Session
	for time.Now().Before(deadline) {
		if got, ok := f.sessions.Get(SessionID(chatID)); ok && got.Phase() == session.PhaseImageReady {
			s = got
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if s == nil {
		t.Fatal("album never became the current image")
	}
	img, _ := s.Image()
	if img.MediaType != "image/jpeg" {
		t.Fatalf("media type = %q", img.MediaType)
	}
	if got := f.delivered(t, cbExtract).Text; !strings.HasPrefix(got, arabicTexts.AlbumReceived) {
		t.Fatalf("reply = %q", got)
	}
}

func TestStitchPages(t *testing.T) {
	a := pageImage(t, 10, 6, color.Black)
	b := pageImage(t, 6, 4, color.Black)

	out, err := stitchPages([][]byte{a, b}, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 10 || cfg.Height != 10 {
		t.Fatalf("stitched size = %dx%d, want 10x10", cfg.Width, cfg.Height)
	}

	out, err = stitchPages([][]byte{a, b}, 25)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ = jpeg.DecodeConfig(bytes.NewReader(out))
	if cfg.Width*cfg.Height > 25 {
		t.Fatalf("scaled size = %dx%d exceeds the pixel cap", cfg.Width, cfg.Height)
	}

	if _, err := stitchPages([][]byte{a, []byte("junk")}, 100); err == nil {
		t.Fatal("expected an error for an undecodable page")
	}
}

type fakePoller struct {
	mu    sync.Mutex
	calls []int
	steps []func() ([]tgbotapi.Update, error)
	done  func()
}

func (p *fakePoller) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c.Offset)
	if len(p.calls) > len(p.steps) {
		p.done()
		return nil, nil
	}
	return p.steps[len(p.calls)-1]()
}

func TestPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakePoller{
		steps: []func() ([]tgbotapi.Update, error){
			func() ([]tgbotapi.Update, error) { return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil },
			func() ([]tgbotapi.Update, error) { return nil, errors.New("boom") },
			func() ([]tgbotapi.Update, error) { return []tgbotapi.Update{{UpdateID: 12}}, nil },
		},
		done: cancel,
	}
	var got []int
	err := Poll(ctx, p, func(_ context.Context, u tgbotapi.Update) { got = append(got, u.UpdateID) }, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != 12 {
		t.Fatalf("handled = %v", got)
	}
	if p.calls[1] != 12 || p.calls[3] != 13 {
		t.Fatalf("offsets = %v", p.calls)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		err  error
		want time.Duration
	}{
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{errors.New("connection reset"), time.Second},
	}
	for _, tc := range cases {
		if got := retryDelay(tc.err); got != tc.want {
			t.Errorf("retryDelay(%q) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWebhookHandler(t *testing.T) {
	got := make(chan tgbotapi.Update, 1)
	h := WebhookHandler(context.Background(), func(_ context.Context, u tgbotapi.Update) { got <- u }, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader(`{"update_id":5,"message":{"message_id":1,"chat":{"id":42},"text":"hi"}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case u := <-got:
		if u.UpdateID != 5 || u.Message.Text != "hi" {
			t.Fatalf("update = %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("update not dispatched")
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}
}

func TestWebhookPath(t *testing.T) {
	a, b := WebhookPath("123:abc"), WebhookPath("123:abd")
	if !strings.HasPrefix(a, "/webhook/") || len(a) != len("/webhook/")+16 || a == b || a != WebhookPath("123:abc") {
		t.Fatalf("paths %q %q", a, b)
	}
}
