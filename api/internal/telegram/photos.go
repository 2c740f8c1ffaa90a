package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"exam-ocr/api/internal/payload"
)

const (
	// album pages arrive as separate updates; wait this long after the last one
	albumDebounce = 1200 * time.Millisecond
	maxFileBytes  = 20 << 20
)

// album collects the pages of one media group.
type album struct {
	chatID int64

	mu    sync.Mutex
	pages [][]byte
	timer *time.Timer
}

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	// largest size is last
	ph := msg.Photo[len(msg.Photo)-1]
	data, err := r.fetchFile(ctx, ph.FileID)
	if err != nil {
		r.log.Warn("photo download failed", zap.Int64("chat", msg.Chat.ID), zap.Error(err))
		r.send(msg.Chat.ID, fmt.Sprintf(r.texts.Rejected, err))
		return
	}
	if msg.MediaGroupID != "" {
		r.addPage(ctx, msg.Chat.ID, msg.MediaGroupID, data)
		return
	}
	r.selectImage(ctx, msg.Chat.ID, data, "image/jpeg", "")
}

// acceptDocument takes images sent as files, which keeps their original quality.
func (r *Router) acceptDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	if !strings.HasPrefix(doc.MimeType, "image/") {
		r.send(msg.Chat.ID, r.texts.NotImage)
		return
	}
	data, err := r.fetchFile(ctx, doc.FileID)
	if err != nil {
		r.log.Warn("document download failed", zap.Int64("chat", msg.Chat.ID), zap.Error(err))
		r.send(msg.Chat.ID, fmt.Sprintf(r.texts.Rejected, err))
		return
	}
	r.selectImage(ctx, msg.Chat.ID, data, doc.MimeType, "")
}

func (r *Router) addPage(ctx context.Context, chatID int64, group string, data []byte) {
	v, _ := r.batches.LoadOrStore(group, &album{chatID: chatID})
	a := v.(*album)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = append(a.pages, data)
	if a.timer != nil {
		a.timer.Stop()
	}
	ctx = context.WithoutCancel(ctx)
	a.timer = time.AfterFunc(albumDebounce, func() { r.flushAlbum(ctx, group) })
}

func (r *Router) flushAlbum(ctx context.Context, group string) {
	v, ok := r.batches.LoadAndDelete(group)
	if !ok {
		return
	}
	a := v.(*album)
	a.mu.Lock()
	pages := append([][]byte(nil), a.pages...)
	a.mu.Unlock()

	if len(pages) == 1 {
		r.selectImage(ctx, a.chatID, pages[0], "", "")
		return
	}
	merged, err := stitchPages(pages, payload.DefaultMaxPixels)
	if err != nil {
		r.log.Warn("album stitch failed", zap.Int64("chat", a.chatID), zap.Error(err))
		r.send(a.chatID, fmt.Sprintf(r.texts.Rejected, err))
		return
	}
	r.selectImage(ctx, a.chatID, merged, "image/jpeg", r.texts.AlbumReceived)
}

// stitchPages stacks pages top to bottom on white, centred, and scales the
// result down to at most maxPixels.
func stitchPages(pages [][]byte, maxPixels int) ([]byte, error) {
	decoded := make([]image.Image, 0, len(pages))
	width, height := 0, 0
	for i, p := range pages {
		img, _, err := image.Decode(bytes.NewReader(p))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		b := img.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
		decoded = append(decoded, img)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty pages")
	}

	sheet := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	y := 0
	for _, img := range decoded {
		b := img.Bounds()
		x := (width - b.Dx()) / 2
		xdraw.Draw(sheet, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, xdraw.Over)
		y += b.Dy()
	}

	var out image.Image = sheet
	if px := width * height; px > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(px))
		w := max(1, int(float64(width)*scale))
		h := max(1, int(float64(height)*scale))
		small := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(small, small.Bounds(), sheet, sheet.Bounds(), xdraw.Src, nil)
		out = small
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Router) fetchFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return r.fetch(ctx, url)
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
}
