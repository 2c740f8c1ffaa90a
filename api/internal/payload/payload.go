// Package payload turns an uploaded exam photo into the base64 payload sent for extraction.
package payload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/webp"

	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/task"
	"exam-ocr/api/internal/util"
)

const (
	DefaultMaxBytes  = 10 << 20
	DefaultMaxPixels = 18_000_000
)

var (
	ErrEmpty           = errors.New("payload: image is empty")
	ErrTooLarge        = errors.New("payload: image is too large")
	ErrUnsupportedType = errors.New("payload: unsupported image type")
	ErrTooManyPixels   = errors.New("payload: image resolution is too high")
	ErrBadEncoding     = errors.New("payload: image is not valid base64")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/heic": true,
	"image/heif": true,
}

// SelectedImage is an image chosen for extraction. EncodedContent always encodes exactly the
// bytes behind Preview.
type SelectedImage struct {
	EncodedContent string
	MediaType      string
	Preview        preview.Handle
	Size           int
}

type Encoder struct {
	previews  *preview.Store
	maxBytes  int64
	maxPixels int
}

func NewEncoder(previews *preview.Store, maxBytes int64, maxPixels int) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Encoder{previews: previews, maxBytes: maxBytes, maxPixels: maxPixels}
}

// Encode reads the whole image from r. On error nothing is allocated and the caller keeps its
// previous selection.
func (e *Encoder) Encode(ctx context.Context, r io.Reader, declaredMIME string) (SelectedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return SelectedImage{}, fmt.Errorf("payload: read image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return SelectedImage{}, err
	}
	return e.fromBytes(data, declaredMIME, "")
}

// EncodeDataURL accepts "data:<mime>;base64,<payload>" or bare base64.
func (e *Encoder) EncodeDataURL(ctx context.Context, s, declaredMIME string) (SelectedImage, error) {
	if strings.TrimSpace(s) == "" {
		return SelectedImage{}, ErrEmpty
	}
	// base64 inflates by 4/3; reject before decoding
	if int64(len(s)) > e.maxBytes/3*4+1024 {
		return SelectedImage{}, ErrTooLarge
	}
	data, hint, err := util.DecodeBase64MaybeDataURL(s)
	if err != nil {
		return SelectedImage{}, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if err := ctx.Err(); err != nil {
		return SelectedImage{}, err
	}
	return e.fromBytes(data, declaredMIME, hint)
}

// EncodeAsync runs Encode in the background.
func (e *Encoder) EncodeAsync(ctx context.Context, r io.Reader, declaredMIME string) *task.Future[SelectedImage] {
	return task.Go(ctx, func(ctx context.Context) (SelectedImage, error) {
		return e.Encode(ctx, r, declaredMIME)
	})
}

func (e *Encoder) fromBytes(data []byte, declaredMIME, hintMIME string) (SelectedImage, error) {
	if len(data) == 0 {
		return SelectedImage{}, ErrEmpty
	}
	if int64(len(data)) > e.maxBytes {
		return SelectedImage{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, e.maxBytes)
	}
	mime := util.PickMIME(declaredMIME, hintMIME, data)
	if !allowedTypes[mime] {
		return SelectedImage{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	if err := e.checkPixels(data, mime); err != nil {
		return SelectedImage{}, err
	}

	return SelectedImage{
		EncodedContent: base64.StdEncoding.EncodeToString(data),
		MediaType:      mime,
		Preview:        e.previews.Acquire(data, mime),
		Size:           len(data),
	}, nil
}

// checkPixels bounds the resolution of formats we can decode. HEIC/HEIF pass through to the service.
func (e *Encoder) checkPixels(data []byte, mime string) error {
	if mime == "image/heic" || mime == "image/heif" {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s is not decodable: %v", ErrUnsupportedType, mime, err)
	}
	if px := cfg.Width * cfg.Height; px > e.maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return nil
}
