package handle

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"exam-ocr/api/internal/payload"
)

type imageReq struct {
	Image    string `json:"image"` // base64 or data: URI
	MimeType string `json:"mime_type,omitempty"`
}

// readImage accepts multipart/form-data with an "image" file, or a JSON body.
func (h *Handle) readImage(ctx context.Context, w http.ResponseWriter, r *http.Request) (payload.SelectedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case ct == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return payload.SelectedImage{}, fmt.Errorf("%w: %w", payload.ErrEmpty, err)
		}
		defer r.MultipartForm.RemoveAll()
		f, hdr, err := r.FormFile("image")
		if err != nil {
			return payload.SelectedImage{}, fmt.Errorf("%w: form field \"image\": %w", payload.ErrEmpty, err)
		}
		defer f.Close()
		return h.encoder.Encode(ctx, f, hdr.Header.Get("Content-Type"))

	case ct == "application/json":
		var req imageReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return payload.SelectedImage{}, fmt.Errorf("%w: bad json: %w", payload.ErrBadEncoding, err)
		}
		return h.encoder.EncodeDataURL(ctx, req.Image, req.MimeType)

	case strings.HasPrefix(ct, "image/"):
		return h.encoder.Encode(ctx, r.Body, ct)
	}
	return payload.SelectedImage{}, fmt.Errorf("%w: content type %q", payload.ErrUnsupportedType, ct)
}
