package handle

import (
	"net/http"

	"go.uber.org/zap"
)

// Extract is the stateless one-shot: image in, outcome out.
func (h *Handle) Extract(w http.ResponseWriter, r *http.Request) {
	img, err := h.readImage(r.Context(), w, r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	// no session owns this image
	defer func() {
		if err := h.previews.Release(img.Preview.ID); err != nil {
			h.log.Warn("preview release failed", zap.Error(err))
		}
	}()

	ctx, cancel := withTimeout(r, requestTimeout(r, 0))
	defer cancel()

	writeJSON(w, http.StatusOK, h.client.Extract(ctx, img.EncodedContent, img.MediaType))
}
