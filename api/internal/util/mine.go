package util

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffMimeForOCR maps image bytes to the format names Yandex Vision expects.
func SniffMimeForOCR(b []byte) string {
	switch SniffMimeHTTP(b) {
	case "image/jpeg":
		return "JPEG"
	case "image/png":
		return "PNG"
	case "application/pdf":
		return "PDF"
	}
	return ""
}

// SniffMimeHTTP detects the image formats an exam photo realistically arrives in.
func SniffMimeHTTP(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return "image/jpeg"
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return "image/webp"
	case len(b) >= 6 && (string(b[:6]) == "GIF87a" || string(b[:6]) == "GIF89a"):
		return "image/gif"
	case len(b) >= 12 && string(b[4:8]) == "ftyp" && (string(b[8:12]) == "heic" || string(b[8:12]) == "heix"):
		return "image/heic"
	case len(b) >= 12 && string(b[4:8]) == "ftyp" && (string(b[8:12]) == "mif1" || string(b[8:12]) == "msf1"):
		return "image/heif"
	case len(b) >= 5 && string(b[:5]) == "%PDF-":
		return "application/pdf"
	}
	return "application/octet-stream"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// StripDataURL drops a "data:<mime>;base64," prefix and returns the payload with the MIME hint.
func StripDataURL(s string) (payload, hintMIME string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return s, ""
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return s, ""
	}
	meta := s[len("data:"):idx]
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		hintMIME = meta[:semi]
	} else {
		hintMIME = meta
	}
	return s[idx+1:], strings.TrimSpace(hintMIME)
}

// DecodeBase64MaybeDataURL decodes base64, accepting a data: URI. The MIME from the prefix is returned as a hint.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	payload, hintMIME := StripDataURL(s)
	// standard first, then URL-safe variants
	b, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return b, hintMIME, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(payload); err2 == nil {
		return b2, hintMIME, nil
	}
	if b3, err3 := base64.RawStdEncoding.DecodeString(payload); err3 == nil {
		return b3, hintMIME, nil
	}
	return nil, "", err
}

// PickMIME prefers the explicit MIME, then the data: URI hint, then sniffs the bytes.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := normalizeMIME(explicit); exp != "" && exp != "application/octet-stream" {
		return exp
	}
	if h := normalizeMIME(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if m := SniffMimeHTTP(data); m != "application/octet-stream" {
			return m
		}
		return normalizeMIME(http.DetectContentType(data))
	}
	return "image/jpeg"
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if semi := strings.IndexByte(m, ';'); semi >= 0 {
		m = strings.TrimSpace(m[:semi])
	}
	if m == "image/jpg" || m == "image/pjpeg" {
		return "image/jpeg"
	}
	return m
}
