package yandex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"exam-ocr/api/internal/ocr"
)

func TestIamTokenHonoursExpiresAt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"iamToken":"t1","expiresAt":"2026-01-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewIamClient("oauth")
	c.url = srv.URL
	now := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if tok, err := c.Token(context.Background()); err != nil || tok != "t1" {
			t.Fatalf("Token = %q, %v", tok, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("exchanges = %d, want 1", n)
	}

	// inside the refresh window
	now = time.Date(2026, 1, 1, 11, 56, 0, 0, time.UTC)
	if _, err := c.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("exchanges = %d, want 2", n)
	}
}

func TestIamErrorCarriesServiceMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":16,"message":"OAuth token is invalid or expired"}`))
	}))
	defer srv.Close()

	c := NewIamClient("bad")
	c.url = srv.URL
	_, err := c.Token(context.Background())
	var se *ocr.ServiceError
	if !errors.As(err, &se) || se.Message != "OAuth token is invalid or expired" {
		t.Fatalf("err = %v", err)
	}
}
