package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"exam-ocr/api/internal/util"
)

// ServiceError carries the message an extraction service reported for a failed call.
// Engines return it so the user sees the service's own wording.
type ServiceError struct {
	Engine  string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client sends one image to an engine and folds every result into an Outcome.
type Client struct {
	engine  Engine
	msgs    Messages
	timeout time.Duration
	log     *zap.Logger
}

type ClientOption func(*Client)

// WithTimeout bounds each call. Zero leaves the call bounded only by the caller's context.
func WithTimeout(d time.Duration) ClientOption { return func(c *Client) { c.timeout = d } }

func WithMessages(m Messages) ClientOption { return func(c *Client) { c.msgs = m } }

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(engine Engine, opts ...ClientOption) *Client {
	c := &Client{engine: engine, msgs: Arabic, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) EngineName() string { return c.engine.Name() }

// Extract makes exactly one engine call. It never returns an error and never panics: failures
// become Failure outcomes.
func (c *Client) Extract(ctx context.Context, encodedContent, mediaType string) (out Outcome) {
	log := c.log.With(zap.String("engine", c.engine.Name()), zap.String("model", c.engine.GetModel()))
	defer func() {
		if p := recover(); p != nil {
			log.Error("extraction panicked", zap.Any("panic", p))
			out = Failure(c.msgs.Generic)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.engine.Extract(ctx, Request{
		EncodedContent: encodedContent,
		MediaType:      mediaType,
		Instruction:    ExamPrompt,
	})
	if err != nil {
		log.Warn("extraction failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return Failure(c.reasonFor(err))
	}

	text = util.StripCodeFences(text)
	if strings.TrimSpace(text) == "" {
		log.Info("extraction returned no text", zap.Duration("took", time.Since(start)))
		return Failure(c.msgs.NoText)
	}
	log.Info("extraction succeeded", zap.Int("chars", len([]rune(text))), zap.Duration("took", time.Since(start)))
	return Success(text)
}

func (c *Client) reasonFor(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		if msg := strings.TrimSpace(se.Message); msg != "" {
			return msg
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && c.timeout > 0 {
		return fmt.Sprintf("timeout after %s", c.timeout)
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return c.msgs.Generic
}
