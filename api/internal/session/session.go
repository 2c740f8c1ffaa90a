// Package session drives one user's image → extraction → result lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/task"
)

type Phase string

const (
	PhaseNoImage    Phase = "no_image"
	PhaseImageReady Phase = "image_ready"
	PhaseExtracting Phase = "extracting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// CopyAckDuration is how long View.Copied stays true after Copy.
const CopyAckDuration = 2 * time.Second

var (
	ErrNoImage           = errors.New("session: no image selected")
	ErrBusy              = errors.New("session: extraction already in progress")
	ErrNoResult          = errors.New("session: no extracted text")
	ErrInvalidTransition = errors.New("session: action not allowed in current state")
)

// Extractor is the part of ocr.Client a session needs.
type Extractor interface {
	Extract(ctx context.Context, encodedContent, mediaType string) ocr.Outcome
}

// Releaser frees preview handles.
type Releaser interface {
	Release(id string) error
}

// attempt is one in-flight extraction, stamped so a superseded result can be recognised.
type attempt struct {
	stamp   uint64
	cancel  context.CancelFunc
	settled chan struct{}
}

type Session struct {
	id       string
	ext      Extractor
	previews Releaser
	log      *zap.Logger
	now      func() time.Time
	onChange func(*Session)
	failed   string

	mu          sync.Mutex
	phase       Phase
	image       *payload.SelectedImage
	text        string
	reason      string
	stamp       uint64
	current     *attempt
	copiedUntil time.Time
	touched     time.Time
}

func New(id string, ext Extractor, previews Releaser, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		id:       id,
		ext:      ext,
		previews: previews,
		log:      log.With(zap.String("session", id)),
		now:      time.Now,
		failed:   ocr.Arabic.Failed,
		phase:    PhaseNoImage,
	}
	s.touched = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// OnChange registers fn to run after an extraction completes. It runs outside the session lock.
func (s *Session) OnChange(fn func(*Session)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SelectImage makes img the current image. Any previous image is released and any in-flight
// result for it will be ignored.
func (s *Session) SelectImage(img payload.SelectedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.abandonLocked()
	s.releaseLocked()
	s.image = &img
	s.phase = PhaseImageReady
	s.clearResultLocked()
}

// ClearImage drops the current image and returns to no_image.
func (s *Session) ClearImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.image == nil {
		return ErrNoImage
	}
	s.resetLocked()
	return nil
}

// Reset returns to no_image from any state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.resetLocked()
}

// Start launches an extraction for the current image. Only valid in image_ready.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	switch s.phase {
	case PhaseImageReady:
	case PhaseNoImage:
		return ErrNoImage
	case PhaseExtracting:
		return ErrBusy
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.phase)
	}
	s.launchLocked(ctx)
	return nil
}

// Retry re-runs the extraction with the same image. Only valid in failed.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	switch s.phase {
	case PhaseFailed:
	case PhaseExtracting:
		return ErrBusy
	case PhaseNoImage:
		return ErrNoImage
	default:
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, s.phase)
	}
	s.launchLocked(ctx)
	return nil
}

// Wait blocks until the in-flight extraction, if any, has settled, then returns the view.
func (s *Session) Wait(ctx context.Context) (View, error) {
	s.mu.Lock()
	a := s.current
	s.mu.Unlock()
	if a == nil {
		return s.View(), nil
	}
	select {
	case <-a.settled:
		return s.View(), nil
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
}

// Copy returns the extracted text and starts the copy acknowledgment.
func (s *Session) Copy() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.phase != PhaseSucceeded {
		return "", ErrNoResult
	}
	s.copiedUntil = s.now().Add(CopyAckDuration)
	return s.text, nil
}

// Download returns the extracted text with its file name.
func (s *Session) Download() (name, content string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.phase != PhaseSucceeded {
		return "", "", ErrNoResult
	}
	return DownloadName(s.now()), s.text, nil
}

// DownloadName is exam_extracted_<epoch-ms>.txt.
func DownloadName(t time.Time) string {
	return "exam_extracted_" + strconv.FormatInt(t.UnixMilli(), 10) + ".txt"
}

// Image returns the current image, if any.
func (s *Session) Image() (payload.SelectedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return payload.SelectedImage{}, false
	}
	return *s.image, true
}

// IdleSince reports the last time the session was used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Close releases everything the session holds.
func (s *Session) Close() { s.Reset() }

func (s *Session) launchLocked(ctx context.Context) {
	img := *s.image
	s.stamp++
	s.phase = PhaseExtracting
	s.clearResultLocked()

	// the extraction outlives the request that triggered it
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &attempt{stamp: s.stamp, cancel: cancel, settled: make(chan struct{})}
	s.current = a
	f := task.Go(ctx, func(ctx context.Context) (ocr.Outcome, error) {
		return s.ext.Extract(ctx, img.EncodedContent, img.MediaType), nil
	})
	go s.await(a, f)
}

func (s *Session) await(a *attempt, f *task.Future[ocr.Outcome]) {
	defer a.cancel()
	out, err := f.Wait(context.Background())
	if err != nil {
		// only a panicking extractor gets here
		s.log.Error("extraction task failed", zap.Error(err))
		out = ocr.Failure(err.Error())
	}

	s.mu.Lock()
	if s.current == a {
		s.current = nil
	}
	if a.stamp != s.stamp || s.phase != PhaseExtracting {
		s.mu.Unlock()
		close(a.settled)
		s.log.Info("dropping stale extraction result", zap.Uint64("stamp", a.stamp))
		return
	}
	if out.Succeeded {
		s.phase = PhaseSucceeded
		s.text = out.Text
	} else {
		s.phase = PhaseFailed
		s.reason = out.Reason
		if strings.TrimSpace(s.reason) == "" {
			s.reason = s.failed
		}
	}
	fn := s.onChange
	s.mu.Unlock()
	close(a.settled)

	if fn != nil {
		fn(s)
	}
}

// abandonLocked cancels the in-flight extraction; its result will be dropped.
func (s *Session) abandonLocked() {
	s.stamp++
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

func (s *Session) resetLocked() {
	s.abandonLocked()
	s.releaseLocked()
	s.image = nil
	s.phase = PhaseNoImage
	s.clearResultLocked()
}

func (s *Session) releaseLocked() {
	if s.image == nil || s.image.Preview.IsZero() {
		return
	}
	if err := s.previews.Release(s.image.Preview.ID); err != nil {
		s.log.Warn("preview release failed", zap.String("preview", s.image.Preview.ID), zap.Error(err))
	}
	s.image.Preview = preview.Handle{}
}

func (s *Session) clearResultLocked() {
	s.text = ""
	s.reason = ""
	s.copiedUntil = time.Time{}
}

func (s *Session) touch() { s.touched = s.now() }
