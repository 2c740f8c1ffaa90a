package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the live sessions, keyed by id.
type Manager struct {
	ext      Extractor
	previews Releaser
	log      *zap.Logger
	ttl      time.Duration
	now      func() time.Time
	failed   string

	m sync.Map // id -> *Session
}

type ManagerOption func(*Manager)

// WithFailedReason sets the reason recorded when an extraction fails without one.
func WithFailedReason(msg string) ManagerOption {
	return func(m *Manager) { m.failed = msg }
}

func NewManager(ext Extractor, previews Releaser, ttl time.Duration, log *zap.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{ext: ext, previews: previews, ttl: ttl, log: log, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PublicID reports whether id has the shape Create issues. Front-ends that take ids from
// clients use it so sessions keyed by other schemes (tg:<chat>) stay unreachable.
func PublicID(id string) bool {
	return uuid.Validate(id) == nil && len(id) == 36
}

// Create starts a session with a fresh random id.
func (m *Manager) Create() *Session {
	s, _ := m.Ensure(uuid.NewString())
	return s
}

// Ensure returns the session for id, creating it when missing. created reports which happened.
func (m *Manager) Ensure(id string) (s *Session, created bool) {
	if v, ok := m.m.Load(id); ok {
		return v.(*Session), false
	}
	fresh := New(id, m.ext, m.previews, m.log)
	fresh.now = m.now
	if m.failed != "" {
		fresh.failed = m.failed
	}
	fresh.touched = m.now()
	v, loaded := m.m.LoadOrStore(id, fresh)
	return v.(*Session), !loaded
}

func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Delete closes and forgets the session.
func (m *Manager) Delete(id string) bool {
	v, ok := m.m.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(*Session).Close()
	return true
}

// Sweep closes sessions idle for longer than the TTL, skipping ones with an extraction in flight.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)
	n := 0
	m.m.Range(func(k, v any) bool {
		s := v.(*Session)
		if s.Phase() == PhaseExtracting || s.IdleSince().After(cutoff) {
			return true
		}
		if m.m.CompareAndDelete(k, v) {
			s.Close()
			n++
		}
		return true
	})
	if n > 0 {
		m.log.Info("evicted idle sessions", zap.Int("count", n))
	}
	return n
}

// RunJanitor sweeps every interval until ctx ends.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Manager) Len() int {
	n := 0
	m.m.Range(func(any, any) bool { n++; return true })
	return n
}
