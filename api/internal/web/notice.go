package web

import (
	"sync"
	"time"
)

// noticeTTL bounds how long a notice waits for the page load that shows it.
const noticeTTL = time.Minute

type notice struct {
	msg string
	at  time.Time
}

type noticeBox struct {
	mu  sync.Mutex
	m   map[string]notice
	now func() time.Time
}

func (b *noticeBox) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// put stores msg for id and drops notices nobody came back for.
func (b *noticeBox) put(id, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock()
	if b.m == nil {
		b.m = make(map[string]notice)
	}
	for k, n := range b.m {
		if now.Sub(n.at) > noticeTTL {
			delete(b.m, k)
		}
	}
	b.m[id] = notice{msg: msg, at: now}
}

func (b *noticeBox) take(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.m[id]
	if !ok {
		return ""
	}
	delete(b.m, id)
	if b.clock().Sub(n.at) > noticeTTL {
		return ""
	}
	return n.msg
}
