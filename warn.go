package vkdraw

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// warnSet deduplicates warnings by message content within a component
// instance. First occurrence diagnostics are always emitted; repeats are
// dropped (Warnf) or rate limited (Throttledf) so a per-frame condition
// cannot flood the log.
type warnSet struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

const defaultWarnWindow = 5 * time.Second

func (w *warnSet) init() {
	if w.seen == nil {
		w.seen = make(map[string]struct{})
		w.last = make(map[string]time.Time)
	}
	if w.window == 0 {
		w.window = defaultWarnWindow
	}
	if w.now == nil {
		w.now = time.Now
	}
}

// Warnf logs the formatted message the first time it is seen by this set
// and swallows it afterwards. Returns true when the message was emitted.
func (w *warnSet) Warnf(format string, args ...interface{}) bool {
	msg := fmt.Sprintf(format, args...)

	w.mu.Lock()
	w.init()
	if _, ok := w.seen[msg]; ok {
		w.mu.Unlock()
		return false
	}
	w.seen[msg] = struct{}{}
	w.mu.Unlock()

	log.Printf("WARNING: %s", msg)
	return true
}

// Throttledf logs the formatted message at most once per window per distinct
// message. Returns true when the message was emitted.
func (w *warnSet) Throttledf(format string, args ...interface{}) bool {
	msg := fmt.Sprintf(format, args...)

	w.mu.Lock()
	w.init()
	now := w.now()
	if t, ok := w.last[msg]; ok && now.Sub(t) < w.window {
		w.mu.Unlock()
		return false
	}
	w.last[msg] = now
	w.mu.Unlock()

	log.Printf("WARNING: %s", msg)
	return true
}
